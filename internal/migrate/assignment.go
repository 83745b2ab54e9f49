package migrate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Assignment is one approved file relocation, produced by the external
// planning step. Immutable input; the orchestrator never mutates it.
type Assignment struct {
	FileName     string
	CurrentPath  string
	ProposedPath string
	Reason       string
}

// Column names expected in an assignment plan CSV. Order is free; extra
// columns are ignored.
var assignmentColumns = []string{"file_name", "current_path", "proposed_path", "reason"}

// ErrEmptyPlan is returned when a plan file contains a header but no rows.
var ErrEmptyPlan = errors.New("migrate: assignment plan has no rows")

// ReadAssignments parses an assignment plan in CSV form. The first record
// must be a header naming at least file_name, current_path, and
// proposed_path; reason is optional.
func ReadAssignments(r io.Reader) ([]Assignment, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("migrate: reading plan header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range assignmentColumns {
		if _, ok := idx[col]; !ok && col != "reason" {
			return nil, fmt.Errorf("migrate: plan header missing column %q", col)
		}
	}

	var assignments []Assignment

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("migrate: reading plan row: %w", err)
		}

		a := Assignment{
			FileName:     field(record, idx, "file_name"),
			CurrentPath:  field(record, idx, "current_path"),
			ProposedPath: field(record, idx, "proposed_path"),
			Reason:       field(record, idx, "reason"),
		}

		if a.FileName == "" && a.CurrentPath == "" {
			continue // blank line
		}

		assignments = append(assignments, a)
	}

	if len(assignments) == 0 {
		return nil, ErrEmptyPlan
	}

	return assignments, nil
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[i])
}
