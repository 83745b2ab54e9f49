package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/spdoc/spdoc/internal/config"
	"github.com/spdoc/spdoc/internal/driveops"
	"github.com/spdoc/spdoc/internal/graph"
	"github.com/spdoc/spdoc/internal/migrate"
)

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check that credentials and the target library are reachable",
		Args:  cobra.NoArgs,
		RunE:  runPreflight,
	}
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <assignments.csv>",
		Short: "Dry-run a move plan without changing anything",
		Long: `Read a move plan and verify every source file exists and report which
target folders would need to be created. No moves or folder creations
are performed.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <assignments.csv>",
		Short: "Execute a move plan",
		Long: `Execute a move plan: optionally create missing target folders, then
move each file in plan order. Progress is streamed as it happens and a
summary is printed at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: runApply,
	}

	cmd.Flags().Bool("create-folders", false, "create missing target folders before moving")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// newExecutor builds the move orchestrator against the selected library,
// paced by the configured throttle interval.
func newExecutor(cmd *cobra.Command, logger *slog.Logger) (*migrate.Executor, error) {
	if err := config.ValidateCredentials(resolvedCfg); err != nil {
		return nil, err
	}

	tokens := graph.NewAppTokenSource(
		resolvedCfg.TenantID, resolvedCfg.ClientID, resolvedCfg.ClientSecret, logger)
	client := graph.NewClient(graph.BaseURL, defaultHTTPClient(), tokens, logger)

	lib, err := resolveLibrary(cmd.Context(), client)
	if err != nil {
		return nil, err
	}

	logger.Info("selected document library",
		slog.String("library", lib.Name),
		slog.String("drive_id", lib.ID),
	)

	resolver := driveops.NewResolver(client, lib.ID, logger)

	var limiter *rate.Limiter
	if resolvedCfg.Migrate.ThrottleMS > 0 {
		interval := time.Duration(resolvedCfg.Migrate.ThrottleMS) * time.Millisecond
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	return migrate.NewExecutor(resolver, tokens, limiter, logger), nil
}

func runPreflight(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	exec, err := newExecutor(cmd, logger)
	if err != nil {
		return err
	}

	result := exec.Preflight(cmd.Context())

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Success {
		fmt.Println("Preflight passed: credentials valid, library reachable.")
	} else {
		fmt.Println("Preflight failed:")
		for _, issue := range result.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	if !result.Success {
		return fmt.Errorf("preflight found %d issue(s)", len(result.Issues))
	}

	return nil
}

// readPlan loads and parses an assignments CSV file.
func readPlan(path string) ([]migrate.Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()

	assignments, err := migrate.ReadAssignments(f)
	if err != nil {
		return nil, fmt.Errorf("reading plan file %s: %w", path, err)
	}

	return assignments, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	assignments, err := readPlan(args[0])
	if err != nil {
		return err
	}

	exec, err := newExecutor(cmd, logger)
	if err != nil {
		return err
	}

	result := exec.DryRun(cmd.Context(), assignments)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printDryRun(result)
	}

	if !result.CanProceed {
		return fmt.Errorf("plan cannot proceed: %d source file(s) missing", result.FilesMissing)
	}

	return nil
}

func printDryRun(result migrate.DryRunResult) {
	rows := [][]string{
		{"Files found", strconv.Itoa(result.FilesFound)},
		{"Files missing", strconv.Itoa(result.FilesMissing)},
		{"Folders existing", strconv.Itoa(result.FoldersExist)},
		{"Folders to create", strconv.Itoa(result.FoldersToCreate)},
	}

	fmt.Println(renderTable(
		[]string{"Check", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))

	if len(result.MissingFiles) > 0 {
		fmt.Println("\nMissing files:")
		for _, name := range result.MissingFiles {
			fmt.Printf("  - %s\n", name)
		}
	}

	if len(result.FoldersNeeded) > 0 {
		fmt.Println("\nFolders that would be created:")
		for _, path := range result.FoldersNeeded {
			fmt.Printf("  - %s\n", path)
		}
	}

	if result.CanProceed {
		fmt.Println("\nPlan can proceed.")
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	assignments, err := readPlan(args[0])
	if err != nil {
		return err
	}

	exec, err := newExecutor(cmd, logger)
	if err != nil {
		return err
	}

	autoCreate, _ := cmd.Flags().GetBool("create-folders")
	skipConfirm, _ := cmd.Flags().GetBool("yes")

	if !skipConfirm {
		fmt.Printf("About to move %d file(s)", len(assignments))
		if autoCreate {
			fmt.Print(" and create missing target folders")
		}
		fmt.Print(". Continue? [y/N] ")

		if !confirm(os.Stdin) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var summary *migrate.Summary

	enc := json.NewEncoder(os.Stdout)

	for event := range exec.Execute(cmd.Context(), assignments, autoCreate) {
		if flagJSON {
			if err := enc.Encode(event); err != nil {
				return err
			}

			continue
		}

		printEvent(event)

		if event.Summary != nil {
			summary = event.Summary
		}
	}

	if summary != nil {
		printSummary(summary)

		if summary.Failed > 0 {
			return fmt.Errorf("%d move(s) failed", summary.Failed)
		}
	}

	return nil
}

// confirm reads one line and accepts "y" or "yes" (case-insensitive).
func confirm(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

	return answer == "y" || answer == "yes"
}

// printEvent renders one progress event as a single line.
func printEvent(event migrate.ProgressEvent) {
	if event.Phase == migrate.PhaseSummary {
		return
	}

	marker := " ok "
	switch event.Status {
	case migrate.StatusError:
		marker = "FAIL"
	case migrate.StatusSkip:
		marker = "skip"
	}

	fmt.Printf("[%3.0f%%] %s %s/%d/%d %s",
		event.Progress*100, marker, event.Phase, event.Current, event.Total, event.FileName)

	if event.Message != "" {
		fmt.Printf(" (%s)", event.Message)
	}

	fmt.Println()
}

func printSummary(summary *migrate.Summary) {
	rows := [][]string{
		{"Moved", strconv.Itoa(summary.Succeeded)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Skipped (missing source)", strconv.Itoa(summary.Skipped)},
		{"Folders created", strconv.Itoa(summary.FoldersCreated)},
		{"Folder errors", strconv.Itoa(summary.FolderErrors)},
		{"Total assignments", strconv.Itoa(summary.TotalAssignments)},
	}

	fmt.Println()
	fmt.Println(renderTable(
		[]string{"Result", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
