// Package export writes crawl results to CSV, JSON, and plain-text
// structure maps for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spdoc/spdoc/internal/crawl"
)

// csvColumns is the fixed CSV column order.
var csvColumns = []string{
	"file_name",
	"extension",
	"size_bytes",
	"size_readable",
	"mime_type",
	"library_name",
	"folder_path",
	"full_path",
	"depth",
	"created_date",
	"modified_date",
	"created_by",
	"modified_by",
	"web_url",
	"item_id",
}

// Exporter writes one crawl's documents and stats to files in a target
// directory. All files from one Exporter share a timestamp suffix.
type Exporter struct {
	documents []crawl.Document
	stats     crawl.Stats
	outputDir string
	logger    *slog.Logger

	// now is swapped in tests for deterministic filenames.
	now func() time.Time
}

// New creates an Exporter, creating outputDir if needed.
func New(documents []crawl.Document, stats crawl.Stats, outputDir string, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if outputDir == "" {
		outputDir = "."
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: creating output directory: %w", err)
	}

	return &Exporter{
		documents: documents,
		stats:     stats,
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// timestamp returns the shared filename suffix, e.g. "20260830_142501".
func (e *Exporter) timestamp() string {
	return e.now().Format("20060102_150405")
}

// CSV writes all documents as a CSV file and returns its path.
func (e *Exporter) CSV() (string, error) {
	path := filepath.Join(e.outputDir, fmt.Sprintf("spdoc_crawl_%s.csv", e.timestamp()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: creating CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(csvColumns); err != nil {
		return "", fmt.Errorf("export: writing CSV header: %w", err)
	}

	for i := range e.documents {
		d := &e.documents[i]

		row := []string{
			d.FileName,
			d.Extension,
			strconv.FormatInt(d.SizeBytes, 10),
			d.SizeDisplay,
			d.MimeType,
			d.LibraryName,
			d.FolderPath,
			d.FullPath,
			strconv.Itoa(d.Depth),
			d.CreatedAt.Format(time.RFC3339),
			d.ModifiedAt.Format(time.RFC3339),
			d.CreatedBy,
			d.ModifiedBy,
			d.WebURL,
			d.ItemID,
		}

		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("export: writing CSV row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export: flushing CSV: %w", err)
	}

	e.logger.Info("CSV exported", slog.String("path", path), slog.Int("rows", len(e.documents)))

	return path, nil
}

// jsonOutput is the top-level shape of the JSON export.
type jsonOutput struct {
	Metadata  jsonMetadata     `json:"crawl_metadata"`
	Summary   *Summary         `json:"summary"`
	Documents []crawl.Document `json:"documents"`
}

type jsonMetadata struct {
	Timestamp      string    `json:"timestamp"`
	TotalDocuments int       `json:"total_documents"`
	Stats          jsonStats `json:"stats"`
}

// jsonStats mirrors crawl.Stats with stable snake_case keys and the
// elapsed time in whole seconds.
type jsonStats struct {
	LibrariesFound   int     `json:"libraries_found"`
	FoldersTraversed int     `json:"folders_traversed"`
	FilesFound       int     `json:"files_found"`
	FilesSkipped     int     `json:"files_skipped"`
	Errors           int     `json:"errors"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

func toJSONStats(s crawl.Stats) jsonStats {
	return jsonStats{
		LibrariesFound:   s.LibrariesFound,
		FoldersTraversed: s.FoldersTraversed,
		FilesFound:       s.FilesFound,
		FilesSkipped:     s.FilesSkipped,
		Errors:           s.Errors,
		ElapsedSeconds:   s.Elapsed.Seconds(),
	}
}

// JSON writes all documents plus summary statistics as a JSON file and
// returns its path.
func (e *Exporter) JSON() (string, error) {
	path := filepath.Join(e.outputDir, fmt.Sprintf("spdoc_crawl_%s.json", e.timestamp()))

	out := jsonOutput{
		Metadata: jsonMetadata{
			Timestamp:      e.now().Format(time.RFC3339),
			TotalDocuments: len(e.documents),
			Stats:          toJSONStats(e.stats),
		},
		Summary:   e.Summarize(),
		Documents: e.documents,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshaling JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: writing JSON file: %w", err)
	}

	e.logger.Info("JSON exported", slog.String("path", path))

	return path, nil
}

// StructureMap writes an indented text tree of the crawled folder
// hierarchy and returns its path. Useful for comparing layouts before
// and after a reorganization.
func (e *Exporter) StructureMap() (string, error) {
	path := filepath.Join(e.outputDir, fmt.Sprintf("spdoc_structure_%s.txt", e.timestamp()))

	root := newTreeNode()
	for i := range e.documents {
		d := &e.documents[i]
		root.insert(strings.Split(d.FullPath, "/"), d.SizeDisplay)
	}

	var b strings.Builder

	fmt.Fprintln(&b, "Document Library Structure")
	fmt.Fprintln(&b, strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Generated: %s\n", e.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total documents: %d\n", len(e.documents))
	fmt.Fprintln(&b, strings.Repeat("=", 50))
	fmt.Fprintln(&b)

	root.render(&b, "")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("export: writing structure map: %w", err)
	}

	e.logger.Info("structure map exported", slog.String("path", path))

	return path, nil
}

// treeNode is one folder in the structure map. Files and subfolders are
// keyed separately so a file may share a name with a sibling folder
// without one clobbering the other.
type treeNode struct {
	folders map[string]*treeNode
	files   map[string]string // name -> size display
}

func newTreeNode() *treeNode {
	return &treeNode{
		folders: map[string]*treeNode{},
		files:   map[string]string{},
	}
}

func (n *treeNode) insert(parts []string, size string) {
	current := n

	for _, part := range parts[:len(parts)-1] {
		child, ok := current.folders[part]
		if !ok {
			child = newTreeNode()
			current.folders[part] = child
		}
		current = child
	}

	current.files[parts[len(parts)-1]] = size
}

func (n *treeNode) fileCount() int {
	count := len(n.files)
	for _, child := range n.folders {
		count += child.fileCount()
	}

	return count
}

func (n *treeNode) render(b *strings.Builder, prefix string) {
	type entry struct {
		name   string
		folder *treeNode
		size   string
	}

	entries := make([]entry, 0, len(n.folders)+len(n.files))
	for name, child := range n.folders {
		entries = append(entries, entry{name: name, folder: child})
	}

	for name, size := range n.files {
		entries = append(entries, entry{name: name, size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}

		// Same name as both folder and file: folder first.
		return entries[i].folder != nil
	})

	for i, en := range entries {
		last := i == len(entries)-1

		connector := "|-- "
		childPrefix := "|   "
		if last {
			connector = "`-- "
			childPrefix = "    "
		}

		if en.folder != nil {
			fmt.Fprintf(b, "%s%s%s/ (%d files)\n", prefix, connector, en.name, en.folder.fileCount())
			en.folder.render(b, prefix+childPrefix)
		} else {
			fmt.Fprintf(b, "%s%s%s [%s]\n", prefix, connector, en.name, en.size)
		}
	}
}
