package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spdoc/spdoc/internal/crawl"
	"github.com/spdoc/spdoc/internal/export"
	"github.com/spdoc/spdoc/internal/graph"
	"github.com/spdoc/spdoc/internal/inventory"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl all document libraries into an inventory",
		Long: `Walk every document library on the configured SharePoint site,
record all files in the local inventory database, and export the results.`,
		Args: cobra.NoArgs,
		RunE: runCrawl,
	}

	cmd.Flags().String("db", "", "inventory database path (overrides config)")
	cmd.Flags().String("out", "", "export output directory (overrides config)")
	cmd.Flags().Bool("no-db", false, "skip writing the inventory database")
	cmd.Flags().Bool("csv", false, "export results as CSV")
	cmd.Flags().Bool("structure", false, "export a text map of the folder structure")

	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded crawl runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	cmd.Flags().String("db", "", "inventory database path (overrides config)")

	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a recorded crawl run without re-crawling",
		Long: `Read a crawl run back from the inventory database and write the
requested export files. Defaults to the most recent run.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().Int64("run", 0, "crawl run ID to export (default: latest)")
	cmd.Flags().String("db", "", "inventory database path (overrides config)")
	cmd.Flags().String("out", "", "export output directory (overrides config)")
	cmd.Flags().Bool("csv", false, "export results as CSV")
	cmd.Flags().Bool("structure", false, "export a text map of the folder structure")

	return cmd
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test connectivity: resolve the site and list its libraries",
		Args:  cobra.NoArgs,
		RunE:  runTest,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	client, err := newGraphClient(logger)
	if err != nil {
		return err
	}

	crawler := crawl.New(client, resolvedCfg.SiteURL, logger)

	docs, stats, err := crawler.Crawl(ctx)
	if err != nil {
		return err
	}

	noDB, _ := cmd.Flags().GetBool("no-db")
	if !noDB {
		dbPath := dbPathFromFlags(cmd)

		store, err := inventory.Open(dbPath, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.SaveRun(ctx, resolvedCfg.SiteURL, docs, stats)
		if err != nil {
			return err
		}

		statusf("Saved crawl run %d to %s\n", runID, dbPath)
	}

	if err := exportCrawl(cmd, docs, stats); err != nil {
		return err
	}

	printCrawlStats(stats)

	return nil
}

// dbPathFromFlags returns the effective inventory database path for a
// command carrying a --db flag.
func dbPathFromFlags(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		return v
	}

	return resolvedCfg.DBPath
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := inventory.Open(dbPathFromFlags(cmd), buildLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		type runOut struct {
			ID        int64  `json:"id"`
			SiteURL   string `json:"site_url"`
			CrawledAt string `json:"crawled_at"`
			Files     int    `json:"files_found"`
			Errors    int    `json:"errors"`
		}

		out := make([]runOut, 0, len(runs))
		for _, r := range runs {
			out = append(out, runOut{
				ID:        r.ID,
				SiteURL:   r.SiteURL,
				CrawledAt: r.CrawledAt.UTC().Format(time.RFC3339),
				Files:     r.Stats.FilesFound,
				Errors:    r.Stats.Errors,
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if len(runs) == 0 {
		statusf("No crawl runs recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.CrawledAt.UTC().Format("2006-01-02 15:04"),
			r.SiteURL,
			strconv.Itoa(r.Stats.FilesFound),
			strconv.Itoa(r.Stats.Errors),
		})
	}

	fmt.Println(renderTable(
		[]string{"Run", "Crawled (UTC)", "Site", "Files", "Errors"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))

	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runID, _ := cmd.Flags().GetInt64("run")

	docs, stats, run, err := loadStoredRun(ctx, dbPathFromFlags(cmd), runID, buildLogger())
	if err != nil {
		return err
	}

	statusf("Exporting run %d (%s, %d documents)\n", run.ID, run.CrawledAt.UTC().Format("2006-01-02 15:04"), len(docs))

	// An export command that writes nothing is useless, so CSV is the
	// default when no format flag is given.
	wantCSV, _ := cmd.Flags().GetBool("csv")
	wantStructure, _ := cmd.Flags().GetBool("structure")

	if !wantCSV && !wantStructure && !flagJSON {
		_ = cmd.Flags().Set("csv", "true")
	}

	return exportCrawl(cmd, docs, stats)
}

// loadStoredRun reads one crawl run and its documents back from the
// inventory database. A runID of 0 selects the most recent run.
func loadStoredRun(ctx context.Context, dbPath string, runID int64, logger *slog.Logger) ([]crawl.Document, crawl.Stats, *inventory.Run, error) {
	store, err := inventory.Open(dbPath, logger)
	if err != nil {
		return nil, crawl.Stats{}, nil, err
	}
	defer store.Close()

	var run *inventory.Run

	if runID == 0 {
		run, err = store.LatestRun(ctx)
		if err != nil {
			return nil, crawl.Stats{}, nil, err
		}
	} else {
		runs, err := store.Runs(ctx)
		if err != nil {
			return nil, crawl.Stats{}, nil, err
		}

		for i := range runs {
			if runs[i].ID == runID {
				run = &runs[i]
				break
			}
		}

		if run == nil {
			return nil, crawl.Stats{}, nil, fmt.Errorf("crawl run %d not found in %s", runID, dbPath)
		}
	}

	docs, err := store.Documents(ctx, run.ID)
	if err != nil {
		return nil, crawl.Stats{}, nil, err
	}

	return docs, run.Stats, run, nil
}

// exportCrawl writes the requested export files for one crawl.
func exportCrawl(cmd *cobra.Command, docs []crawl.Document, stats crawl.Stats) error {
	wantCSV, _ := cmd.Flags().GetBool("csv")
	wantStructure, _ := cmd.Flags().GetBool("structure")

	if !wantCSV && !wantStructure && !flagJSON {
		return nil
	}

	outDir := resolvedCfg.OutputDir
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		outDir = v
	}

	exporter, err := export.New(docs, stats, outDir, buildLogger())
	if err != nil {
		return err
	}

	if wantCSV {
		path, err := exporter.CSV()
		if err != nil {
			return err
		}

		statusf("CSV written to %s\n", path)
	}

	if flagJSON {
		path, err := exporter.JSON()
		if err != nil {
			return err
		}

		statusf("JSON written to %s\n", path)
	}

	if wantStructure {
		path, err := exporter.StructureMap()
		if err != nil {
			return err
		}

		statusf("Structure map written to %s\n", path)
	}

	return nil
}

func printCrawlStats(stats crawl.Stats) {
	rows := [][]string{
		{"Libraries", strconv.Itoa(stats.LibrariesFound)},
		{"Folders traversed", strconv.Itoa(stats.FoldersTraversed)},
		{"Files found", strconv.Itoa(stats.FilesFound)},
		{"Files skipped", strconv.Itoa(stats.FilesSkipped)},
		{"Errors", strconv.Itoa(stats.Errors)},
		{"Elapsed", stats.Elapsed.Round(time.Millisecond).String()},
	}

	fmt.Println(renderTable(
		[]string{"Stat", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}

func runTest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	client, err := newGraphClient(logger)
	if err != nil {
		return err
	}

	site, err := client.ResolveSite(ctx, resolvedCfg.SiteURL)
	if err != nil {
		return fmt.Errorf("resolving site: %w", err)
	}

	drives, err := client.SiteDrives(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("listing drives: %w", err)
	}

	var libraries []graph.Drive
	for _, d := range drives {
		if d.DriveType == graph.DriveTypeDocumentLibrary {
			libraries = append(libraries, d)
		}
	}

	if flagJSON {
		type libraryOut struct {
			Name    string `json:"name"`
			DriveID string `json:"drive_id"`
		}

		out := struct {
			SiteID    string       `json:"site_id"`
			SiteName  string       `json:"site_name"`
			Libraries []libraryOut `json:"libraries"`
		}{SiteID: site.ID, SiteName: site.Name}

		for _, lib := range libraries {
			out.Libraries = append(out.Libraries, libraryOut{Name: lib.Name, DriveID: lib.ID})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	fmt.Printf("Connected to site: %s (%s)\n", site.Name, site.ID)

	rows := make([][]string, 0, len(libraries))
	for _, lib := range libraries {
		rows = append(rows, []string{lib.Name, lib.ID})
	}

	fmt.Println(renderTable(
		[]string{"Library", "Drive ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))

	return nil
}
