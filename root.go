package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spdoc/spdoc/internal/config"
	"github.com/spdoc/spdoc/internal/graph"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagSite       string
	flagLibrary    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE, available to all subcommands.
var resolvedCfg *config.Config

// httpClientTimeout bounds every Graph request so a hung connection
// cannot block a CLI command indefinitely.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "spdoc",
		Short:   "SharePoint document inventory and reorganization tool",
		Long:    "Crawl SharePoint document libraries into an inventory, plan file moves, and apply them safely.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagSite, "site", "", "SharePoint site URL")
	cmd.PersistentFlags().StringVar(&flagLibrary, "library", "", "document library name (default: first library on the site)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newPreflightCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newApplyCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		SiteURL:    flagSite,
	}

	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newGraphClient validates credentials and builds the Graph client with a
// client-credentials token source. Commands that go online call this.
func newGraphClient(logger *slog.Logger) (*graph.Client, error) {
	if err := config.ValidateCredentials(resolvedCfg); err != nil {
		return nil, err
	}

	tokens := graph.NewAppTokenSource(
		resolvedCfg.TenantID, resolvedCfg.ClientID, resolvedCfg.ClientSecret, logger)

	return graph.NewClient(graph.BaseURL, defaultHTTPClient(), tokens, logger), nil
}

// resolveLibrary resolves the configured site and selects the target
// document library: --library by name, otherwise the first one listed.
func resolveLibrary(ctx context.Context, client *graph.Client) (*graph.Drive, error) {
	site, err := client.ResolveSite(ctx, resolvedCfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("resolving site: %w", err)
	}

	drives, err := client.SiteDrives(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("listing drives: %w", err)
	}

	for i := range drives {
		d := &drives[i]
		if d.DriveType != graph.DriveTypeDocumentLibrary {
			continue
		}

		if flagLibrary == "" || d.Name == flagLibrary {
			return d, nil
		}
	}

	if flagLibrary != "" {
		return nil, fmt.Errorf("document library %q not found on site", flagLibrary)
	}

	return nil, fmt.Errorf("site has no document libraries")
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
