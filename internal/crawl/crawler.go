// Package crawl walks every document library of a SharePoint site and
// produces a flat document inventory. Traversal is addressed exclusively
// by opaque item IDs — folder names with special characters cannot break
// it — and a listing failure in one folder abandons only that subtree.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spdoc/spdoc/internal/graph"
)

// Backend is the slice of the Graph client the crawler consumes.
type Backend interface {
	ResolveSite(ctx context.Context, siteURL string) (*graph.Site, error)
	SiteDrives(ctx context.Context, siteID string) ([]graph.Drive, error)
	ListChildren(ctx context.Context, driveID, parentID string) ([]graph.Item, error)
}

// Stats are the mutable counters for one crawl invocation.
// Reset at the start of each run.
type Stats struct {
	LibrariesFound   int
	FoldersTraversed int
	FilesFound       int
	FilesSkipped     int
	Errors           int
	Elapsed          time.Duration
}

// Crawler enumerates a site's document libraries depth-first.
type Crawler struct {
	backend Backend
	siteURL string
	logger  *slog.Logger

	docs  []Document
	stats Stats
}

// New creates a Crawler for the given site.
func New(backend Backend, siteURL string, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Crawler{
		backend: backend,
		siteURL: strings.TrimSuffix(siteURL, "/"),
		logger:  logger,
	}
}

// folderFrame is one pending folder on the traversal worklist.
// An explicit stack bounds memory on deep trees and keeps the walk
// restartable; path and depth are carried for record metadata only,
// never for addressing.
type folderFrame struct {
	folderID string
	path     string
	depth    int
}

// Crawl enumerates every library, folder, and file on the site.
// Site resolution or library listing failure is fatal; a listing error
// inside one folder increments Errors and abandons only that subtree.
func (c *Crawler) Crawl(ctx context.Context) ([]Document, Stats, error) {
	start := time.Now()
	c.docs = nil
	c.stats = Stats{}

	c.logger.Info("starting crawl", slog.String("site_url", c.siteURL))

	site, err := c.backend.ResolveSite(ctx, c.siteURL)
	if err != nil {
		return nil, c.stats, fmt.Errorf("crawl: resolving site: %w", err)
	}

	libraries, err := c.documentLibraries(ctx, site.ID)
	if err != nil {
		return nil, c.stats, err
	}

	for _, lib := range libraries {
		c.logger.Info("crawling library",
			slog.String("library", lib.Name),
			slog.String("drive_id", lib.ID),
		)

		c.crawlLibrary(ctx, lib)
	}

	c.stats.Elapsed = time.Since(start)

	c.logger.Info("crawl complete",
		slog.Int("libraries", c.stats.LibrariesFound),
		slog.Int("folders", c.stats.FoldersTraversed),
		slog.Int("files", c.stats.FilesFound),
		slog.Int("skipped", c.stats.FilesSkipped),
		slog.Int("errors", c.stats.Errors),
		slog.Duration("elapsed", c.stats.Elapsed),
	)

	return c.docs, c.stats, nil
}

// documentLibraries lists the site's drives and keeps only document
// libraries — sites also carry system drives that must not be crawled.
func (c *Crawler) documentLibraries(ctx context.Context, siteID string) ([]graph.Drive, error) {
	drives, err := c.backend.SiteDrives(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("crawl: listing drives: %w", err)
	}

	libraries := make([]graph.Drive, 0, len(drives))

	for _, d := range drives {
		if d.DriveType == graph.DriveTypeDocumentLibrary {
			libraries = append(libraries, d)
		}
	}

	c.stats.LibrariesFound = len(libraries)

	c.logger.Info("found document libraries", slog.Int("count", len(libraries)))

	return libraries, nil
}

// crawlLibrary walks one library depth-first using an explicit worklist.
// Every folder is fully paginated (ListChildren drains all pages) before
// any of its subfolders is visited.
func (c *Crawler) crawlLibrary(ctx context.Context, lib graph.Drive) {
	stack := []folderFrame{{folderID: "root", path: "/", depth: 0}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.stats.FoldersTraversed++

		items, err := c.backend.ListChildren(ctx, lib.ID, frame.folderID)
		if err != nil {
			c.stats.Errors++
			c.logger.Error("error listing folder, abandoning subtree",
				slog.String("library", lib.Name),
				slog.String("path", frame.path),
				slog.String("error", err.Error()),
			)

			continue
		}

		var subfolders []folderFrame

		for i := range items {
			item := &items[i]

			switch {
			case item.IsPackage:
				// OneNote notebooks are compound objects, not documents.
				c.stats.FilesSkipped++
			case item.IsFolder:
				subfolders = append(subfolders, folderFrame{
					folderID: item.ID,
					path:     childPath(frame.path, item.Name),
					depth:    frame.depth + 1,
				})
			default:
				c.docs = append(c.docs, newDocument(item, lib.Name, frame.path, frame.depth))
				c.stats.FilesFound++
			}
		}

		// Push in reverse so the walk visits subfolders in listing order.
		for i := len(subfolders) - 1; i >= 0; i-- {
			stack = append(stack, subfolders[i])
		}
	}
}

// childPath extends a display path with a child folder's name.
func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}

	return parent + "/" + name
}
