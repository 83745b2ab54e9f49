package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spdoc/spdoc/internal/crawl"
	"github.com/spdoc/spdoc/internal/inventory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedRun(t *testing.T, dbPath, siteURL string, docs []crawl.Document, stats crawl.Stats) int64 {
	t.Helper()

	store, err := inventory.Open(dbPath, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.SaveRun(context.Background(), siteURL, docs, stats)
	require.NoError(t, err)

	return runID
}

func TestLoadStoredRunLatest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "inventory.db")

	first := []crawl.Document{{
		FileName:    "old.pdf",
		Extension:   "pdf",
		SizeBytes:   100,
		LibraryName: "Documents",
		FolderPath:  "/Archive",
		FullPath:    "Documents/Archive/old.pdf",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ModifiedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	second := []crawl.Document{
		{FileName: "a.docx", Extension: "docx", SizeBytes: 2048, LibraryName: "Documents", FullPath: "Documents/a.docx"},
		{FileName: "b.xlsx", Extension: "xlsx", SizeBytes: 512, LibraryName: "Documents", FullPath: "Documents/b.xlsx"},
	}

	seedRun(t, dbPath, "https://contoso.sharepoint.com/sites/x", first, crawl.Stats{FilesFound: 1})
	secondID := seedRun(t, dbPath, "https://contoso.sharepoint.com/sites/x", second, crawl.Stats{FilesFound: 2, FoldersTraversed: 3})

	docs, stats, run, err := loadStoredRun(context.Background(), dbPath, 0, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, secondID, run.ID)
	assert.Equal(t, 2, stats.FilesFound)
	assert.Equal(t, 3, stats.FoldersTraversed)

	require.Len(t, docs, 2)
	assert.Equal(t, "a.docx", docs[0].FileName)
	assert.Equal(t, "2.0 KB", docs[0].SizeDisplay)
	assert.Equal(t, "b.xlsx", docs[1].FileName)
}

func TestLoadStoredRunByID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "inventory.db")

	firstID := seedRun(t, dbPath, "https://contoso.sharepoint.com/sites/x",
		[]crawl.Document{{FileName: "keep.pdf", FullPath: "Documents/keep.pdf"}},
		crawl.Stats{FilesFound: 1})
	seedRun(t, dbPath, "https://contoso.sharepoint.com/sites/x", nil, crawl.Stats{})

	docs, stats, run, err := loadStoredRun(context.Background(), dbPath, firstID, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, firstID, run.ID)
	assert.Equal(t, 1, stats.FilesFound)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.pdf", docs[0].FileName)
}

func TestLoadStoredRunUnknownID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "inventory.db")
	seedRun(t, dbPath, "https://contoso.sharepoint.com/sites/x", nil, crawl.Stats{})

	_, _, _, err := loadStoredRun(context.Background(), dbPath, 999, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 999 not found")
}

func TestLoadStoredRunEmptyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "inventory.db")

	_, _, _, err := loadStoredRun(context.Background(), dbPath, 0, discardLogger())
	require.ErrorIs(t, err, inventory.ErrNoRuns)
}
