package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spdoc/spdoc/internal/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend serves a canned folder tree keyed by "driveID/parentID".
type fakeBackend struct {
	site     graph.Site
	drives   []graph.Drive
	children map[string][]graph.Item
	failing  map[string]error

	siteErr   error
	drivesErr error

	listCalls []string
}

func (f *fakeBackend) ResolveSite(_ context.Context, _ string) (*graph.Site, error) {
	if f.siteErr != nil {
		return nil, f.siteErr
	}

	return &f.site, nil
}

func (f *fakeBackend) SiteDrives(_ context.Context, _ string) ([]graph.Drive, error) {
	if f.drivesErr != nil {
		return nil, f.drivesErr
	}

	return f.drives, nil
}

func (f *fakeBackend) ListChildren(_ context.Context, driveID, parentID string) ([]graph.Item, error) {
	key := driveID + "/" + parentID
	f.listCalls = append(f.listCalls, key)

	if err, ok := f.failing[key]; ok {
		return nil, err
	}

	return f.children[key], nil
}

func folder(id, name string) graph.Item {
	return graph.Item{ID: id, Name: name, IsFolder: true}
}

func file(id, name string, size int64) graph.Item {
	return graph.Item{
		ID: id, Name: name, Size: size,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCrawlSingleLibrary(t *testing.T) {
	backend := &fakeBackend{
		site:   graph.Site{ID: "s1", Name: "Site"},
		drives: []graph.Drive{{ID: "d1", Name: "Lib", DriveType: graph.DriveTypeDocumentLibrary}},
		children: map[string][]graph.Item{
			"d1/root": {folder("fa", "A"), folder("fb", "B")},
			"d1/fa":   {file("f1", "file1.pdf", 100)},
			"d1/fb":   {},
		},
	}

	crawler := New(backend, "https://contoso.sharepoint.com/sites/x", testLogger())

	docs, stats, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "file1.pdf", docs[0].FileName)
	assert.Equal(t, "/A", docs[0].FolderPath)
	assert.Equal(t, "Lib/A/file1.pdf", docs[0].FullPath)
	assert.Equal(t, 1, docs[0].Depth)
	assert.Equal(t, "Lib", docs[0].LibraryName)

	assert.Equal(t, 1, stats.LibrariesFound)
	assert.Equal(t, 3, stats.FoldersTraversed) // root, A, B
	assert.Equal(t, 1, stats.FilesFound)
	assert.Equal(t, 0, stats.Errors)
}

func TestCrawlSkipsNonLibraryDrives(t *testing.T) {
	backend := &fakeBackend{
		site: graph.Site{ID: "s1"},
		drives: []graph.Drive{
			{ID: "d1", Name: "Docs", DriveType: graph.DriveTypeDocumentLibrary},
			{ID: "d2", Name: "Preservation Hold Library", DriveType: "other"},
		},
		children: map[string][]graph.Item{
			"d1/root": {file("f1", "a.txt", 1)},
		},
	}

	crawler := New(backend, "https://x", testLogger())

	docs, stats, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	assert.Len(t, docs, 1)
	assert.Equal(t, 1, stats.LibrariesFound)

	for _, call := range backend.listCalls {
		assert.NotContains(t, call, "d2/")
	}
}

func TestCrawlTraversalOrder(t *testing.T) {
	// root lists A then B; A contains A1. Depth-first means A and its
	// subtree come before B.
	backend := &fakeBackend{
		site:   graph.Site{ID: "s1"},
		drives: []graph.Drive{{ID: "d1", Name: "Lib", DriveType: graph.DriveTypeDocumentLibrary}},
		children: map[string][]graph.Item{
			"d1/root": {folder("fa", "A"), folder("fb", "B")},
			"d1/fa":   {folder("fa1", "A1")},
			"d1/fa1":  {},
			"d1/fb":   {},
		},
	}

	crawler := New(backend, "https://x", testLogger())

	_, _, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"d1/root", "d1/fa", "d1/fa1", "d1/fb"}, backend.listCalls)
}

func TestCrawlListingErrorAbandonsSubtreeOnly(t *testing.T) {
	backend := &fakeBackend{
		site:   graph.Site{ID: "s1"},
		drives: []graph.Drive{{ID: "d1", Name: "Lib", DriveType: graph.DriveTypeDocumentLibrary}},
		children: map[string][]graph.Item{
			"d1/root": {folder("fa", "A"), folder("fb", "B")},
			"d1/fb":   {file("f2", "ok.txt", 1)},
		},
		failing: map[string]error{
			"d1/fa": errors.New("boom"),
		},
	}

	crawler := New(backend, "https://x", testLogger())

	docs, stats, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "ok.txt", docs[0].FileName)
	assert.Equal(t, 1, stats.Errors)
}

func TestCrawlSkipsPackages(t *testing.T) {
	backend := &fakeBackend{
		site:   graph.Site{ID: "s1"},
		drives: []graph.Drive{{ID: "d1", Name: "Lib", DriveType: graph.DriveTypeDocumentLibrary}},
		children: map[string][]graph.Item{
			"d1/root": {
				{ID: "n1", Name: "Team Notebook", IsPackage: true},
				file("f1", "real.docx", 5),
			},
		},
	}

	crawler := New(backend, "https://x", testLogger())

	docs, stats, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	assert.Len(t, docs, 1)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 1, stats.FilesFound)
}

func TestCrawlSiteResolutionFailureIsFatal(t *testing.T) {
	backend := &fakeBackend{siteErr: errors.New("tenant not found")}

	crawler := New(backend, "https://x", testLogger())

	_, _, err := crawler.Crawl(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving site")
}

func TestFileExtension(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"report.PDF", ".pdf"},
		{"archive.tar.gz", ".gz"},
		{"README", ""},
		{".hidden", ""},
		{"trailing.", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, fileExtension(tc.name), "name %q", tc.name)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
	assert.Equal(t, "2.0 GB", FormatSize(2*1024*1024*1024))
}

func TestFullPathAtLibraryRoot(t *testing.T) {
	backend := &fakeBackend{
		site:   graph.Site{ID: "s1"},
		drives: []graph.Drive{{ID: "d1", Name: "Lib", DriveType: graph.DriveTypeDocumentLibrary}},
		children: map[string][]graph.Item{
			"d1/root": {file("f1", "top.txt", 1)},
		},
	}

	crawler := New(backend, "https://x", testLogger())

	docs, _, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "Lib/top.txt", docs[0].FullPath, "no doubled slash at library root")
	assert.Equal(t, 0, docs[0].Depth)
}
