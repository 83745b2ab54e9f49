package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/contoso.sharepoint.com:/sites/TeamDocs", r.URL.Path)

		json.NewEncoder(w).Encode(siteResponse{
			ID:          "contoso.sharepoint.com,abc,def",
			DisplayName: "Team Docs",
			WebURL:      "https://contoso.sharepoint.com/sites/TeamDocs",
		})
	})

	site, err := client.ResolveSite(context.Background(), "https://contoso.sharepoint.com/sites/TeamDocs")
	require.NoError(t, err)

	assert.Equal(t, "contoso.sharepoint.com,abc,def", site.ID)
	assert.Equal(t, "Team Docs", site.Name)
}

func TestResolveSiteRootSite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/contoso.sharepoint.com", r.URL.Path)

		json.NewEncoder(w).Encode(siteResponse{ID: "root-site"})
	})

	site, err := client.ResolveSite(context.Background(), "https://contoso.sharepoint.com/")
	require.NoError(t, err)
	assert.Equal(t, "root-site", site.ID)
}

func TestResolveSiteBadURL(t *testing.T) {
	client := NewClient(BaseURL, nil, StaticTokenSource("tok"), testLogger())

	_, err := client.ResolveSite(context.Background(), "not a url")
	require.Error(t, err)
}

func TestSiteDrivesPagination(t *testing.T) {
	var baseURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(drivesListResponse{
				Value: []driveResponse{
					{ID: "d3", Name: "Archive", DriveType: "documentLibrary"},
				},
			})

			return
		}

		json.NewEncoder(w).Encode(drivesListResponse{
			Value: []driveResponse{
				{ID: "d1", Name: "Documents", DriveType: "documentLibrary"},
				{ID: "d2", Name: "Preservation Hold Library", DriveType: "other"},
			},
			NextLink: baseURL + "/sites/s1/drives?page=2",
		})
	}))
	t.Cleanup(server.Close)

	baseURL = server.URL

	client := NewClient(server.URL, server.Client(), StaticTokenSource("tok"), testLogger())
	client.sleepFunc = noopSleep

	drives, err := client.SiteDrives(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, drives, 3)

	assert.Equal(t, "d1", drives[0].ID)
	assert.Equal(t, DriveTypeDocumentLibrary, drives[0].DriveType)
	assert.Equal(t, "d3", drives[2].ID)
}
