package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// siteResponse mirrors the Graph API site JSON response.
type siteResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

func (s *siteResponse) toSite() Site {
	return Site{
		ID:     s.ID,
		Name:   s.DisplayName,
		WebURL: s.WebURL,
	}
}

// driveResponse mirrors the Graph API drive JSON response.
type driveResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
	WebURL    string `json:"webUrl"`
}

func (d *driveResponse) toDrive() Drive {
	return Drive{
		ID:        d.ID,
		Name:      d.Name,
		DriveType: d.DriveType,
		WebURL:    d.WebURL,
	}
}

type drivesListResponse struct {
	Value    []driveResponse `json:"value"`
	NextLink string          `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// ResolveSite resolves a SharePoint site URL to a Site via the
// host-and-path addressing form, e.g.
// "https://tenant.sharepoint.com/sites/Docs" → "/sites/tenant.sharepoint.com:/sites/Docs".
// Failure here is fatal for a run — nothing can be addressed without the site ID.
func (c *Client) ResolveSite(ctx context.Context, siteURL string) (*Site, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("graph: parsing site URL %q: %w", siteURL, err)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("graph: site URL %q has no host", siteURL)
	}

	sitePath := strings.TrimSuffix(u.Path, "/")

	apiPath := "/sites/" + u.Host
	if sitePath != "" {
		apiPath += ":" + encodePathSegments(sitePath)
	}

	c.logger.Info("resolving site",
		slog.String("site_url", siteURL),
	)

	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: resolving site %q: %w", siteURL, err)
	}
	defer resp.Body.Close()

	var sr siteResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("graph: decoding site response: %w", err)
	}

	site := sr.toSite()

	c.logger.Info("resolved site",
		slog.String("site_id", site.ID),
		slog.String("name", site.Name),
	)

	return &site, nil
}

// SiteDrives returns all drives under a site, following pagination.
// The result includes system drives; callers filter by DriveType.
func (c *Client) SiteDrives(ctx context.Context, siteID string) ([]Drive, error) {
	c.logger.Info("listing site drives", slog.String("site_id", siteID))

	apiPath := fmt.Sprintf("/sites/%s/drives", siteID)

	var drives []Drive

	for apiPath != "" {
		resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
		if err != nil {
			return nil, err
		}

		var dlr drivesListResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&dlr)

		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("graph: decoding drives response: %w", decodeErr)
		}

		for i := range dlr.Value {
			drives = append(drives, dlr.Value[i].toDrive())
		}

		apiPath = ""

		if dlr.NextLink != "" {
			apiPath, err = c.stripBaseURL(dlr.NextLink)
			if err != nil {
				return nil, err
			}
		}
	}

	c.logger.Info("listed site drives",
		slog.String("site_id", siteID),
		slog.Int("count", len(drives)),
	)

	return drives, nil
}
