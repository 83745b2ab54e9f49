package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// listChildrenPageSize is the $top value for children requests.
// 200 is the maximum allowed by the Graph API for drive item collections.
const listChildrenPageSize = 200

// listChildrenSelect trims the children payload to the fields the crawler
// and the move orchestrator actually consume.
const listChildrenSelect = "id,name,size,file,folder,package,createdDateTime," +
	"lastModifiedDateTime,createdBy,lastModifiedBy,webUrl,parentReference"

// Timestamp validation bounds — timestamps outside this range are replaced
// with the current time and a warning is logged.
const (
	minValidYear = 1970
	maxValidYear = 2100
)

// ErrInvalidPath is returned for empty paths or paths with a leading slash.
// Item paths are always relative to the drive root.
var ErrInvalidPath = errors.New("graph: invalid item path")

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into Graph API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// validatePath rejects empty paths and leading slashes.
func validatePath(remotePath string) error {
	if remotePath == "" || strings.HasPrefix(remotePath, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, remotePath)
	}

	return nil
}

// driveItemResponse mirrors the Graph API driveItem JSON exactly.
// Unexported — callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Size                 int64            `json:"size"`
	CreatedDateTime      string           `json:"createdDateTime"`
	LastModifiedDateTime string           `json:"lastModifiedDateTime"`
	CreatedBy            *identitySet     `json:"createdBy"`
	LastModifiedBy       *identitySet     `json:"lastModifiedBy"`
	WebURL               string           `json:"webUrl"`
	ParentReference      *parentRef       `json:"parentReference"`
	File                 *fileFacet       `json:"file"`
	Folder               *folderFacet     `json:"folder"`
	Package              *json.RawMessage `json:"package"`
}

type parentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

type identitySet struct {
	User struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type listChildrenResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           folderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

type moveItemRequest struct {
	ParentReference moveParentRef `json:"parentReference"`
}

type moveParentRef struct {
	ID string `json:"id"`
}

// toItem normalizes a Graph API driveItem response into our Item type.
func (d *driveItemResponse) toItem(logger *slog.Logger) Item {
	item := Item{
		ID:         d.ID,
		Name:       d.Name,
		Size:       d.Size,
		IsFolder:   d.Folder != nil,
		IsPackage:  d.Package != nil,
		ChildCount: ChildCountUnknown,
		WebURL:     d.WebURL,
	}

	if d.ParentReference != nil {
		item.ParentID = d.ParentReference.ID
		item.ParentPath = d.ParentReference.Path
		// Drive IDs come back with inconsistent casing across endpoints;
		// normalize to lowercase so equality checks hold.
		item.DriveID = strings.ToLower(d.ParentReference.DriveID)
	}

	if d.Folder != nil {
		item.ChildCount = d.Folder.ChildCount
	}

	if d.File != nil {
		item.MimeType = d.File.MimeType
	}

	if d.CreatedBy != nil {
		item.CreatedBy = d.CreatedBy.User.DisplayName
	}

	if d.LastModifiedBy != nil {
		item.ModifiedBy = d.LastModifiedBy.User.DisplayName
	}

	item.CreatedAt = parseTimestamp(d.CreatedDateTime, "createdDateTime", d.ID, logger)
	item.ModifiedAt = parseTimestamp(d.LastModifiedDateTime, "lastModifiedDateTime", d.ID, logger)

	return item
}

// parseTimestamp parses an RFC3339 timestamp and validates the year range.
// Invalid or out-of-range timestamps are replaced with time.Now().UTC() and logged.
func parseTimestamp(raw, field, itemID string, logger *slog.Logger) time.Time {
	if raw == "" {
		logger.Warn("empty timestamp, using current time",
			slog.String("field", field),
			slog.String("item_id", itemID),
		)

		return time.Now().UTC()
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid timestamp, using current time",
			slog.String("field", field),
			slog.String("item_id", itemID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Now().UTC()
	}

	if t.Year() < minValidYear || t.Year() > maxValidYear {
		logger.Warn("timestamp out of valid range, using current time",
			slog.String("field", field),
			slog.String("item_id", itemID),
			slog.String("raw", raw),
		)

		return time.Now().UTC()
	}

	return t
}

// fetchItem fetches a single drive item from the given API path and decodes it.
func (c *Client) fetchItem(ctx context.Context, apiPath string) (*Item, error) {
	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding item response: %w", err)
	}

	item := dir.toItem(c.logger)

	return &item, nil
}

// RootItem retrieves the root folder of a drive.
func (c *Client) RootItem(ctx context.Context, driveID string) (*Item, error) {
	c.logger.Debug("getting drive root", slog.String("drive_id", driveID))

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/root", driveID))
}

// GetItemByPath retrieves a drive item by its path relative to the drive
// root, using the percent-encoded path-addressing form. The path must NOT
// have a leading slash. Returns ErrNotFound (wrapped) for missing items.
func (c *Client) GetItemByPath(ctx context.Context, driveID, remotePath string) (*Item, error) {
	if err := validatePath(remotePath); err != nil {
		return nil, err
	}

	c.logger.Debug("getting item by path",
		slog.String("drive_id", driveID),
		slog.String("path", remotePath),
	)

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/root:/%s:", driveID, encodePathSegments(remotePath)))
}

// ListChildren returns all children of a folder, following pagination
// until the collection is exhausted. parentID is an opaque item ID;
// use "root" for the drive root. Folder names never appear in the URL,
// so special characters in names cannot break traversal.
func (c *Client) ListChildren(ctx context.Context, driveID, parentID string) ([]Item, error) {
	c.logger.Debug("listing children",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
	)

	apiPath := fmt.Sprintf("/drives/%s/items/%s/children?$top=%d&$select=%s",
		driveID, parentID, listChildrenPageSize, url.QueryEscape(listChildrenSelect))

	var items []Item

	page := 1

	for apiPath != "" {
		pageItems, nextPath, err := c.listChildrenPage(ctx, apiPath, page)
		if err != nil {
			return nil, err
		}

		items = append(items, pageItems...)
		apiPath = nextPath
		page++
	}

	c.logger.Debug("listed children",
		slog.String("parent_id", parentID),
		slog.Int("total_items", len(items)),
	)

	return items, nil
}

// listChildrenPage fetches a single page of children and returns the items
// and the next page path (empty if no more pages).
func (c *Client) listChildrenPage(ctx context.Context, path string, page int) ([]Item, string, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var lcr listChildrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lcr); err != nil {
		return nil, "", fmt.Errorf("graph: decoding children response: %w", err)
	}

	items := make([]Item, 0, len(lcr.Value))
	for i := range lcr.Value {
		items = append(items, lcr.Value[i].toItem(c.logger))
	}

	c.logger.Debug("fetched children page",
		slog.Int("page", page),
		slog.Int("count", len(items)),
	)

	var nextPath string
	if lcr.NextLink != "" {
		var stripErr error

		nextPath, stripErr = c.stripBaseURL(lcr.NextLink)
		if stripErr != nil {
			return nil, "", stripErr
		}
	}

	return items, nextPath, nil
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for use with Do().
// Returns an error if the URL doesn't start with the expected base.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}

// ChildByName looks up a direct child of a folder by exact name using a
// server-side equality filter. Returns (nil, nil) when no child matches —
// absence is a normal query outcome, not an error.
func (c *Client) ChildByName(ctx context.Context, driveID, parentID, name string) (*Item, error) {
	c.logger.Debug("finding child by name",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	// OData string literals escape embedded single quotes by doubling.
	filter := fmt.Sprintf("name eq '%s'", strings.ReplaceAll(name, "'", "''"))
	apiPath := fmt.Sprintf("/drives/%s/items/%s/children?$filter=%s",
		driveID, parentID, url.QueryEscape(filter))

	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lcr listChildrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lcr); err != nil {
		return nil, fmt.Errorf("graph: decoding filtered children response: %w", err)
	}

	if len(lcr.Value) == 0 {
		return nil, nil
	}

	// Names are unique within a folder; a multi-item response means the
	// filter matched case-insensitively. First match wins either way.
	item := lcr.Value[0].toItem(c.logger)

	return &item, nil
}

// CreateFolder creates a new folder under the given parent.
// Uses conflictBehavior "rename" — on a name collision the service
// auto-renames the new folder instead of failing or overwriting.
func (c *Client) CreateFolder(ctx context.Context, driveID, parentID, name string) (*Item, error) {
	c.logger.Info("creating folder",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	path := fmt.Sprintf("/drives/%s/items/%s/children", driveID, parentID)

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           folderFacet{},
		ConflictBehavior: "rename",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling create folder request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding create folder response: %w", err)
	}

	item := dir.toItem(c.logger)

	return &item, nil
}

// MoveItem moves an item into a new parent folder by patching only its
// parent reference. A failed move is always an error — it leaves an
// unresolved side-effect risk the caller must account for.
func (c *Client) MoveItem(ctx context.Context, driveID, itemID, newParentID string) (*Item, error) {
	c.logger.Info("moving item",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
		slog.String("new_parent_id", newParentID),
	)

	path := fmt.Sprintf("/drives/%s/items/%s", driveID, itemID)

	bodyBytes, err := json.Marshal(moveItemRequest{ParentReference: moveParentRef{ID: newParentID}})
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling move request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPatch, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding move response: %w", err)
	}

	item := dir.toItem(c.logger)

	return &item, nil
}
