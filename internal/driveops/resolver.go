// Package driveops translates between slash-delimited logical paths and
// the backend's opaque item IDs. Lookups treat absence as a normal
// outcome and return nil/empty without error; mutations (folder creation,
// moves) always surface failure as an error, because a failed mutation is
// an unresolved side-effect risk.
package driveops

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/spdoc/spdoc/internal/graph"
)

// Graph is the slice of the Graph client the resolver consumes.
type Graph interface {
	RootItem(ctx context.Context, driveID string) (*graph.Item, error)
	ChildByName(ctx context.Context, driveID, parentID, name string) (*graph.Item, error)
	GetItemByPath(ctx context.Context, driveID, remotePath string) (*graph.Item, error)
	CreateFolder(ctx context.Context, driveID, parentID, name string) (*graph.Item, error)
	MoveItem(ctx context.Context, driveID, itemID, newParentID string) (*graph.Item, error)
}

// Resolver resolves and creates folder paths within one drive.
type Resolver struct {
	client  Graph
	driveID string
	logger  *slog.Logger
}

// NewResolver creates a Resolver bound to the given drive.
func NewResolver(client Graph, driveID string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		client:  client,
		driveID: driveID,
		logger:  logger,
	}
}

// DriveID returns the drive this resolver is bound to.
func (r *Resolver) DriveID() string {
	return r.driveID
}

// Root returns the drive root's item ID.
func (r *Resolver) Root(ctx context.Context) (string, error) {
	root, err := r.client.RootItem(ctx, r.driveID)
	if err != nil {
		return "", fmt.Errorf("driveops: getting drive root: %w", err)
	}

	return root.ID, nil
}

// splitPath breaks a slash-delimited path into trimmed, NFC-normalized
// segments, dropping empties. SharePoint stores names in NFC; normalizing
// here keeps equality filters working for names typed in NFD (common on
// macOS clipboards).
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		segments = append(segments, norm.NFC.String(p))
	}

	return segments
}

// ResolveFolderPath walks the path segment by segment from the drive root
// and returns the final folder's item ID. A missing segment returns
// ("", nil) — this is a query, so absence is a normal outcome, not an
// error. An empty path resolves to the drive root.
func (r *Resolver) ResolveFolderPath(ctx context.Context, path string) (string, error) {
	currentID, err := r.Root(ctx)
	if err != nil {
		return "", err
	}

	for _, segment := range splitPath(path) {
		child, err := r.client.ChildByName(ctx, r.driveID, currentID, segment)
		if err != nil {
			return "", fmt.Errorf("driveops: looking up segment %q: %w", segment, err)
		}

		if child == nil {
			r.logger.Debug("folder segment not found",
				slog.String("path", path),
				slog.String("segment", segment),
			)

			return "", nil
		}

		currentID = child.ID
	}

	r.logger.Debug("resolved folder path",
		slog.String("path", path),
		slog.String("item_id", currentID),
	)

	return currentID, nil
}

// CreateFolderRecursive walks the path from the drive root, creating any
// missing segment with conflict behavior "rename", and returns the leaf
// folder's item ID. Re-invoking on a fully existing path performs zero
// creations and returns the existing leaf ID.
func (r *Resolver) CreateFolderRecursive(ctx context.Context, path string) (string, error) {
	currentID, err := r.Root(ctx)
	if err != nil {
		return "", err
	}

	for _, segment := range splitPath(path) {
		child, err := r.client.ChildByName(ctx, r.driveID, currentID, segment)
		if err != nil {
			return "", fmt.Errorf("driveops: looking up segment %q: %w", segment, err)
		}

		if child != nil {
			currentID = child.ID
			continue
		}

		created, err := r.client.CreateFolder(ctx, r.driveID, currentID, segment)
		if err != nil {
			return "", fmt.Errorf("driveops: creating folder %q: %w", segment, err)
		}

		r.logger.Info("created folder",
			slog.String("name", created.Name),
			slog.String("item_id", created.ID),
		)

		currentID = created.ID
	}

	return currentID, nil
}

// FindItemByPath looks up an item by its full path using the direct
// percent-encoded addressing form — faster than the segment walk for a
// known path. Returns (nil, nil) when the item does not exist.
func (r *Resolver) FindItemByPath(ctx context.Context, path string) (*graph.Item, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if cleaned == "" {
		return nil, nil
	}

	item, err := r.client.GetItemByPath(ctx, r.driveID, cleaned)
	if err != nil {
		if graph.IsNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("driveops: finding item at %q: %w", path, err)
	}

	return item, nil
}

// MoveFile moves an item into the target folder by patching its parent
// reference. Unlike lookups, failure is always returned as an error.
func (r *Resolver) MoveFile(ctx context.Context, itemID, targetFolderID string) (*graph.Item, error) {
	moved, err := r.client.MoveItem(ctx, r.driveID, itemID, targetFolderID)
	if err != nil {
		return nil, fmt.Errorf("driveops: moving item %s: %w", itemID, err)
	}

	return moved, nil
}
