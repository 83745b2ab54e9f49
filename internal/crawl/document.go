package crawl

import (
	"fmt"
	"strings"
	"time"

	"github.com/spdoc/spdoc/internal/graph"
)

// Document is one discovered file. FullPath is a display snapshot taken
// at crawl time — names and paths can collide or change between crawls,
// so ItemID is the only stable identity.
type Document struct {
	FileName    string    `json:"file_name"`
	Extension   string    `json:"extension"`
	SizeBytes   int64     `json:"size_bytes"`
	SizeDisplay string    `json:"size_readable"`
	MimeType    string    `json:"mime_type"`
	LibraryName string    `json:"library_name"`
	FolderPath  string    `json:"folder_path"`
	FullPath    string    `json:"full_path"`
	Depth       int       `json:"depth"`
	CreatedAt   time.Time `json:"created_date"`
	ModifiedAt  time.Time `json:"modified_date"`
	CreatedBy   string    `json:"created_by"`
	ModifiedBy  string    `json:"modified_by"`
	WebURL      string    `json:"web_url"`
	ItemID      string    `json:"item_id"`
	ParentPath  string    `json:"drive_item_path"`
}

// newDocument builds a Document from a normalized drive item.
func newDocument(item *graph.Item, libraryName, folderPath string, depth int) Document {
	return Document{
		FileName:    item.Name,
		Extension:   fileExtension(item.Name),
		SizeBytes:   item.Size,
		SizeDisplay: FormatSize(item.Size),
		MimeType:    item.MimeType,
		LibraryName: libraryName,
		FolderPath:  folderPath,
		FullPath:    fullPath(libraryName, folderPath, item.Name),
		Depth:       depth,
		CreatedAt:   item.CreatedAt,
		ModifiedAt:  item.ModifiedAt,
		CreatedBy:   displayName(item.CreatedBy),
		ModifiedBy:  displayName(item.ModifiedBy),
		WebURL:      item.WebURL,
		ItemID:      item.ID,
		ParentPath:  item.ParentPath,
	}
}

// fileExtension returns the lowercased extension including the dot,
// or "" for names without one.
func fileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[idx:])
}

// fullPath joins library, folder path, and file name without doubling
// slashes at the library root.
func fullPath(library, folderPath, name string) string {
	if folderPath == "/" {
		return library + "/" + name
	}

	return library + folderPath + "/" + name
}

func displayName(name string) string {
	if name == "" {
		return "Unknown"
	}

	return name
}

// Size unit boundaries for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// FormatSize returns a human-readable size string (e.g. "1.2 MB").
func FormatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
