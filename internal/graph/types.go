package graph

import "time"

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// DriveTypeDocumentLibrary is the driveType value for SharePoint document
// libraries. Sites also expose system drives (e.g. preservation hold) that
// crawlers must filter out.
const DriveTypeDocumentLibrary = "documentLibrary"

// Site is a resolved SharePoint site.
type Site struct {
	ID     string
	Name   string
	WebURL string
}

// Drive is a document library's storage container.
type Drive struct {
	ID        string
	Name      string
	DriveType string
	WebURL    string
}

// Item represents a drive item (file or folder). Fields are normalized
// from the Graph API response — callers never see raw API data. The ID is
// the only stable identity; names and paths may change between reads.
type Item struct {
	ID         string
	Name       string
	Size       int64
	MimeType   string
	IsFolder   bool
	IsPackage  bool // OneNote notebooks — compound objects, not inventoried as files
	ChildCount int  // ChildCountUnknown if not present
	WebURL     string
	CreatedAt  time.Time
	ModifiedAt time.Time
	CreatedBy  string
	ModifiedBy string
	ParentID   string
	ParentPath string // raw parentReference.path as returned by the API
	DriveID    string
}
