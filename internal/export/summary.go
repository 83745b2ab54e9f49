package export

import (
	"sort"

	"github.com/spdoc/spdoc/internal/crawl"
)

// Folders holding more than this many files are flagged as overstuffed.
const overstuffedThreshold = 20

// Files deeper than this many folder levels are flagged as deeply nested.
const deepNestingThreshold = 5

// Summary aggregates metadata across all crawled documents.
type Summary struct {
	FileTypes           map[string]int  `json:"file_types"`
	TotalSizeBytes      int64           `json:"total_size_bytes"`
	TotalSizeReadable   string          `json:"total_size_readable"`
	AvgFileSizeReadable string          `json:"avg_file_size_readable"`
	MaxFolderDepth      int             `json:"max_folder_depth"`
	AvgFolderDepth      float64         `json:"avg_folder_depth"`
	DocumentsPerLibrary map[string]int  `json:"documents_per_library"`
	TopAuthors          []AuthorCount   `json:"top_authors"`
	PotentialIssues     PotentialIssues `json:"potential_issues"`
}

// AuthorCount pairs a creator's display name with their document count.
type AuthorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PotentialIssues highlights structural problems worth reorganizing.
type PotentialIssues struct {
	OverstuffedFolders     map[string]int `json:"overstuffed_folders"`
	DeeplyNestedFilesCount int            `json:"deeply_nested_files_count"`
	DeeplyNestedExamples   []string       `json:"deeply_nested_examples"`
}

// Summarize computes aggregate statistics over the exporter's documents.
// Returns nil when there are no documents.
func (e *Exporter) Summarize() *Summary {
	if len(e.documents) == 0 {
		return nil
	}

	s := &Summary{
		FileTypes:           map[string]int{},
		DocumentsPerLibrary: map[string]int{},
		PotentialIssues: PotentialIssues{
			OverstuffedFolders: map[string]int{},
		},
	}

	authorCounts := map[string]int{}
	folderCounts := map[string]int{}
	var totalDepth int
	var deepFiles []string

	for i := range e.documents {
		d := &e.documents[i]

		s.FileTypes[d.Extension]++
		s.DocumentsPerLibrary[d.LibraryName]++
		authorCounts[d.CreatedBy]++
		folderCounts[d.FolderPath]++
		s.TotalSizeBytes += d.SizeBytes

		totalDepth += d.Depth
		if d.Depth > s.MaxFolderDepth {
			s.MaxFolderDepth = d.Depth
		}

		if d.Depth > deepNestingThreshold {
			deepFiles = append(deepFiles, d.FullPath)
		}
	}

	n := len(e.documents)
	s.TotalSizeReadable = crawl.FormatSize(s.TotalSizeBytes)
	s.AvgFileSizeReadable = crawl.FormatSize(s.TotalSizeBytes / int64(n))
	s.AvgFolderDepth = float64(totalDepth) / float64(n)

	s.TopAuthors = topAuthors(authorCounts, 10)

	for path, count := range folderCounts {
		if count > overstuffedThreshold {
			s.PotentialIssues.OverstuffedFolders[path] = count
		}
	}

	sort.Strings(deepFiles)
	s.PotentialIssues.DeeplyNestedFilesCount = len(deepFiles)
	if len(deepFiles) > 10 {
		deepFiles = deepFiles[:10]
	}
	s.PotentialIssues.DeeplyNestedExamples = deepFiles

	return s
}

// topAuthors returns the limit most prolific authors, ties broken by name.
func topAuthors(counts map[string]int, limit int) []AuthorCount {
	authors := make([]AuthorCount, 0, len(counts))
	for name, count := range counts {
		authors = append(authors, AuthorCount{Name: name, Count: count})
	}

	sort.Slice(authors, func(i, j int) bool {
		if authors[i].Count != authors[j].Count {
			return authors[i].Count > authors[j].Count
		}
		return authors[i].Name < authors[j].Name
	})

	if len(authors) > limit {
		authors = authors[:limit]
	}

	return authors
}
