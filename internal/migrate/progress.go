package migrate

// Phase identifies the orchestrator stage an event belongs to.
// Mutations happen in "folders" then "moves"; "summary" is terminal.
type Phase string

const (
	PhaseFolders Phase = "folders"
	PhaseMoves   Phase = "moves"
	PhaseSummary Phase = "summary"
)

// Status is the outcome of one unit of work.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusSkip     Status = "skip"
	StatusComplete Status = "complete"
)

// ProgressEvent is emitted once per unit of work as a run executes.
// Events are ephemeral: consumed once, never persisted. Progress is
// non-decreasing across the whole stream and reaches 1.0 exactly on the
// final summary event. Current and Total count within the event's phase,
// except on the summary event, where they count completed operations
// against the whole run.
type ProgressEvent struct {
	Progress float64  `json:"progress"`
	Phase    Phase    `json:"phase"`
	Status   Status   `json:"status"`
	FileName string   `json:"file,omitempty"`
	Message  string   `json:"message,omitempty"`
	Current  int      `json:"current"`
	Total    int      `json:"total"`
	Summary  *Summary `json:"summary,omitempty"` // non-nil only on the final event
}

// Summary aggregates a completed run. Succeeded + Failed + Skipped always
// equals TotalAssignments — every assignment resolves to exactly one
// outcome.
type Summary struct {
	Succeeded        int `json:"succeeded"`
	Failed           int `json:"failed"`
	Skipped          int `json:"skipped"`
	FoldersCreated   int `json:"folders_created"`
	FolderErrors     int `json:"folder_errors"`
	TotalAssignments int `json:"total_assignments"`
}

// PreflightResult reports whether a run should even be attempted.
type PreflightResult struct {
	Success bool     `json:"success"`
	Issues  []string `json:"issues,omitempty"`
}

// DryRunResult reports what an execution would do, without doing it.
type DryRunResult struct {
	CanProceed      bool     `json:"can_proceed"`
	FilesFound      int      `json:"files_found"`
	FilesMissing    int      `json:"files_missing"`
	FoldersExist    int      `json:"folders_exist"`
	FoldersToCreate int      `json:"folders_to_create"`
	MissingFiles    []string `json:"missing_files,omitempty"`
	FoldersNeeded   []string `json:"folders_needed,omitempty"` // sorted
}
