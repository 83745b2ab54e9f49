// Package migrate executes approved relocation plans against a
// non-transactional document backend: idempotent folder creation first,
// then file moves, with per-item failure isolation and a lazily pulled
// progress stream.
package migrate

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/spdoc/spdoc/internal/graph"
)

// PathOps is the slice of the path resolver the executor consumes.
// Satisfied by *driveops.Resolver.
type PathOps interface {
	Root(ctx context.Context) (string, error)
	ResolveFolderPath(ctx context.Context, path string) (string, error)
	CreateFolderRecursive(ctx context.Context, path string) (string, error)
	FindItemByPath(ctx context.Context, path string) (*graph.Item, error)
	MoveFile(ctx context.Context, itemID, targetFolderID string) (*graph.Item, error)
}

// defaultMoveInterval paces move requests to stay under SharePoint
// throttling thresholds.
const defaultMoveInterval = 300 * time.Millisecond

// Executor runs one relocation batch as a single pass:
// preflight or dry run first if the caller wants them, then
// folders → moves → summary. No retries across phases.
type Executor struct {
	ops     PathOps
	tokens  graph.TokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A nil limiter gets the default move
// pacing; tests pass rate.NewLimiter(rate.Inf, 0) to run unthrottled.
func NewExecutor(ops PathOps, tokens graph.TokenSource, limiter *rate.Limiter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(defaultMoveInterval), 1)
	}

	return &Executor{
		ops:     ops,
		tokens:  tokens,
		limiter: limiter,
		logger:  logger,
	}
}

// Preflight validates that a token can be obtained and the drive root is
// reachable. Mutates nothing; reports issues instead of failing.
func (e *Executor) Preflight(ctx context.Context) PreflightResult {
	e.logger.Info("starting preflight checks")

	var issues []string

	tok, err := e.tokens.Token()

	switch {
	case err != nil:
		issues = append(issues, fmt.Sprintf("token retrieval failed: %v", err))
	case tok == "":
		issues = append(issues, "obtained an empty authentication token")
	default:
		e.logger.Info("preflight: token obtained")
	}

	if _, err := e.ops.Root(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("drive root not accessible: %v", err))
	} else {
		e.logger.Info("preflight: drive root reachable")
	}

	result := PreflightResult{
		Success: len(issues) == 0,
		Issues:  issues,
	}

	e.logger.Info("preflight complete",
		slog.Bool("success", result.Success),
		slog.Int("issues", len(issues)),
	)

	return result
}

// DryRun checks, for every assignment independently, whether the source
// file exists and whether the target folder already exists — without
// creating or moving anything. Fully idempotent and side-effect-free.
// CanProceed is true iff no source file is missing.
func (e *Executor) DryRun(ctx context.Context, assignments []Assignment) DryRunResult {
	e.logger.Info("starting dry run", slog.Int("assignments", len(assignments)))

	var result DryRunResult

	foldersNeeded := make(map[string]bool)

	for i := range assignments {
		a := &assignments[i]

		item, err := e.ops.FindItemByPath(ctx, a.CurrentPath)

		switch {
		case err != nil:
			result.FilesMissing++
			result.MissingFiles = append(result.MissingFiles, a.FileName)
			e.logger.Warn("dry run: error checking file",
				slog.String("file", a.FileName),
				slog.String("error", err.Error()),
			)
		case item == nil:
			result.FilesMissing++
			result.MissingFiles = append(result.MissingFiles, a.FileName)
			e.logger.Warn("dry run: file not found",
				slog.String("file", a.FileName),
				slog.String("path", a.CurrentPath),
			)
		default:
			result.FilesFound++
		}

		folderID, err := e.ops.ResolveFolderPath(ctx, a.ProposedPath)

		switch {
		case err != nil:
			foldersNeeded[a.ProposedPath] = true
			e.logger.Warn("dry run: error checking folder",
				slog.String("path", a.ProposedPath),
				slog.String("error", err.Error()),
			)
		case folderID == "":
			foldersNeeded[a.ProposedPath] = true
		default:
			result.FoldersExist++
		}
	}

	result.FoldersToCreate = len(foldersNeeded)
	result.FoldersNeeded = sortedKeys(foldersNeeded)
	result.CanProceed = result.FilesMissing == 0

	e.logger.Info("dry run complete",
		slog.Bool("can_proceed", result.CanProceed),
		slog.Int("files_found", result.FilesFound),
		slog.Int("files_missing", result.FilesMissing),
		slog.Int("folders_exist", result.FoldersExist),
		slog.Int("folders_to_create", result.FoldersToCreate),
	)

	return result
}

// Execute runs the batch and returns a lazily pulled event sequence.
// The producer performs no work beyond the in-flight step: breaking out
// of the range stops further mutation after the current step completes.
// Every assignment resolves to exactly one success/error/skip event, any
// per-item failure is converted to an error event at that item's
// boundary, and the stream always ends with one summary event at
// progress 1.0 — unless the consumer stops pulling first.
func (e *Executor) Execute(
	ctx context.Context, assignments []Assignment, autoCreateFolders bool,
) iter.Seq[ProgressEvent] {
	return func(yield func(ProgressEvent) bool) {
		e.logger.Info("starting execution",
			slog.Int("assignments", len(assignments)),
			slog.Bool("auto_create_folders", autoCreateFolders),
		)

		folders := distinctTargets(assignments)

		totalOps := len(assignments)
		if autoCreateFolders {
			totalOps += len(folders)
		}

		var (
			done    int
			summary Summary
		)

		summary.TotalAssignments = len(assignments)

		progress := func() float64 {
			if totalOps == 0 {
				return 1.0
			}

			return float64(done) / float64(totalOps)
		}

		// Phase 1: create target folders, shortest paths first so parents
		// exist before deeper children that share them.
		if autoCreateFolders {
			for i, folderPath := range folders {
				ev := e.createFolder(ctx, folderPath, &summary)
				done++
				ev.Progress = progress()
				ev.Current = i + 1
				ev.Total = len(folders)

				if !yield(ev) {
					return
				}
			}
		}

		// Phase 2: move files in plan order.
		for i := range assignments {
			ev := e.moveOne(ctx, &assignments[i], &summary)
			done++
			ev.Progress = progress()
			ev.Current = i + 1
			ev.Total = len(assignments)

			if !yield(ev) {
				return
			}
		}

		e.logger.Info("execution complete",
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
			slog.Int("folders_created", summary.FoldersCreated),
		)

		yield(ProgressEvent{
			Progress: 1.0,
			Phase:    PhaseSummary,
			Status:   StatusComplete,
			Message:  "migration complete",
			Current:  done,
			Total:    totalOps,
			Summary:  &summary,
		})
	}
}

// createFolder performs one folder-phase step and records the outcome.
func (e *Executor) createFolder(ctx context.Context, folderPath string, summary *Summary) ProgressEvent {
	if _, err := e.ops.CreateFolderRecursive(ctx, folderPath); err != nil {
		summary.FolderErrors++
		e.logger.Error("folder creation failed",
			slog.String("path", folderPath),
			slog.String("error", err.Error()),
		)

		return ProgressEvent{
			Phase:   PhaseFolders,
			Status:  StatusError,
			Message: fmt.Sprintf("error creating folder %s: %v", folderPath, err),
		}
	}

	summary.FoldersCreated++

	return ProgressEvent{
		Phase:   PhaseFolders,
		Status:  StatusSuccess,
		Message: "created folder: " + folderPath,
	}
}

// moveOne performs one move-phase step. A missing source is a deliberate
// skip, never an error; an unresolved target or failed move is an error.
// Failures never escape the assignment's boundary.
func (e *Executor) moveOne(ctx context.Context, a *Assignment, summary *Summary) ProgressEvent {
	source, err := e.ops.FindItemByPath(ctx, a.CurrentPath)
	if err != nil {
		summary.Failed++

		return ProgressEvent{
			Phase:    PhaseMoves,
			Status:   StatusError,
			FileName: a.FileName,
			Message:  fmt.Sprintf("error locating source: %v", err),
		}
	}

	if source == nil {
		summary.Skipped++
		e.logger.Warn("source file not found, skipping",
			slog.String("file", a.FileName),
			slog.String("path", a.CurrentPath),
		)

		return ProgressEvent{
			Phase:    PhaseMoves,
			Status:   StatusSkip,
			FileName: a.FileName,
			Message:  "source file not found: " + a.CurrentPath,
		}
	}

	targetID, err := e.ops.ResolveFolderPath(ctx, a.ProposedPath)
	if err != nil || targetID == "" {
		summary.Failed++
		e.logger.Error("target folder not found",
			slog.String("file", a.FileName),
			slog.String("path", a.ProposedPath),
		)

		return ProgressEvent{
			Phase:    PhaseMoves,
			Status:   StatusError,
			FileName: a.FileName,
			Message:  "target folder not found: " + a.ProposedPath,
		}
	}

	_, moveErr := e.ops.MoveFile(ctx, source.ID, targetID)

	// Pace after every move attempt, success or not, to respect backend
	// throttling. A canceled context surfaces on the next operation.
	_ = e.limiter.Wait(ctx)

	if moveErr != nil {
		summary.Failed++
		e.logger.Error("move failed",
			slog.String("file", a.FileName),
			slog.String("error", moveErr.Error()),
		)

		return ProgressEvent{
			Phase:    PhaseMoves,
			Status:   StatusError,
			FileName: a.FileName,
			Message:  fmt.Sprintf("error moving file: %v", moveErr),
		}
	}

	summary.Succeeded++

	return ProgressEvent{
		Phase:    PhaseMoves,
		Status:   StatusSuccess,
		FileName: a.FileName,
		Message:  "moved to: " + a.ProposedPath,
	}
}

// distinctTargets returns the sorted set of non-empty proposed paths.
// Sorting makes creation order deterministic and puts shorter parent
// paths before deeper children.
func distinctTargets(assignments []Assignment) []string {
	set := make(map[string]bool, len(assignments))

	for i := range assignments {
		if p := assignments[i].ProposedPath; p != "" {
			set[p] = true
		}
	}

	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
