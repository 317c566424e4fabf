package importmodule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/events"
	"github.com/tuneport/tuneport/internal/library"
	"github.com/tuneport/tuneport/internal/store"
)

// ErrImportRunning is returned when an import is started while another one
// is still in flight. The pipeline is a single-flight resource.
var ErrImportRunning = errors.New("an import is already running")

// HandleKeeper is the slice of the handle store the pipeline needs.
type HandleKeeper interface {
	Save(ctx context.Context, path, kind, purpose string) (*database.StoredHandle, error)
	GetByPurpose(ctx context.Context, purpose string) (*database.StoredHandle, error)
	ReplaceForPurpose(ctx context.Context, path, kind, purpose string) (*database.StoredHandle, error)
}

// Deps carries the pipeline's collaborators. Artwork, Library, Bus and
// Monitor are optional.
type Deps struct {
	Tracks    TrackWriter
	Handles   HandleKeeper
	Extractor MetaExtractor
	Artwork   ArtworkStore
	Library   *library.State
	Bus       events.EventBus
	Monitor   *LoadMonitor
}

// Pipeline orchestrates deduplication, bounded-concurrency extraction,
// chunked persistence, and progress reporting.
type Pipeline struct {
	deps   Deps
	logger hclog.Logger

	running    atomic.Bool
	retryDelay time.Duration
	chunkYield time.Duration
}

// NewPipeline creates an import pipeline.
func NewPipeline(deps Deps, logger hclog.Logger) *Pipeline {
	return &Pipeline{
		deps:       deps,
		logger:     logger.Named("import"),
		retryDelay: 50 * time.Millisecond,
		chunkYield: time.Millisecond,
	}
}

// itemResult carries the outcome for one candidate. Exactly one of track and
// failure is set.
type itemResult struct {
	track   *database.Track
	failure *Failure
}

// Run imports the candidate batch. It returns an error only for an
// unrecoverable pipeline failure (the dedup read itself failing), in which
// case nothing has been written. Every other outcome, cancellation included,
// is reported through the Result.
func (p *Pipeline) Run(ctx context.Context, candidates []Candidate, opts Options) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrImportRunning
	}
	defer p.running.Store(false)

	opts = opts.withDefaults()
	result := &Result{Phase: PhasePreparing, Total: len(candidates)}

	p.report(opts, Progress{Phase: PhasePreparing, Total: result.Total})
	p.publish(events.EventImportStarted, "Import started",
		fmt.Sprintf("%d candidate files", result.Total),
		map[string]interface{}{"total": result.Total})

	known, err := p.deps.Tracks.Signatures(ctx)
	if err != nil {
		// Unrecoverable: without the signature set every duplicate would
		// import again. Abort before any write happens.
		return nil, fmt.Errorf("failed to load library signatures: %w", err)
	}

	result.Warning = p.checkImportFolder(ctx, candidates)

	queue := p.deduplicate(candidates, known, result)
	result.Phase = PhaseImporting

	progress := Progress{
		Phase:     PhaseImporting,
		Total:     result.Total,
		Processed: result.Skipped,
	}
	p.report(opts, progress)

	for start := 0; start < len(queue); start += opts.ChunkSize {
		// Cancellation is honored at chunk boundaries only: an in-flight
		// chunk always completes so a half-written chunk never exists.
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		end := start + opts.ChunkSize
		if end > len(queue) {
			end = len(queue)
		}
		chunk := queue[start:end]

		items := p.processChunk(ctx, chunk, opts)

		records := make([]database.Track, 0, len(chunk))
		chunkFailures := make([]Failure, 0)
		for i, item := range items {
			if item.failure != nil {
				chunkFailures = append(chunkFailures, *item.failure)
				continue
			}
			if item.track == nil {
				chunkFailures = append(chunkFailures, Failure{
					Name:   chunk[i].Name,
					Reason: "no result produced",
				})
				continue
			}
			records = append(records, *item.track)
		}

		if len(records) > 0 {
			if err := p.persistChunk(ctx, records); err != nil {
				p.logger.Error("chunk persistence failed after retry",
					"chunk_size", len(records), "error", err)
				for _, record := range records {
					p.releaseCover(record.CoverPath)
					chunkFailures = append(chunkFailures, Failure{
						Name:   failureName(record),
						Reason: fmt.Sprintf("batch write failed: %v", err),
					})
				}
			} else {
				result.Imported += len(records)
				if p.deps.Library != nil {
					p.deps.Library.AppendTracks(records)
				}
			}
		}

		result.Failed += len(chunkFailures)
		for _, failure := range chunkFailures {
			if len(result.Failures) < opts.FailureCap {
				result.Failures = append(result.Failures, failure)
			}
		}

		progress.Processed += len(chunk)
		progress.Succeeded = result.Imported
		progress.Failed = result.Failed
		p.report(opts, progress)
		p.publish(events.EventImportProgress, "Import progress",
			fmt.Sprintf("%d/%d files processed", progress.Processed, progress.Total),
			map[string]interface{}{
				"total":     progress.Total,
				"processed": progress.Processed,
				"succeeded": progress.Succeeded,
				"failed":    progress.Failed,
			})

		// Cooperative yield between chunks keeps the host responsive on
		// multi-thousand-file imports; the load monitor stretches the pause
		// when the system is busy.
		p.yield(ctx)
	}

	result.Phase = PhaseDone
	progress.Phase = PhaseDone
	p.report(opts, progress)

	if result.Cancelled {
		p.publish(events.EventImportCancelled, "Import cancelled",
			fmt.Sprintf("%d imported, %d skipped, %d failed before cancellation",
				result.Imported, result.Skipped, result.Failed),
			map[string]interface{}{"imported": result.Imported, "skipped": result.Skipped, "failed": result.Failed})
	} else {
		p.publish(events.EventImportCompleted, "Import completed",
			fmt.Sprintf("%d imported, %d skipped, %d failed",
				result.Imported, result.Skipped, result.Failed),
			map[string]interface{}{"imported": result.Imported, "skipped": result.Skipped, "failed": result.Failed})
	}

	return result, nil
}

// deduplicate drops candidates whose signature is already in the library or
// appeared earlier in the same batch, counting them as skipped.
func (p *Pipeline) deduplicate(candidates []Candidate, known map[string]struct{}, result *Result) []Candidate {
	queue := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" {
			c.Name = filepath.Base(c.Path)
		}
		sig := CandidateSignature(c)
		if _, dup := known[sig]; dup {
			result.Skipped++
			continue
		}
		known[sig] = struct{}{}
		queue = append(queue, c)
	}
	return queue
}

// processChunk runs the chunk through a fixed-size worker pool. Workers pull
// the next unclaimed index from a shared cursor, so results keep their
// candidate association regardless of completion order.
func (p *Pipeline) processChunk(ctx context.Context, chunk []Candidate, opts Options) []itemResult {
	results := make([]itemResult, len(chunk))

	workers := opts.Concurrency
	if workers > len(chunk) {
		workers = len(chunk)
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(chunk) {
					return
				}
				results[i] = p.processItem(ctx, chunk[i], opts)
			}
		}()
	}
	wg.Wait()

	return results
}

// processItem extracts metadata and builds the track record for one
// candidate. A panicking extractor, or an unreadable file, becomes a
// recorded failure; it never aborts the chunk.
func (p *Pipeline) processItem(ctx context.Context, c Candidate, opts Options) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extraction panicked", "file", c.Name, "panic", r)
			res = itemResult{failure: &Failure{Name: c.Name, Reason: fmt.Sprintf("extraction failed: %v", r)}}
		}
	}()

	meta := p.deps.Extractor.Extract(ctx, c.Path)

	track := database.Track{
		ID:           uuid.NewString(),
		Title:        meta.Title,
		Artist:       meta.Artist,
		Album:        meta.Album,
		Duration:     meta.Duration,
		LastModified: c.ModMillis,
		Size:         c.Size,
		SourcePath:   c.Path,
		Signature:    CandidateSignature(c),
		AddedAt:      time.Now(),
	}
	if track.Title == "" {
		track.Title = c.Name
	}

	if len(meta.Picture) > 0 && p.deps.Artwork != nil {
		cover, err := p.deps.Artwork.Save(meta.Picture, meta.PictureMIME)
		if err != nil {
			p.logger.Warn("failed to store cover image", "file", c.Name, "error", err)
		} else {
			track.CoverPath = cover
		}
	}

	if err := p.resolveSource(ctx, c, opts, &track); err != nil {
		p.releaseCover(track.CoverPath)
		return itemResult{failure: &Failure{Name: c.Name, Reason: err.Error()}}
	}

	return itemResult{track: &track}
}

// resolveSource applies the materialization policy: content is stored inline
// when requested or when no durable handle can be kept, otherwise the record
// references a handle and content resolves lazily at play time.
func (p *Pipeline) resolveSource(ctx context.Context, c Candidate, opts Options, track *database.Track) error {
	if !opts.AutoMaterialize {
		if c.HandleID != "" {
			track.Source = database.SourceHandle
			track.HandleID = c.HandleID
			return nil
		}
		if p.deps.Handles != nil {
			handle, err := p.deps.Handles.Save(ctx, c.Path, store.HandleKindFile, "track")
			if err == nil {
				track.Source = database.SourceHandle
				track.HandleID = handle.ID
				return nil
			}
			p.logger.Warn("failed to persist file handle, storing inline", "file", c.Name, "error", err)
		}
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("file unreadable: %v", err)
	}
	track.Source = database.SourceBlob
	track.InlineBlob = data
	return nil
}

// persistChunk writes the chunk's records, retrying once after a short yield.
// A chunk's persistence is all-or-nothing from the caller's perspective.
func (p *Pipeline) persistChunk(ctx context.Context, records []database.Track) error {
	err := p.deps.Tracks.UpsertAll(ctx, records)
	if err == nil {
		return nil
	}
	p.logger.Warn("batch write failed, retrying once", "chunk_size", len(records), "error", err)

	select {
	case <-time.After(p.retryDelay):
	case <-ctx.Done():
	}

	return p.deps.Tracks.UpsertAll(ctx, records)
}

// checkImportFolder compares the batch's folder against the one remembered
// from the previous import and returns an advisory warning on mismatch.
func (p *Pipeline) checkImportFolder(ctx context.Context, candidates []Candidate) string {
	if p.deps.Handles == nil || len(candidates) == 0 || candidates[0].Path == "" {
		return ""
	}
	folder := filepath.Dir(candidates[0].Path)

	warning := ""
	prior, err := p.deps.Handles.GetByPurpose(ctx, store.PurposeImportFolder)
	if err != nil {
		p.logger.Debug("failed to load previous import folder", "error", err)
	} else if prior != nil && prior.Path != folder {
		warning = fmt.Sprintf("importing from %s, previous import used %s", folder, prior.Path)
	}

	if _, err := p.deps.Handles.ReplaceForPurpose(ctx, folder, store.HandleKindDir, store.PurposeImportFolder); err != nil {
		p.logger.Debug("failed to remember import folder", "error", err)
	}

	return warning
}

func (p *Pipeline) yield(ctx context.Context) {
	pause := p.chunkYield
	if p.deps.Monitor != nil {
		pause += p.deps.Monitor.Backoff()
	}
	select {
	case <-time.After(pause):
	case <-ctx.Done():
	}
}

func (p *Pipeline) releaseCover(path string) {
	if path == "" || p.deps.Artwork == nil {
		return
	}
	if err := p.deps.Artwork.Remove(path); err != nil {
		p.logger.Warn("failed to release cover image", "path", path, "error", err)
	}
}

func (p *Pipeline) report(opts Options, progress Progress) {
	if opts.OnProgress != nil {
		opts.OnProgress(progress)
	}
}

func (p *Pipeline) publish(eventType events.EventType, title, message string, data map[string]interface{}) {
	if p.deps.Bus == nil {
		return
	}
	event := events.NewEvent(eventType, "import", title, message)
	event.Data = data
	p.deps.Bus.PublishAsync(event)
}

func failureName(record database.Track) string {
	if record.SourcePath != "" {
		return filepath.Base(record.SourcePath)
	}
	return record.Title
}
