// Package importmodule implements the import and deduplication pipeline:
// candidate files are deduplicated against the library by signature,
// processed in fixed-size chunks through a bounded worker pool, and
// persisted in batches with partial-failure tolerance.
package importmodule

import (
	"context"

	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/metadata"
)

// Phase identifies where an import currently is.
type Phase string

const (
	PhasePreparing Phase = "preparing"
	PhaseImporting Phase = "importing"
	PhaseDone      Phase = "done"
)

// Defaults applied when Options fields are zero.
const (
	DefaultConcurrency = 4
	DefaultChunkSize   = 100
	DefaultFailureCap  = 50
)

// Candidate is one file offered to the pipeline. It is ephemeral: consumed
// into a track record or discarded.
type Candidate struct {
	Path      string // absolute path to the audio file
	Name      string // display name, defaults to the base of Path
	Size      int64
	ModMillis int64  // last-modified epoch millis
	HandleID  string // durable handle id when the host granted one
}

// Failure records one file the pipeline could not import.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Progress is a live snapshot reported during an import.
type Progress struct {
	Phase     Phase `json:"phase"`
	Total     int   `json:"total"`
	Processed int   `json:"processed"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
}

// Result is the terminal outcome of one import invocation. On every
// completion path Imported + Skipped + Failed == Total.
type Result struct {
	Phase     Phase     `json:"phase"`
	Total     int       `json:"total"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"` // capped, see Options.FailureCap
	Warning   string    `json:"warning,omitempty"`
	Cancelled bool      `json:"cancelled"`
}

// Options tunes one pipeline run.
type Options struct {
	Concurrency     int  // worker pool size per chunk, default 4
	ChunkSize       int  // candidates per persisted batch, default 100
	FailureCap      int  // max recorded failure entries, default 50
	AutoMaterialize bool // store content inline even when a handle exists
	OnProgress      func(Progress)
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.FailureCap <= 0 {
		o.FailureCap = DefaultFailureCap
	}
	return o
}

// TrackWriter is the slice of the track store the pipeline needs.
type TrackWriter interface {
	Signatures(ctx context.Context) (map[string]struct{}, error)
	UpsertAll(ctx context.Context, tracks []database.Track) error
}

// MetaExtractor extracts best-effort metadata for one file.
type MetaExtractor interface {
	Extract(ctx context.Context, path string) metadata.Meta
}

// ArtworkStore persists cover images and releases them when a chunk's
// records are demoted to failures.
type ArtworkStore interface {
	Save(data []byte, mimeType string) (string, error)
	Remove(path string) error
}
