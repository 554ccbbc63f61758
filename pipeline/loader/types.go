package loader

import (
	"context"
	"iter"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/acquire"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pipeline/shared"
)

// State is a step of a run
type State int

const (
	SelectingSnapshot State = iota
	ListingFiles
	ComputingPending
	Idle
	ProcessingFiles
	Draining
	Done
	Failed
)

var stateNames = map[State]string{
	SelectingSnapshot: "selecting_snapshot",
	ListingFiles:      "listing_files",
	ComputingPending:  "computing_pending",
	Idle:              "idle",
	ProcessingFiles:   "processing_files",
	Draining:          "draining",
	Done:              "done",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Outcome summarizes a finished run for humans and exit codes
type Outcome string

const (
	OutcomeIdle     Outcome = "idle"
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

// Options select what a run loads
type Options struct {
	// Snapshot to load; empty means the latest published one
	Snapshot string
	// Force clears the snapshot's completion markers first
	Force bool
}

// Report describes a run
type Report struct {
	RunID     string
	Snapshot  schema.Snapshot
	State     State
	Pending   []string
	Processed []string
	Failed    []string
	Files     int
	Rows      int64
	Motivos   int
	Started   time.Time
	Duration  time.Duration
}

// Outcome classifies the report
func (r *Report) Outcome() Outcome {
	switch {
	case r.State == Failed:
		return OutcomeFailed
	case r.State == Idle:
		return OutcomeIdle
	case len(r.Failed) > 0:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}

// Source discovers published snapshots and their archives
type Source interface {
	ListSnapshots(ctx context.Context) ([]schema.Snapshot, error)
	ListMembers(ctx context.Context, snapshot schema.Snapshot) ([]string, error)
}

// Fetcher makes archive content files available locally
type Fetcher interface {
	shared.Component
	Prepare(snapshot schema.Snapshot) error
	Fetch(ctx context.Context, snapshot schema.Snapshot, names []string) iter.Seq[acquire.Extracted]
}

// Store persists batches and completion markers
type Store interface {
	shared.Component
	BulkUpsert(ctx context.Context, batch schema.Batch) error
	CompletedFiles(ctx context.Context, directory string) map[string]struct{}
	MarkCompleted(ctx context.Context, directory, filename string) error
	ClearCompleted(ctx context.Context, directory string) error
}

// Supplement fills gaps in reference data after a load
type Supplement interface {
	Run(ctx context.Context) (int, error)
}
