package loader

import (
	"cmp"
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/acquire"
	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pipeline/paths"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pipeline/store"
	"github.com/gear6io/cnpj-pipeline/pipeline/supplement"
	"github.com/gear6io/cnpj-pipeline/pipeline/transform"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/gear6io/cnpj-pipeline/utils"
	"github.com/rs/zerolog"
)

// motivosArchive triggers the motivos supplement when loaded
const motivosArchive = "Motivos.zip"

// drainTimeout bounds component shutdown after a run
const drainTimeout = 30 * time.Second

// Loader wires the pipeline components and drives runs
type Loader struct {
	config     *config.Config
	source     Source
	fetcher    Fetcher
	store      Store
	supplement Supplement
	batchSize  int
	keepFiles  bool
	logger     zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewLoader connects to the database, applies migrations and builds every
// component from cfg
func NewLoader(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Loader, error) {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, errors.New(ErrComponentInitFailed, "failed to open store", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Shutdown(ctx)
		return nil, errors.New(ErrComponentInitFailed, "failed to migrate database", err)
	}

	var mirror acquire.Mirror
	if cfg.Mirror.Enabled {
		m, err := acquire.NewS3Mirror(ctx, cfg.Mirror, logger)
		if err != nil {
			st.Shutdown(ctx)
			return nil, errors.New(ErrComponentInitFailed, "failed to create archive mirror", err)
		}
		mirror = m
	}

	pm := paths.NewManager(cfg.GetTempDir())
	client := acquire.NewClient(cfg, logger)
	fetcher := acquire.NewFetcher(cfg, client, pm, mirror, logger)

	var sup Supplement
	if cfg.Supplement.Motivos {
		sup = supplement.NewMotivos(cfg, st, pm, logger)
	}

	return New(cfg, client, fetcher, st, sup, logger), nil
}

// New assembles a loader from ready components. sup may be nil.
func New(cfg *config.Config, source Source, fetcher Fetcher, st Store, sup Supplement, logger zerolog.Logger) *Loader {
	return &Loader{
		config:     cfg,
		source:     source,
		fetcher:    fetcher,
		store:      st,
		supplement: sup,
		batchSize:  cfg.GetBatchSize(),
		keepFiles:  cfg.Download.KeepFiles,
		logger:     logger.With().Str("component", "loader").Logger(),
		state:      SelectingSnapshot,
	}
}

// GetConfig returns the configuration
func (l *Loader) GetConfig() *config.Config {
	return l.config
}

// State returns the current state
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) setState(r *Report, s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	r.State = s
	l.logger.Debug().Str("state", s.String()).Msg("State changed")
}

// Run loads one snapshot. Components are shut down when it returns, so a
// Loader runs once. Per-file failures are recorded in the report and do
// not fail the run.
func (l *Loader) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{
		RunID:   utils.RunID(),
		Started: time.Now(),
	}
	l.logger = l.logger.With().Str("run_id", report.RunID).Logger()

	err := l.run(ctx, opts, report)
	final := report.State
	if err != nil {
		final = Failed
	} else if final != Idle {
		final = Done
	}

	l.setState(report, Draining)
	l.drain(ctx)
	l.setState(report, final)
	report.Duration = time.Since(report.Started)

	event := l.logger.Info()
	if err != nil {
		event = l.logger.Error().Err(err).Str("code", errors.GetCode(err))
	}
	event.
		Str("snapshot", report.Snapshot.String()).
		Str("outcome", string(report.Outcome())).
		Int("pending", len(report.Pending)).
		Int("processed", len(report.Processed)).
		Int("failed", len(report.Failed)).
		Int64("rows", report.Rows).
		Dur("duration", report.Duration).
		Msg("Run finished")

	return report, err
}

func (l *Loader) run(ctx context.Context, opts Options, report *Report) error {
	l.setState(report, SelectingSnapshot)
	snapshot, err := l.selectSnapshot(ctx, opts.Snapshot)
	if err != nil {
		return err
	}
	report.Snapshot = snapshot
	dir := snapshot.String()

	l.setState(report, ListingFiles)
	members, err := l.source.ListMembers(ctx, snapshot)
	if err != nil {
		return errors.New(ErrListingFailed, "failed to list snapshot archives", err).
			AddContext("snapshot", dir)
	}

	l.setState(report, ComputingPending)
	if opts.Force {
		if err := l.store.ClearCompleted(ctx, dir); err != nil {
			return err
		}
		l.logger.Info().Str("snapshot", dir).Msg("Cleared completion markers")
	}
	report.Pending = Pending(members, l.store.CompletedFiles(ctx, dir))

	l.logger.Info().
		Str("snapshot", dir).
		Int("archives", len(members)).
		Int("pending", len(report.Pending)).
		Msg("Computed pending archives")

	if len(report.Pending) == 0 {
		l.setState(report, Idle)
		return nil
	}

	if err := l.fetcher.Prepare(snapshot); err != nil {
		return errors.New(ErrStagingFailed, "failed to prepare staging area", err).
			AddContext("snapshot", dir)
	}

	l.setState(report, ProcessingFiles)
	return l.process(ctx, snapshot, report)
}

// selectSnapshot validates an explicit snapshot against the listing or
// picks the latest one
func (l *Loader) selectSnapshot(ctx context.Context, requested string) (schema.Snapshot, error) {
	var want schema.Snapshot
	if requested != "" {
		s, err := schema.ParseSnapshot(requested)
		if err != nil {
			return "", err
		}
		want = s
	}

	snapshots, err := l.source.ListSnapshots(ctx)
	if err != nil {
		return "", err
	}
	if len(snapshots) == 0 {
		return "", errors.New(ErrSnapshotNotFound, "no snapshots published", nil)
	}

	if want == "" {
		return slices.Max(snapshots), nil
	}
	if !slices.Contains(snapshots, want) {
		return "", errors.New(ErrSnapshotNotFound, "snapshot is not published", nil).
			AddContext("snapshot", want.String())
	}
	return want, nil
}

// Pending returns the members without a completion marker, reference
// archives first and otherwise by schema priority then name
func Pending(members []string, completed map[string]struct{}) []string {
	pending := make([]string, 0, len(members))
	for _, m := range members {
		if _, done := completed[m]; !done {
			pending = append(pending, m)
		}
	}
	slices.SortStableFunc(pending, func(a, b string) int {
		if c := cmp.Compare(schema.ClassifyArchive(a).Priority(), schema.ClassifyArchive(b).Priority()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return pending
}

// process loads every fetched file. An archive is marked completed once
// all of its files loaded; Fetch yields them contiguously.
func (l *Loader) process(ctx context.Context, snapshot schema.Snapshot, report *Report) error {
	dir := snapshot.String()
	processed := make(map[string]struct{}, len(report.Pending))

	current := ""
	currentOK := true
	finish := func() {
		if current == "" || !currentOK {
			return
		}
		if err := l.store.MarkCompleted(ctx, dir, current); err != nil {
			l.logger.Error().Err(err).Str("archive", current).Msg("Failed to mark archive completed")
			return
		}
		processed[current] = struct{}{}
		l.logger.Info().Str("archive", current).Msg("Archive completed")
	}

	cancelled := false
	for ex := range l.fetcher.Fetch(ctx, snapshot, report.Pending) {
		if ex.Archive != current {
			finish()
			current, currentOK = ex.Archive, true
		}

		rows, err := l.loadFile(ctx, ex.Path)
		report.Files++
		report.Rows += rows
		if err != nil {
			currentOK = false
			l.logger.Error().
				Err(err).
				Str("code", errors.GetCode(err)).
				Str("archive", ex.Archive).
				Str("file", filepath.Base(ex.Path)).
				Msg("File failed, continuing with next")
		}

		if !l.keepFiles {
			os.Remove(ex.Path)
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}
	if !cancelled {
		finish()
	}

	for _, name := range report.Pending {
		if _, ok := processed[name]; ok {
			report.Processed = append(report.Processed, name)
		} else {
			report.Failed = append(report.Failed, name)
		}
	}

	if cancelled || ctx.Err() != nil {
		return errors.New(ErrRunCancelled, "run cancelled", ctx.Err()).
			AddContext("snapshot", dir)
	}

	if _, ok := processed[motivosArchive]; ok && l.supplement != nil {
		n, err := l.supplement.Run(ctx)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Motivos supplement failed")
		}
		report.Motivos = n
	}
	return nil
}

// loadFile streams one content file into the store and returns the rows
// loaded before any failure
func (l *Loader) loadFile(ctx context.Context, path string) (int64, error) {
	start := time.Now()
	var rows int64
	for batch, err := range transform.StreamFile(path, l.batchSize) {
		if err != nil {
			return rows, err
		}
		if err := l.store.BulkUpsert(ctx, batch); err != nil {
			return rows, errors.New(ErrFileFailed, "failed to load batch", err).
				AddContext("file", filepath.Base(path)).
				AddContext("relation", batch.Relation)
		}
		rows += int64(batch.Len())
	}

	l.logger.Info().
		Str("file", filepath.Base(path)).
		Int64("rows", rows).
		Dur("elapsed", time.Since(start)).
		Msg("File loaded")
	return rows, nil
}

// drain shuts down acquisition then persistence, even after a cancel
func (l *Loader) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	if err := l.fetcher.Shutdown(ctx); err != nil {
		l.logger.Error().Err(err).Str("component", l.fetcher.GetType()).Msg("Error stopping component")
	}
	if err := l.store.Shutdown(ctx); err != nil {
		l.logger.Error().Err(err).Str("component", l.store.GetType()).Msg("Error stopping component")
	}
}
