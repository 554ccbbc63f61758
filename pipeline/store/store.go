package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pipeline/store/migrations"
	"github.com/gear6io/cnpj-pipeline/pipeline/store/storetypes"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/gear6io/cnpj-pipeline/utils"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ComponentType defines the store component type identifier
const ComponentType = "store"

// Store is the persistence layer. It holds a single database connection
// for the run, so calls must not overlap.
type Store struct {
	sqldb  *sql.DB
	db     *bun.DB
	keys   *KeyCache
	logger zerolog.Logger

	// begin opens an upsert session; replaced in tests
	begin func(ctx context.Context, fn func(session) error) error
}

// Open connects to PostgreSQL through the pgx driver, retrying with
// exponential backoff while the server is unreachable
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	sqldb, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, errors.New(ErrConnectFailed, "failed to open database", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxIdleTime(0)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.Database.ConnectBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Download.ConnectTimeout)
		defer cancel()
		err := sqldb.PingContext(pingCtx)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Database not reachable")
		}
		return err
	}
	retries := uint64(max(cfg.Database.ConnectAttempts-1, 0))
	if err := backoff.Retry(ping, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)); err != nil {
		sqldb.Close()
		return nil, errors.New(ErrConnectFailed, "failed to connect to database", err)
	}

	return New(sqldb, bun.NewDB(sqldb, pgdialect.New()), logger), nil
}

// New wraps an existing database. Bulk upserts need the pgx driver; the
// completion tracker and migrations work on any bun dialect.
func New(sqldb *sql.DB, db *bun.DB, logger zerolog.Logger) *Store {
	s := &Store{
		sqldb:  sqldb,
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	s.keys = NewKeyCache(catalogKeyLookup(db))
	s.begin = s.beginPgx
	return s
}

// DB returns the bun handle
func (s *Store) DB() *bun.DB {
	return s.db
}

// Keys returns the primary key cache
func (s *Store) Keys() *KeyCache {
	return s.keys
}

// Migrate applies pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	return migrations.NewManager(s.db, s.logger).MigrateToLatest(ctx)
}

// MigrationStatus reports applied and pending migrations
func (s *Store) MigrationStatus(ctx context.Context) ([]migrations.MigrationStatus, error) {
	return migrations.NewManager(s.db, s.logger).GetMigrationStatus(ctx)
}

// beginPgx runs fn in a transaction on the raw pgx connection
func (s *Store) beginPgx(ctx context.Context, fn func(session) error) error {
	conn, err := s.sqldb.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New(ErrUnsupportedDriver, "bulk upsert requires the pgx driver", nil)
		}
		tx, err := c.Conn().Begin(ctx)
		if err != nil {
			return err
		}
		return fn(pgxSession{tx: tx})
	})
}

// BulkUpsert loads batch into its relation with the staging-swap pattern.
// The batch applies fully or not at all; empty batches are a no-op.
func (s *Store) BulkUpsert(ctx context.Context, batch schema.Batch) error {
	if batch.Empty() {
		return nil
	}

	// resolved before the transaction takes the only connection
	keys, err := s.keys.Get(ctx, batch.Relation)
	if err != nil {
		return err
	}

	plan := newUpsertPlan(batch.Relation, batch.Columns, keys, utils.StagingSuffix())
	start := time.Now()

	err = s.begin(ctx, func(sess session) error {
		return runUpsert(ctx, sess, plan, batch)
	})
	if err != nil {
		if !errors.HasCode(err, ErrUpsertFailed) {
			err = errors.New(ErrUpsertFailed, "failed to start upsert transaction", err).
				AddContext("relation", batch.Relation)
		}
		return err
	}

	s.logger.Debug().
		Str("relation", batch.Relation).
		Int("rows", batch.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Batch upserted")
	return nil
}

// CompletedFiles returns the archives already loaded for directory. A
// failing query is logged and yields an empty set so the run can go on.
func (s *Store) CompletedFiles(ctx context.Context, directory string) map[string]struct{} {
	var names []string
	err := s.db.NewSelect().
		Model((*storetypes.ProcessedFile)(nil)).
		Column("filename").
		Where("directory = ?", directory).
		Scan(ctx, &names)
	if err != nil && err != sql.ErrNoRows {
		s.logger.Warn().Err(err).Str("directory", directory).Msg("Failed to read completion markers, treating all files as pending")
		return map[string]struct{}{}
	}

	done := make(map[string]struct{}, len(names))
	for _, n := range names {
		done[n] = struct{}{}
	}
	return done
}

// ProcessedFiles lists the completion markers of directory
func (s *Store) ProcessedFiles(ctx context.Context, directory string) ([]storetypes.ProcessedFile, error) {
	var files []storetypes.ProcessedFile
	err := s.db.NewSelect().
		Model(&files).
		Where("directory = ?", directory).
		Order("filename ASC").
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New(ErrTrackerFailed, "failed to list completion markers", err).
			AddContext("directory", directory)
	}
	return files, nil
}

// MarkCompleted records filename as loaded. Marking twice is a no-op.
func (s *Store) MarkCompleted(ctx context.Context, directory, filename string) error {
	_, err := s.db.NewInsert().
		Model(&storetypes.ProcessedFile{
			Directory:   directory,
			Filename:    filename,
			ProcessedAt: time.Now().UTC(),
		}).
		On("CONFLICT (directory, filename) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return errors.New(ErrTrackerFailed, "failed to mark file completed", err).
			AddContext("directory", directory).
			AddContext("filename", filename)
	}
	return nil
}

// ClearCompleted forgets every marker of directory
func (s *Store) ClearCompleted(ctx context.Context, directory string) error {
	_, err := s.db.NewDelete().
		Model((*storetypes.ProcessedFile)(nil)).
		Where("directory = ?", directory).
		Exec(ctx)
	if err != nil {
		return errors.New(ErrTrackerFailed, "failed to clear completion markers", err).
			AddContext("directory", directory)
	}
	return nil
}

// ExistingCodes returns the codes already present in a code table
func (s *Store) ExistingCodes(ctx context.Context, relation string) (map[string]struct{}, error) {
	var codes []string
	err := s.db.NewSelect().
		TableExpr("?", bun.Ident(relation)).
		Column("codigo").
		Scan(ctx, &codes)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New(ErrTrackerFailed, "failed to read existing codes", err).
			AddContext("relation", relation)
	}

	existing := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		existing[c] = struct{}{}
	}
	return existing, nil
}

// GetType returns the component type identifier
func (s *Store) GetType() string {
	return ComponentType
}

// Shutdown closes the connection
func (s *Store) Shutdown(ctx context.Context) error {
	return s.db.Close()
}
