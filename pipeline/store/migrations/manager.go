package migrations

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const versionTable = "schema_migrations"

// Migration interface that all migration files implement
type Migration interface {
	Version() int
	Name() string
	Description() string
	Up(ctx context.Context, tx bun.Tx) error
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int    `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AppliedAt   string `json:"applied_at"`
}

type migrationRecord struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version   int    `bun:"version,pk,type:integer"`
	Name      string `bun:"name,type:text,notnull"`
	AppliedAt string `bun:"applied_at,type:text,notnull"`
}

// Manager applies the schema migrations
type Manager struct {
	db     *bun.DB
	logger zerolog.Logger
}

// NewManager creates a migration manager over db
func NewManager(db *bun.DB, logger zerolog.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger.With().Str("component", "migrations").Logger(),
	}
}

// Available returns every known migration in version order
func Available() []Migration {
	return []Migration{
		&Migration001{},
		&Migration002{},
	}
}

// MigrateToLatest runs all pending migrations in one transaction
func (m *Manager) MigrateToLatest(ctx context.Context) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, mig := range Available() {
		if mig.Version() > current {
			pending = append(pending, mig)
		}
	}

	if len(pending) == 0 {
		m.logger.Debug().Int("version", current).Msg("No pending migrations")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(MigrationFailed, "failed to begin transaction for migrations", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, mig := range pending {
		m.logger.Info().Int("version", mig.Version()).Str("name", mig.Name()).Msg("Running migration")

		if err := mig.Up(ctx, tx); err != nil {
			return errors.New(MigrationFailed, "migration failed", err).
				AddContext("version", strconv.Itoa(mig.Version())).
				AddContext("name", mig.Name())
		}

		if _, err := tx.NewInsert().
			Model(&migrationRecord{Version: mig.Version(), Name: mig.Name(), AppliedAt: now}).
			Exec(ctx); err != nil {
			return errors.New(MigrationFailed, "failed to record migration", err).
				AddContext("version", strconv.Itoa(mig.Version()))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(MigrationFailed, "failed to commit migrations", err)
	}

	m.logger.Info().Int("applied", len(pending)).Msg("Migrations completed")
	return nil
}

// GetCurrentVersion returns the highest applied version, creating the
// version table on first use
func (m *Manager) GetCurrentVersion(ctx context.Context) (int, error) {
	if _, err := m.db.NewCreateTable().
		Model((*migrationRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return 0, errors.New(MigrationFailed, "failed to create migrations table", err)
	}

	var version int
	err := m.db.NewSelect().
		Model((*migrationRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Scan(ctx, &version)
	if err != nil && err != sql.ErrNoRows {
		return 0, errors.New(MigrationFailed, "failed to get current version", err)
	}
	return version, nil
}

// GetMigrationStatus reports every known migration and whether it ran
func (m *Manager) GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	exists, err := m.tableExists(ctx, versionTable)
	if err != nil {
		return nil, errors.New(MigrationFailed, "failed to check migrations table", err)
	}

	applied := make(map[int]migrationRecord)
	if exists {
		var records []migrationRecord
		if err := m.db.NewSelect().Model(&records).Order("version ASC").Scan(ctx); err != nil {
			return nil, errors.New(MigrationFailed, "failed to query migrations", err)
		}
		for _, r := range records {
			applied[r.Version] = r
		}
	}

	var status []MigrationStatus
	for _, mig := range Available() {
		s := MigrationStatus{
			Version:     mig.Version(),
			Name:        mig.Name(),
			Description: mig.Description(),
			Status:      "pending",
		}
		if r, ok := applied[mig.Version()]; ok {
			s.Status = "applied"
			s.AppliedAt = r.AppliedAt
		}
		status = append(status, s)
	}
	return status, nil
}

// VerifySchema checks that every relation the pipeline writes exists
func (m *Manager) VerifySchema(ctx context.Context, tables []string) error {
	for _, name := range tables {
		exists, err := m.tableExists(ctx, name)
		if err != nil {
			return errors.New(MigrationSchemaMismatch, "failed to verify table", err).AddContext("table", name)
		}
		if !exists {
			return errors.New(MigrationSchemaMismatch, "expected table does not exist", nil).AddContext("table", name)
		}
	}
	return nil
}

func (m *Manager) tableExists(ctx context.Context, name string) (bool, error) {
	var q *bun.RawQuery
	switch m.db.Dialect().Name() {
	case dialect.SQLite:
		q = m.db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	default:
		q = m.db.NewRaw("SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?", name)
	}

	var n int
	if err := q.Scan(ctx, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}
