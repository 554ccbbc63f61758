package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func openSQLiteStore(t *testing.T, migrate bool) *Store {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cnpj.db"))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	s := New(sqldb, bun.NewDB(sqldb, sqlitedialect.New()), testLogger())
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	if migrate {
		require.NoError(t, s.Migrate(t.Context()))
	}
	return s
}

func TestCompletionTracker(t *testing.T) {
	t.Run("mark is idempotent", func(t *testing.T) {
		s := openSQLiteStore(t, true)

		require.NoError(t, s.MarkCompleted(t.Context(), "2024-03", "Empresas0.zip"))
		require.NoError(t, s.MarkCompleted(t.Context(), "2024-03", "Empresas0.zip"))
		require.NoError(t, s.MarkCompleted(t.Context(), "2024-03", "Cnaes.zip"))

		files, err := s.ProcessedFiles(t.Context(), "2024-03")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "Cnaes.zip", files[0].Filename)
		assert.Equal(t, "Empresas0.zip", files[1].Filename)
		assert.False(t, files[0].ProcessedAt.IsZero())
	})

	t.Run("completed files are scoped by directory", func(t *testing.T) {
		s := openSQLiteStore(t, true)

		require.NoError(t, s.MarkCompleted(t.Context(), "2024-03", "Socios1.zip"))
		require.NoError(t, s.MarkCompleted(t.Context(), "2024-04", "Socios2.zip"))

		done := s.CompletedFiles(t.Context(), "2024-03")
		assert.Equal(t, map[string]struct{}{"Socios1.zip": {}}, done)
		assert.Empty(t, s.CompletedFiles(t.Context(), "2023-12"))
	})

	t.Run("clear makes files pending again", func(t *testing.T) {
		s := openSQLiteStore(t, true)

		require.NoError(t, s.MarkCompleted(t.Context(), "2024-03", "Cnaes.zip"))
		require.NoError(t, s.MarkCompleted(t.Context(), "2024-04", "Cnaes.zip"))
		require.NoError(t, s.ClearCompleted(t.Context(), "2024-03"))

		assert.Empty(t, s.CompletedFiles(t.Context(), "2024-03"))
		assert.Len(t, s.CompletedFiles(t.Context(), "2024-04"), 1)
	})

	t.Run("unreadable markers fail open", func(t *testing.T) {
		s := openSQLiteStore(t, false)

		done := s.CompletedFiles(t.Context(), "2024-03")
		assert.NotNil(t, done)
		assert.Empty(t, done)
	})

	t.Run("mark surfaces failures", func(t *testing.T) {
		s := openSQLiteStore(t, false)

		err := s.MarkCompleted(t.Context(), "2024-03", "Cnaes.zip")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to mark file completed")
	})
}

func TestExistingCodes(t *testing.T) {
	s := openSQLiteStore(t, true)

	_, err := s.DB().ExecContext(t.Context(),
		`INSERT INTO motivos (codigo, descricao, data_atualizacao) VALUES ('01', 'EXTINCAO', CURRENT_TIMESTAMP), ('73', 'OMISSAO', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	codes, err := s.ExistingCodes(t.Context(), "motivos")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"01": {}, "73": {}}, codes)

	_, err = s.ExistingCodes(t.Context(), "missing_table")
	assert.Error(t, err)
}

func TestStoreComponent(t *testing.T) {
	s := New(nil, nil, testLogger())
	assert.Equal(t, "store", s.GetType())
}
