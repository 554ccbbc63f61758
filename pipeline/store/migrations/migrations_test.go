package migrations

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gear6io/cnpj-pipeline/pipeline/store/storetypes"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cnpj.db"))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateToLatest(t *testing.T) {
	db := openSQLite(t)
	m := NewManager(db, zerolog.Nop())

	status, err := m.GetMigrationStatus(t.Context())
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "pending", status[0].Status)

	require.NoError(t, m.MigrateToLatest(t.Context()))

	version, err := m.GetCurrentVersion(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	status, err = m.GetMigrationStatus(t.Context())
	require.NoError(t, err)
	for _, s := range status {
		assert.Equal(t, "applied", s.Status, s.Name)
		assert.NotEmpty(t, s.AppliedAt)
	}

	require.NoError(t, m.VerifySchema(t.Context(), []string{
		"processed_files", "cnaes", "motivos", "municipios", "naturezas_juridicas",
		"paises", "qualificacoes_socios", "empresas", "estabelecimentos", "socios", "dados_simples",
	}))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	m := NewManager(db, zerolog.Nop())

	require.NoError(t, m.MigrateToLatest(t.Context()))
	require.NoError(t, m.MigrateToLatest(t.Context()))

	var n int
	require.NoError(t, db.NewSelect().Table("schema_migrations").ColumnExpr("count(*)").Scan(t.Context(), &n))
	assert.Equal(t, 2, n)
}

func TestEveryDataModelGetsItsOwnTable(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, NewManager(db, zerolog.Nop()).MigrateToLatest(t.Context()))

	var tables []string
	require.NoError(t, db.NewSelect().
		TableExpr("sqlite_master").
		Column("name").
		Where("type = 'table'").
		Scan(t.Context(), &tables))

	assert.ElementsMatch(t, []string{
		"schema_migrations", "processed_files",
		"cnaes", "motivos", "municipios", "naturezas_juridicas", "paises",
		"qualificacoes_socios", "empresas", "estabelecimentos", "socios", "dados_simples",
	}, tables)

	for _, model := range storetypes.DataModels() {
		table := db.Table(reflect.TypeOf(model).Elem())
		assert.Contains(t, tables, table.Name)
		assert.NotNil(t, table.FieldMap["data_atualizacao"], table.Name)
	}
}

func TestVerifySchemaMissingTable(t *testing.T) {
	m := NewManager(openSQLite(t), zerolog.Nop())
	err := m.VerifySchema(t.Context(), []string{"empresas"})
	require.Error(t, err)
}

func TestDataTablesHaveDeclaredKeys(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, NewManager(db, zerolog.Nop()).MigrateToLatest(t.Context()))

	// a duplicate composite key must be rejected
	_, err := db.ExecContext(t.Context(), `INSERT INTO socios (cnpj_basico, identificador_de_socio, cnpj_cpf_do_socio) VALUES ('1', '2', '3')`)
	require.NoError(t, err)
	_, err = db.ExecContext(t.Context(), `INSERT INTO socios (cnpj_basico, identificador_de_socio, cnpj_cpf_do_socio) VALUES ('1', '2', '3')`)
	assert.Error(t, err)

	var ts sql.NullString
	require.NoError(t, db.QueryRowContext(t.Context(), `SELECT data_atualizacao FROM socios`).Scan(&ts))
	assert.True(t, ts.Valid, "data_atualizacao defaults to the current timestamp")
}
