package migrations

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	MigrationTableCreationFailed = errors.MustNewCode("migrations.table_creation_failed")
	MigrationIndexCreationFailed = errors.MustNewCode("migrations.index_creation_failed")
	MigrationFailed              = errors.MustNewCode("migrations.migration_failed")
	MigrationSchemaMismatch      = errors.MustNewCode("migrations.schema_mismatch")
)
