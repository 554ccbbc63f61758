package migrations

import (
	"context"
	"fmt"

	"github.com/gear6io/cnpj-pipeline/pipeline/store/storetypes"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/uptrace/bun"
)

// Migration002 creates one relation per record kind
type Migration002 struct{}

func (m *Migration002) Version() int {
	return 2
}

func (m *Migration002) Name() string {
	return "data_tables"
}

func (m *Migration002) Description() string {
	return "CNPJ data relations with primary keys and data_atualizacao"
}

func (m *Migration002) Up(ctx context.Context, tx bun.Tx) error {
	for _, model := range storetypes.DataModels() {
		if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.New(MigrationTableCreationFailed, "failed to create data table", err).
				AddContext("model", fmt.Sprintf("%T", model))
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_estabelecimentos_municipio ON estabelecimentos(municipio)`,
		`CREATE INDEX IF NOT EXISTS idx_estabelecimentos_cnae ON estabelecimentos(cnae_fiscal_principal)`,
		`CREATE INDEX IF NOT EXISTS idx_socios_cnpj_cpf ON socios(cnpj_cpf_do_socio)`,
	}
	for _, stmt := range indexes {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.New(MigrationIndexCreationFailed, "failed to create index", err).
				AddContext("statement", stmt)
		}
	}
	return nil
}
