package migrations

import (
	"context"

	"github.com/gear6io/cnpj-pipeline/pipeline/store/storetypes"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/uptrace/bun"
)

// Migration001 creates the completion tracking table
type Migration001 struct{}

func (m *Migration001) Version() int {
	return 1
}

func (m *Migration001) Name() string {
	return "processed_files"
}

func (m *Migration001) Description() string {
	return "Completion markers keyed by (directory, filename)"
}

func (m *Migration001) Up(ctx context.Context, tx bun.Tx) error {
	if _, err := tx.NewCreateTable().
		Model((*storetypes.ProcessedFile)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.New(MigrationTableCreationFailed, "failed to create processed_files table", err)
	}
	return nil
}
