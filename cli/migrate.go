package cli

import (
	"strconv"

	"github.com/gear6io/cnpj-pipeline/pipeline/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Apply pending schema migrations and show the migration status.

run applies migrations on its own; this command is for preparing a
database ahead of time.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg, getLoggerFromContext(ctx))
	if err != nil {
		return err
	}
	defer st.Shutdown(ctx)

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	status, err := st.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(status))
	for _, s := range status {
		rows = append(rows, []string{strconv.Itoa(s.Version), s.Name, s.Status})
	}
	return renderTable(cmd.OutOrStdout(), []string{"Version", "Name", "Status"}, rows)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
