package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pipeline/store"
	"github.com/spf13/cobra"
)

var statusOpts struct {
	snapshot string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which archives of a snapshot are loaded",
	Long: `Show the archives of a snapshot recorded as completely loaded.

Examples:
  cnpj status --snapshot 2024-03`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)

	snapshot, err := schema.ParseSnapshot(statusOpts.snapshot)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg, getLoggerFromContext(ctx))
	if err != nil {
		return err
	}
	defer st.Shutdown(ctx)

	files, err := st.ProcessedFiles(ctx, snapshot.String())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No archives of %s loaded yet\n", snapshot)
		return nil
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Filename, f.ProcessedAt.Format("2006-01-02 15:04:05"), humanize.Time(f.ProcessedAt)})
	}
	return renderTable(cmd.OutOrStdout(), []string{"Archive", "Loaded at", ""}, rows)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusOpts.snapshot, "snapshot", "", "snapshot to inspect (YYYY-MM)")
	statusCmd.MarkFlagRequired("snapshot")
}
