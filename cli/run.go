package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gear6io/cnpj-pipeline/pipeline/loader"
	"github.com/spf13/cobra"
)

var runOpts struct {
	snapshot string
	force    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a snapshot into the database",
	Long: `Load the latest snapshot, or the one named with --snapshot.

Archives already recorded as loaded are skipped, so an interrupted run can
simply be started again. --force forgets those records first and reloads
every archive of the snapshot.

A run where some archives failed still exits successfully; the summary
lists them and the next run retries them.

Examples:
  cnpj run
  cnpj run --snapshot 2024-03
  cnpj run --snapshot 2024-03 --force`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := loader.NewLoader(ctx, cfg, logger)
	if err != nil {
		return err
	}

	report, err := l.Run(ctx, loader.Options{
		Snapshot: runOpts.snapshot,
		Force:    runOpts.force,
	})
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to print report")
		}
	}
	return err
}

func printReport(w io.Writer, r *loader.Report) error {
	if r.Outcome() == loader.OutcomeIdle {
		_, err := fmt.Fprintf(w, "Snapshot %s is up to date, nothing to load\n", r.Snapshot)
		return err
	}

	rows := [][]string{
		{"Run", r.RunID},
		{"Snapshot", r.Snapshot.String()},
		{"Outcome", string(r.Outcome())},
		{"Archives pending", humanize.Comma(int64(len(r.Pending)))},
		{"Archives loaded", humanize.Comma(int64(len(r.Processed)))},
		{"Files", humanize.Comma(int64(r.Files))},
		{"Rows", humanize.Comma(r.Rows)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	}
	if r.Motivos > 0 {
		rows = append(rows, []string{"Motivos added", humanize.Comma(int64(r.Motivos))})
	}
	if len(r.Failed) > 0 {
		rows = append(rows, []string{"Failed", strings.Join(r.Failed, ", ")})
	}
	return renderTable(w, []string{"", ""}, rows)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runOpts.snapshot, "snapshot", "", "snapshot to load (YYYY-MM), default latest")
	runCmd.Flags().BoolVar(&runOpts.force, "force", false, "reload archives already marked as loaded")
}
