package cli

import (
	"fmt"
	"slices"

	"github.com/gear6io/cnpj-pipeline/pipeline/acquire"
	"github.com/gear6io/cnpj-pipeline/pipeline/loader"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/spf13/cobra"
)

var listOpts struct {
	snapshot string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List published snapshots",
	Long: `List the snapshots published at the configured source, newest first.

With --snapshot, list the archives of that snapshot instead, in the order a
run would load them.

Examples:
  cnpj list
  cnpj list --snapshot 2024-03`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	client := acquire.NewClient(cfg, getLoggerFromContext(ctx))

	if listOpts.snapshot != "" {
		snapshot, err := schema.ParseSnapshot(listOpts.snapshot)
		if err != nil {
			return err
		}
		members, err := client.ListMembers(ctx, snapshot)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(members))
		for _, name := range loader.Pending(members, nil) {
			kind := "data"
			if schema.IsReferenceArchive(name) {
				kind = "reference"
			}
			rows = append(rows, []string{name, schema.ClassifyArchive(name).String(), kind})
		}
		return renderTable(cmd.OutOrStdout(), []string{"Archive", "Type", "Kind"}, rows)
	}

	snapshots, err := client.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No snapshots published")
		return nil
	}

	slices.Reverse(snapshots)
	rows := make([][]string, 0, len(snapshots))
	for i, s := range snapshots {
		latest := ""
		if i == 0 {
			latest = "latest"
		}
		rows = append(rows, []string{s.String(), latest})
	}
	return renderTable(cmd.OutOrStdout(), []string{"Snapshot", ""}, rows)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listOpts.snapshot, "snapshot", "", "list the archives of this snapshot (YYYY-MM)")
}
