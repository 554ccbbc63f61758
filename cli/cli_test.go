package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"list", "run", "status", "migrate"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, runCmd.Flags().Lookup("snapshot"))
	assert.NotNil(t, runCmd.Flags().Lookup("force"))
}

func TestPrintReport(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printReport(&buf, &loader.Report{Snapshot: "2024-03", State: loader.Idle}))
		assert.Equal(t, "Snapshot 2024-03 is up to date, nothing to load\n", buf.String())
	})

	t.Run("partial", func(t *testing.T) {
		var buf bytes.Buffer
		report := &loader.Report{
			RunID:     "01J0000000000000000000000",
			Snapshot:  "2024-03",
			State:     loader.Done,
			Pending:   []string{"Cnaes.zip", "Empresas0.zip", "Empresas1.zip"},
			Processed: []string{"Cnaes.zip", "Empresas0.zip"},
			Failed:    []string{"Empresas1.zip"},
			Files:     2,
			Rows:      1234567,
			Duration:  90 * time.Second,
		}
		require.NoError(t, printReport(&buf, report))

		out := buf.String()
		assert.Contains(t, out, "partial")
		assert.Contains(t, out, "1,234,567")
		assert.Contains(t, out, "Empresas1.zip")
		assert.Contains(t, out, "1m30s")
		assert.NotContains(t, out, "Motivos added")
	})
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	err := renderTable(&buf, []string{"Snapshot", ""}, [][]string{{"2024-03", "latest"}, {"2024-02", ""}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2024-03")
	assert.Contains(t, buf.String(), "latest")
}
