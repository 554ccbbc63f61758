package cli

import (
	"context"

	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootOpts struct {
	configFile string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "cnpj",
	Short: "Load the Receita Federal CNPJ open data into PostgreSQL",
	Long: `cnpj downloads the monthly CNPJ open-data release published by the
Receita Federal, normalizes its tables and upserts them into PostgreSQL.

Runs are resumable: every archive that loads completely is recorded, and
the next run of the same snapshot only processes what is still pending.

Configuration is read from cnpj.yml (or --config), then from environment
variables such as DATABASE_URL, BATCH_SIZE and DOWNLOAD_WORKERS.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithContext runs the root command with ctx, which is cancelled on
// shutdown signals
func ExecuteWithContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

type configKey struct{}

// setup resolves configuration and installs the logger in the command
// context
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootOpts.configFile)
	if err != nil {
		return err
	}
	if rootOpts.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := config.SetupLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(logger.WithContext(ctx), configKey{}, cfg)
	cmd.SetContext(ctx)

	logger.Debug().Str("cmd", cmd.Name()).Msg("Executing command")
	return nil
}

// getConfigFromContext returns the configuration resolved by setup
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.LoadDefaultConfig()
}

// getLoggerFromContext returns the logger installed by setup
func getLoggerFromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.configFile, "config", "c", "", "config file (default cnpj.yml)")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "verbose output")
}
