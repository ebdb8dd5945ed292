package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

var (
	envFile   string
	logLevel  string
	logFormat string

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tariffctl",
	Short: "Extract procedure catalogs from insurance fee-table PDFs",
	Long: `tariffctl renders each page of a provider's fee table, recognizes its text,
asks a language model for the procedures on the page and merges them into one
catalog keyed by procedure code.

Configuration comes from the environment (and a .env file when present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := os.Setenv("TARIFF_ENV_FILE", envFile); err != nil {
				return err
			}
		}
		cfg = common.LoadConfig()
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		logger = common.NewLogger(cmd.ErrOrStderr(), cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json|text (overrides LOG_FORMAT)")
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context) (*repository.DB, repository.CatalogRepository, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening DB: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repository.NewCatalogRepository(db, logger), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
