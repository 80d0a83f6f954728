package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/services"
	"leiloes-caixa/storage"
	"leiloes-caixa/utils"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:           "leiloes",
	Short:         "leiloes downloads Caixa property-sale listings, archives them and publishes cleaned tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger = utils.NewDebugLogger()
		} else {
			logger = utils.NewLogger()
		}
		slog.SetDefault(logger.Slog())

		var err error
		cfg, err = config.Load(configPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the command line. Interrupts cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// gateway opens the configured bucket. The caller closes the returned bucket.
func gateway(ctx context.Context) (*storage.Gateway, storage.Bucket, error) {
	bucket, err := storage.OpenBucket(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewGateway(bucket, cfg.ParserOptions().Encodings, logger), bucket, nil
}

func openLedger(ctx context.Context) (storage.RunLedger, error) {
	if cfg.DatabaseURL == "" {
		logger.Debug("[ledger] No database configured, run records are not persisted")
		return storage.NopLedger{}, nil
	}
	return storage.NewPostgresLedger(ctx, cfg.DatabaseURL)
}

func printReport(records ...*models.RunRecord) error {
	reporter := services.NewReportService(logger)
	report := reporter.Generate(records)
	reporter.Print(os.Stdout, report)

	if cfg.ReportPath != "" {
		if err := reporter.WriteCSV(cfg.ReportPath, records); err != nil {
			logger.Warn("[report] %v", err)
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d regions failed", report.Failed, report.Regions)
	}
	return nil
}
