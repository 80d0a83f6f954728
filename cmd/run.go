package cmd

import (
	"github.com/spf13/cobra"

	"leiloes-caixa/scraper/caixa"
	"leiloes-caixa/services"
)

var estados []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, archive and clean the listings of every configured state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runCfg := cfg
		if len(estados) > 0 {
			var err error
			if runCfg, err = cfg.WithRegions(estados); err != nil {
				return err
			}
		}

		gw, bucket, err := gateway(ctx)
		if err != nil {
			return err
		}
		defer bucket.Close()

		ledger, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close()

		fetcher, err := caixa.New(runCfg, logger)
		if err != nil {
			return err
		}
		defer fetcher.Close()

		logger.Info("=== Caixa listings pipeline starting ===")
		logger.Info("Config: bucket %s (%s) | states %v | dialect %s",
			runCfg.Bucket, runCfg.Storage.Backend, runCfg.Regions(), runCfg.ParserOptions().Dialect)

		pipeline := services.NewPipeline(runCfg, fetcher, gw, services.NewTransformer(runCfg, gw, logger), ledger, logger)
		report := pipeline.Run(ctx, runCfg.Regions())

		if err := printReport(report.Records...); err != nil {
			return err
		}
		return ctx.Err()
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&estados, "estados", nil, "comma-separated state codes overriding the configured list (e.g. MG,SP)")
	rootCmd.AddCommand(runCmd)
}
