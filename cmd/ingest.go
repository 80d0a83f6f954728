package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leiloes-caixa/models"
	"leiloes-caixa/services"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <state> <file>",
	Short: "Archive and clean an export that was downloaded by hand.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		region := models.RegionCode(strings.ToUpper(strings.TrimSpace(args[0])))

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

		pipeline := services.NewPipeline(cfg, nil, gw, services.NewTransformer(cfg, gw, logger), ledger, logger)
		rec, procErr := pipeline.ProcessLocal(ctx, region, args[1])
		if err := printReport(rec); err != nil {
			return fmt.Errorf("ingest %s: %w", region, procErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
