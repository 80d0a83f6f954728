package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"leiloes-caixa/models"
	"leiloes-caixa/services"
	"leiloes-caixa/storage"
)

var historyEstado string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the runs recorded in the database, oldest day first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.DatabaseURL == "" {
			return errors.New("history: no database_url configured")
		}

		ledger, err := storage.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer ledger.Close()

		reporter := services.NewReportService(logger)
		region := models.RegionCode(strings.ToUpper(strings.TrimSpace(historyEstado)))
		report, err := reporter.History(ctx, ledger, region)
		if err != nil {
			return err
		}
		reporter.Print(os.Stdout, report)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyEstado, "estado", "", "only show runs for this state code")
	rootCmd.AddCommand(historyCmd)
}
