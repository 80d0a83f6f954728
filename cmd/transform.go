package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"leiloes-caixa/services"
)

var transformCmd = &cobra.Command{
	Use:   "transform <raw-key>",
	Short: "Clean an archived raw export and print the path of the cleaned file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, bucket, err := gateway(ctx)
		if err != nil {
			return err
		}
		defer bucket.Close()

		path, err := services.NewTransformer(cfg, gw, logger).Transform(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
}
