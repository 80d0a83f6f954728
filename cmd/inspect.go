package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var inspectRows int

var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Read a raw export straight from the bucket and show its first rows.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, bucket, err := gateway(ctx)
		if err != nil {
			return err
		}
		defer bucket.Close()

		tbl, err := gw.ReadRemoteTable(ctx, args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetTitle("%s: %d rows", args[0], tbl.RowCount())

		header := make(table.Row, len(tbl.Columns))
		for i, c := range tbl.Columns {
			header[i] = c
		}
		t.AppendHeader(header)

		for i, row := range tbl.Rows {
			if i == inspectRows {
				break
			}
			r := make(table.Row, len(row))
			for j, v := range row {
				r[j] = v
			}
			t.AppendRow(r)
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectRows, "rows", "n", 10, "number of rows to show")
	rootCmd.AddCommand(inspectCmd)
}
