package main

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/fetcher"
)

var (
	convertSheet    string
	convertSkipRows int
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.xlsx> <output.csv>",
	Short: "Convert an agency XLSX workbook to CSV",
	Long:  "Converts crime and job-openings workbooks to the tabular CSV form the pipeline reads. Preamble rows above the header are skipped with --skip-rows.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]

		rows, err := fetcher.ReadXLSX(input, fetcher.XLSXOptions{
			SheetName: convertSheet,
			SkipRows:  convertSkipRows,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("workbook %s has no rows after skipping %d", input, convertSkipRows)
		}

		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %s", output)
		}
		defer f.Close() //nolint:errcheck

		w := csv.NewWriter(f)
		if err := w.WriteAll(rows); err != nil {
			return eris.Wrapf(err, "write %s", output)
		}

		zap.L().Info("workbook converted",
			zap.String("input", input),
			zap.String("output", output),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertSheet, "sheet", "", "sheet name (default: first sheet)")
	convertCmd.Flags().IntVar(&convertSkipRows, "skip-rows", 0, "preamble rows to skip before the header")
	rootCmd.AddCommand(convertCmd)
}
