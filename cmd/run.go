package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/terrashift/climate-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full projection pipeline",
	Long:  "Cleans the county registry, generates migration scenarios, downscales 2065 populations to counties, projects socioeconomic indicators, and computes composite indices and rankings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		res, err := pipeline.New(cfg, st).Run(ctx)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(os.Stdout, "Run %s complete\n", res.RunID)
		p.Fprintf(os.Stdout, "  counties:       %d\n", res.Detail.Counties)
		p.Fprintf(os.Stdout, "  scenarios:      %d\n", res.Detail.Scenarios)
		p.Fprintf(os.Stdout, "  target pop:     %d\n", cfg.Forecast.NationalTarget)
		p.Fprintf(os.Stdout, "  excluded rows:  %d\n", res.Detail.ExcludedRows)
		if len(res.Detail.FailedScenarios) > 0 {
			fmt.Fprintf(os.Stdout, "  failed:         %s\n", strings.Join(res.Detail.FailedScenarios, ", "))
		}
		fmt.Fprintf(os.Stdout, "  output dir:     %s\n", cfg.Paths.OutputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
