package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "climate-cli",
	Short: "Climate-migration county projection toolkit",
	Long:  "Downloads county socioeconomic data, projects 2065 populations under climate-migration scenarios, and ranks counties by composite indices.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
