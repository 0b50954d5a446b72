package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/scorer"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fda-watch",
	Short: "FDA regulatory action aggregator",
	Long:  "Fetches FDA and trade-press feeds, classifies regulatory actions, resolves company names and tracks per-company risk and compliance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := scorer.ValidateConfig(c.Risk); err != nil {
			return eris.Wrap(err, "risk config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
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
