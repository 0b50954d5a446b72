package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sells-group/fda-watch/internal/summarize"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion cycle and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		result, cycleErr := env.Pipeline.RunCycle(ctx)
		if s, ok := env.Summarizer.(*summarize.AnthropicSummarizer); ok {
			s.LogUsage()
		}
		if result != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		}
		return cycleErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
