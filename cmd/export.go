package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/report"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the registry digest workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		companies := env.Registry.Companies()
		if err := report.SaveDigest(exportOut, companies, env.Registry.DetectPatterns()); err != nil {
			return eris.Wrap(err, "export digest")
		}
		zap.L().Info("digest written", zap.String("path", exportOut), zap.Int("companies", len(companies)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "digest.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
