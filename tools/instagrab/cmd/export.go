package cmd

import (
	"github.com/perpetuallyhorni/instagrab/pkg/export"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exportCmd writes every stored post to a JSON file.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all stored posts with their hashtags to a JSON file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output := cfg.ExportPath
		if cmd.Flags().Changed("output") {
			output, _ = cmd.Flags().GetString("output")
		}

		docs, err := export.NewProjector(database).ExportAll(cmd.Context())
		if err != nil {
			return err
		}
		if err := export.WriteFile(output, docs); err != nil {
			logger.Error("export failed", zap.String("path", output), zap.Error(err))
			return err
		}
		logger.Info("export written", zap.String("path", output), zap.Int("posts", len(docs)))
		console.Success("Exported %d post(s) to %s", len(docs), output)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output JSON file (overrides config)")
}
