package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <source>",
	Short: "Triage a single invoice document",
	Long:  "Extracts, normalizes, validates, and routes one vendor payload. The source is a path to a vendor output JSON file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Process(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "process")
		}

		zap.L().Info("triage complete",
			zap.String("run_id", result.RunID),
			zap.String("doc_id", result.Record.DocID),
			zap.String("outcome", string(result.Decision.Outcome)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
