package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-triage/internal/monitoring"
	"github.com/sells-group/invoice-triage/internal/report"
	"github.com/sells-group/invoice-triage/internal/store"
)

var (
	batchManifest    string
	batchConcurrency int
	batchResultsOut  string
	batchWorkbookOut string
)

var batchCmd = &cobra.Command{
	Use:   "batch [source...]",
	Short: "Triage a batch of invoice documents",
	Long:  "Processes multiple vendor payloads concurrently, then writes a results file and an optional review workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sources, err := gatherSources(args, batchManifest)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			zap.L().Info("no sources to process")
			return nil
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records := env.Pipeline.ProcessBatch(ctx, sources, batchConcurrency)

		snap := monitoring.FromRecords(records)
		zap.L().Info("batch summary",
			zap.Int("documents", snap.Total),
			zap.Int("failed", snap.Failed),
			zap.Int("auto_posted", snap.AutoPosted),
			zap.Int("needs_review", snap.NeedsReview),
			zap.Float64("avg_confidence", snap.AvgConfidence),
			zap.Float64("processing_cost_usd", snap.ProcessingCostUSD),
		)

		resultsPath := batchResultsOut
		if resultsPath == "" {
			resultsPath = cfg.Report.ResultsFile
		}
		if resultsPath != "" {
			if err := report.WriteJSON(resultsPath, records); err != nil {
				return eris.Wrap(err, "write results")
			}
			zap.L().Info("results written", zap.String("path", resultsPath))
		}

		workbookPath := batchWorkbookOut
		if workbookPath == "" {
			workbookPath = cfg.Report.WorkbookFile
		}
		if workbookPath != "" {
			if err := report.WriteWorkbook(workbookPath, records); err != nil {
				return eris.Wrap(err, "write workbook")
			}
			zap.L().Info("workbook written", zap.String("path", workbookPath))
		}

		if ps, ok := env.Store.(*store.PostgresStore); ok {
			archived, err := ps.ArchiveRecords(ctx, records)
			if err != nil {
				zap.L().Warn("record archive failed", zap.Error(err))
			} else {
				zap.L().Info("records archived", zap.Int64("rows", archived))
			}
		}

		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "file listing one source path per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent documents (default from config)")
	batchCmd.Flags().StringVar(&batchResultsOut, "out", "", "results JSON path (default from config)")
	batchCmd.Flags().StringVar(&batchWorkbookOut, "workbook", "", "review workbook XLSX path (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// gatherSources merges command-line sources with a manifest file. Blank lines
// and #-comments in the manifest are skipped.
func gatherSources(args []string, manifestPath string) ([]string, error) {
	sources := append([]string{}, args...)

	if manifestPath != "" {
		f, err := os.Open(manifestPath)
		if err != nil {
			return nil, eris.Wrap(err, "open manifest")
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			sources = append(sources, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "read manifest")
		}
	}

	return sources, nil
}
