package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/monitoring"
	"github.com/sells-group/invoice-triage/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect triage run history",
	Long:  "Commands for listing, viewing, and summarizing triage runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List triage runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		doc, _ := cmd.Flags().GetString("doc")
		outcome, _ := cmd.Flags().GetString("outcome")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status:  model.RunStatus(status),
			DocID:   doc,
			Outcome: model.Outcome(outcome),
			Limit:   limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs decision --

var runsDecisionCmd = &cobra.Command{
	Use:   "decision <run-id>",
	Short: "Show the persisted routing decision of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		res, err := st.GetDecision(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs decision")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours < 1 {
			hours = 1
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, extracting, complete, failed, ...)")
	runsListCmd.Flags().String("doc", "", "filter by document ID")
	runsListCmd.Flags().String("outcome", "", "filter by routing outcome (AUTO_POST, NEEDS_REVIEW)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDecisionCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOC\tSTATUS\tOUTCOME\tCONF\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t-------\t----\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		outcome := ""
		conf := ""
		if r.Result != nil {
			outcome = string(r.Result.Outcome)
			conf = fmt.Sprintf("%.2f", r.Result.ConfidenceScore)
		}

		doc := r.DocID
		if doc == "" {
			doc = "-"
		}
		if len(doc) > 30 {
			doc = doc[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			doc,
			r.Status,
			outcome,
			conf,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes a metrics snapshot to w.
func formatRunStats(out io.Writer, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", snap.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", snap.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d (%.1f%%)\n", snap.Failed, snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Auto-posted:\t%d\n", snap.AutoPosted)
	_, _ = fmt.Fprintf(w, "Needs review:\t%d (%.1f%%)\n", snap.NeedsReview, snap.ReviewRate*100)
	_, _ = fmt.Fprintf(w, "Validation pass rate:\t%.1f%%\n", snap.ValidationPassRate*100)
	_, _ = fmt.Fprintf(w, "Avg confidence:\t%.3f\n", snap.AvgConfidence)
	_, _ = fmt.Fprintf(w, "Avg duration:\t%dms\n", snap.AvgDurationMS)
	for code, count := range snap.ReasonCodeCounts {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", code, count)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
