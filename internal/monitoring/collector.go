// Package monitoring collects triage metrics and raises webhook alerts when
// batch quality degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/report"
	"github.com/sells-group/invoice-triage/internal/store"
)

// MetricsSnapshot holds a point-in-time view of triage health.
type MetricsSnapshot struct {
	// Run counts (within lookback window).
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Queued   int     `json:"queued"`
	FailRate float64 `json:"fail_rate"`

	// Routing outcomes.
	AutoPosted  int     `json:"auto_posted"`
	NeedsReview int     `json:"needs_review"`
	ReviewRate  float64 `json:"review_rate"`

	// Quality.
	ValidationPassRate float64        `json:"validation_pass_rate"`
	AvgConfidence      float64        `json:"avg_confidence"`
	MinConfidence      float64        `json:"min_confidence"`
	MaxConfidence      float64        `json:"max_confidence"`
	ReasonCodeCounts   map[string]int `json:"reason_code_counts"`

	// Cost and latency.
	ProcessingCostUSD float64 `json:"processing_cost_usd"`
	AvgDurationMS     int64   `json:"avg_duration_ms"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := newSnapshot(lookbackHours)

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var confSum float64
	var confCount int
	var durationSum int64

	for _, r := range runs {
		snap.Total++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusQueued:
			snap.Queued++
		}
		if r.Result == nil {
			continue
		}

		tallyOutcome(snap, r.Result.Outcome)
		observeConfidence(snap, r.Result.ConfidenceScore, &confSum, &confCount)
		for _, code := range r.Result.ReasonCodes {
			snap.ReasonCodeCounts[code]++
		}
		durationSum += r.Result.DurationMS
	}

	finalize(snap, runs, confSum, confCount, durationSum)
	return snap, nil
}

// FromRecords builds a snapshot directly from flattened batch records,
// without a store round trip. Used at the end of batch runs.
func FromRecords(records []report.Record) *MetricsSnapshot {
	snap := newSnapshot(0)

	var confSum float64
	var confCount int
	var validationPassed int

	for _, rec := range records {
		snap.Total++
		if rec.Error != "" {
			snap.Failed++
			continue
		}
		snap.Complete++

		tallyOutcome(snap, rec.Outcome)
		if rec.ValidationPass {
			validationPassed++
		}
		observeConfidence(snap, rec.ConfidenceScore, &confSum, &confCount)
		for _, code := range rec.ReasonCodes {
			snap.ReasonCodeCounts[code]++
		}
		if rec.Insight != nil {
			snap.ProcessingCostUSD += rec.Insight.ProcessingCost
		}
	}

	if snap.Complete > 0 {
		snap.ValidationPassRate = float64(validationPassed) / float64(snap.Complete)
	}
	finishRates(snap, confSum, confCount)
	return snap
}

func newSnapshot(lookbackHours int) *MetricsSnapshot {
	return &MetricsSnapshot{
		ReasonCodeCounts: map[string]int{},
		MinConfidence:    1.0,
		LookbackHours:    lookbackHours,
		CollectedAt:      time.Now().UTC(),
	}
}

func tallyOutcome(snap *MetricsSnapshot, outcome model.Outcome) {
	switch outcome {
	case model.OutcomeAutoPost:
		snap.AutoPosted++
	case model.OutcomeNeedsReview:
		snap.NeedsReview++
	}
}

func observeConfidence(snap *MetricsSnapshot, score float64, sum *float64, count *int) {
	*sum += score
	*count++
	if score < snap.MinConfidence {
		snap.MinConfidence = score
	}
	if score > snap.MaxConfidence {
		snap.MaxConfidence = score
	}
}

func finalize(snap *MetricsSnapshot, runs []model.Run, confSum float64, confCount int, durationSum int64) {
	var validationPassed, withResult int
	for _, r := range runs {
		if r.Result != nil {
			withResult++
			if r.Result.ValidationPass {
				validationPassed++
			}
		}
	}
	if withResult > 0 {
		snap.ValidationPassRate = float64(validationPassed) / float64(withResult)
		snap.AvgDurationMS = durationSum / int64(withResult)
	}
	finishRates(snap, confSum, confCount)
}

func finishRates(snap *MetricsSnapshot, confSum float64, confCount int) {
	finished := snap.Complete + snap.Failed
	if finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	routed := snap.AutoPosted + snap.NeedsReview
	if routed > 0 {
		snap.ReviewRate = float64(snap.NeedsReview) / float64(routed)
	}
	if confCount > 0 {
		snap.AvgConfidence = confSum / float64(confCount)
	} else {
		snap.MinConfidence = 0
	}
}
