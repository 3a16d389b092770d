package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	runs := []model.Run{
		{
			ID:        "0193a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
			DocID:     "INV-001",
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Outcome: model.OutcomeAutoPost, ConfidenceScore: 0.95},
			CreatedAt: created,
			UpdatedAt: created.Add(2 * time.Second),
		},
		{
			ID:        "0193a1b2-dddd-7e5f-8a9b-0c1d2e3f4a5b",
			Status:    model.RunStatusFailed,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "0193a1b2")
	assert.Contains(t, out, "INV-001")
	assert.Contains(t, out, "AUTO_POST")
	assert.Contains(t, out, "0.95")
	assert.Contains(t, out, "failed")
	// A run that never got a doc ID renders a placeholder.
	assert.Contains(t, out, "-")
}

func TestFormatRunStats(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		Total:         4,
		Complete:      3,
		Failed:        1,
		FailRate:      0.25,
		AutoPosted:    2,
		NeedsReview:   1,
		ReviewRate:    1.0 / 3.0,
		AvgConfidence: 0.875,
		AvgDurationMS: 120,
		LookbackHours: 24,
		ReasonCodeCounts: map[string]int{
			"LOW_CONFIDENCE": 1,
		},
	}

	var buf bytes.Buffer
	formatRunStats(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "last 24h")
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "0.875")
	assert.Contains(t, out, "120ms")
	assert.Contains(t, out, "LOW_CONFIDENCE")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0193a1b2", truncateID("0193a1b2-c3d4-7e5f"))
	assert.Equal(t, "short", truncateID("short"))
}
