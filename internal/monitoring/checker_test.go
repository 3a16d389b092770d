package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	collector := NewCollector(&mockStore{})
	alerter := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
	})
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckIntervalSecs:   1,
		LookbackWindowHours: 24,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// Let it tick once then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Run returned.
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	collector := NewCollector(&mockStore{})
	alerter := NewAlerter(config.MonitoringConfig{})

	// Zero interval should default to 5 minutes.
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckIntervalSecs: 0,
	})
	assert.Equal(t, 5*time.Minute, checker.interval)

	// Start and immediately cancel to verify it doesn't panic.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckNow(t *testing.T) {
	st := &mockStore{runs: []model.Run{
		completedRun(model.OutcomeAutoPost, 0.95, true),
		completedRun(model.OutcomeNeedsReview, 0.55, false, "LOW_CONFIDENCE"),
	}}
	checker := NewChecker(NewCollector(st), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{
		LookbackWindowHours: 24,
	})

	snap, err := checker.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.AutoPosted)
	assert.Equal(t, 1, snap.NeedsReview)
}

func TestChecker_CheckNow_SendsAlertsOnBreach(t *testing.T) {
	var delivered atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// Ten runs, nine held for review: breaches a 50% review-rate threshold.
	runs := []model.Run{completedRun(model.OutcomeAutoPost, 0.9, true)}
	for i := 0; i < 9; i++ {
		runs = append(runs, completedRun(model.OutcomeNeedsReview, 0.5, false, "LOW_CONFIDENCE"))
	}

	monCfg := config.MonitoringConfig{
		WebhookURL:          ts.URL,
		ReviewRateThreshold: 0.5,
		LookbackWindowHours: 24,
	}
	checker := NewChecker(NewCollector(&mockStore{runs: runs}), NewAlerter(monCfg), monCfg)

	snap, err := checker.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, snap.NeedsReview)
	assert.Equal(t, int32(1), delivered.Load())
}

func TestChecker_CheckNow_CollectError(t *testing.T) {
	st := &mockStore{listErr: errors.New("db down")}
	checker := NewChecker(NewCollector(st), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	_, err := checker.CheckNow(context.Background())
	require.Error(t, err)
}
