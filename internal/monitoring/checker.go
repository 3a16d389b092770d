package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-triage/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker watches triage health in the background: on every tick it
// snapshots the run store and fires webhook alerts when the window's
// review rate, failure rate, or processing cost breaches a threshold.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker creates a background triage health checker. A zero check
// interval defaults to 5 minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run blocks, calling CheckNow every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting triage health checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("triage health checker stopped")
			return
		case <-ticker.C:
			if _, err := c.CheckNow(ctx); err != nil {
				log.Error("monitoring: health check failed", zap.Error(err))
			}
		}
	}
}

// CheckNow runs a single collect-evaluate-send cycle and returns the
// snapshot it judged. Alert delivery failures are logged by the alerter
// and do not fail the check.
func (c *Checker) CheckNow(ctx context.Context) (*MetricsSnapshot, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: triage window checked",
		zap.Int("runs", snap.Total),
		zap.Int("failed", snap.Failed),
		zap.Int("auto_posted", snap.AutoPosted),
		zap.Int("needs_review", snap.NeedsReview),
		zap.Float64("review_rate", snap.ReviewRate),
		zap.Float64("avg_confidence", snap.AvgConfidence),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return snap, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: triage thresholds breached",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap, nil
}
