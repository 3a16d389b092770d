package pipeline

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-triage/internal/report"
)

// ProcessBatch triages all sources concurrently and returns one flattened
// record per source, ordered by source path. Individual failures never abort
// the batch; they come back as failure records.
func (p *Pipeline) ProcessBatch(ctx context.Context, sources []string, concurrency int) []report.Record {
	if concurrency <= 0 {
		concurrency = p.cfg.Batch.MaxConcurrentDocs
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("documents", len(sources)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	records := make([]report.Record, 0, len(sources))

	for _, source := range sources {
		g.Go(func() error {
			result, err := p.Process(gctx, source)

			var rec report.Record
			if err != nil {
				runID := ""
				if result != nil {
					runID = result.RunID
				}
				rec = report.FailureRecord(runID, source, err)
			} else {
				rec = report.FromResult(source, result)
			}

			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil // individual failures never abort the batch
		})
	}

	_ = g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].Source < records[j].Source })

	var failed int
	for _, rec := range records {
		if rec.Error != "" {
			failed++
		}
	}
	zap.L().Info("pipeline: batch complete",
		zap.Int("succeeded", len(records)-failed),
		zap.Int("failed", failed),
	)
	return records
}
