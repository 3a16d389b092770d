package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/extractor"
	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/store"
)

// stubExtractor returns canned vendor output per source.
type stubExtractor struct {
	results map[string]*extractor.Result
	errs    map[string]error
}

func (s *stubExtractor) Extract(_ context.Context, source string) (*extractor.Result, error) {
	if err, ok := s.errs[source]; ok {
		return nil, err
	}
	if res, ok := s.results[source]; ok {
		return res, nil
	}
	return nil, errors.New("no stub for " + source)
}

func cleanVendorAOutput(docID string) map[string]any {
	return map[string]any{
		"document_id": docID,
		"fields": map[string]any{
			"invoice_number": map[string]any{"value": docID, "confidence": 0.98},
			"invoice_date":   map[string]any{"value": "2026-03-14", "confidence": 0.97},
			"supplier_name":  map[string]any{"value": "Acme Corp", "confidence": 0.95},
			"currency":       map[string]any{"value": "USD", "confidence": 0.99},
			"subtotal":       map[string]any{"value": 100.0, "confidence": 0.92},
			"tax":            map[string]any{"value": 8.0, "confidence": 0.9},
			"total":          map[string]any{"value": 108.0, "confidence": 0.93},
			"po_number":      map[string]any{"value": "PO-7", "confidence": 0.9},
		},
	}
}

func newTestPipeline(t *testing.T, ext extractor.Extractor) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{}
	cfg.Pipeline.Version = "1.0.0"
	cfg.Router.LowConfidenceThreshold = 0.7
	cfg.Batch.MaxConcurrentDocs = 2

	p, err := New(cfg, st, ext)
	require.NoError(t, err)
	return p, st
}

func TestProcess_AutoPost(t *testing.T) {
	ext := &stubExtractor{results: map[string]*extractor.Result{
		"a.json": {
			DocID:      "INV-001",
			VendorName: "vendor_a", VendorVersion: "2.1",
			Output: cleanVendorAOutput("INV-001"),
		},
	}}
	p, st := newTestPipeline(t, ext)

	res, err := p.Process(context.Background(), "a.json")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAutoPost, res.Decision.Outcome)
	assert.Empty(t, res.Decision.ReasonCodes)
	assert.True(t, res.Validation.Passed)
	require.NotNil(t, res.Insight)
	assert.Equal(t, model.PriorityLow, res.Insight.Priority)

	// The run is completed and the decision persisted.
	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "INV-001", run.DocID)
	require.NotNil(t, run.Result)
	assert.Equal(t, model.OutcomeAutoPost, run.Result.Outcome)

	dec, err := st.GetDecision(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "INV-001", dec.Record.DocID)
}

func TestProcess_NeedsReview(t *testing.T) {
	output := cleanVendorAOutput("INV-002")
	fields := output["fields"].(map[string]any)
	fields["total"] = map[string]any{"value": 120.0, "confidence": 0.5}
	delete(fields, "po_number")

	ext := &stubExtractor{results: map[string]*extractor.Result{
		"b.json": {DocID: "INV-002", VendorName: "vendor_a", VendorVersion: "2.1", Output: output},
	}}
	p, st := newTestPipeline(t, ext)

	res, err := p.Process(context.Background(), "b.json")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNeedsReview, res.Decision.Outcome)
	assert.Contains(t, res.Decision.ReasonCodes, "VALIDATION_FAILED")
	assert.Contains(t, res.Decision.ReasonCodes, "TOTAL_MISMATCH")
	assert.Contains(t, res.Decision.ReasonCodes, "LOW_CONFIDENCE")
	assert.Contains(t, res.Decision.ReasonCodes, "MISSING_PO")

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	assert.False(t, run.Result.ValidationPass)
	assert.Positive(t, run.Result.ErrorCount)
}

func TestProcess_ExtractFailureRecordsFailedRun(t *testing.T) {
	ext := &stubExtractor{errs: map[string]error{
		"missing.json": errors.New("open: no such file"),
	}}
	p, st := newTestPipeline(t, ext)

	res, err := p.Process(context.Background(), "missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract")
	require.NotNil(t, res)
	assert.NotEmpty(t, res.RunID)

	run, getErr := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Result)
	assert.Contains(t, run.Result.Error, "no such file")
}

func TestProcessBatch(t *testing.T) {
	ext := &stubExtractor{
		results: map[string]*extractor.Result{
			"a.json": {DocID: "INV-A", VendorName: "vendor_a", VendorVersion: "2.1", Output: cleanVendorAOutput("INV-A")},
			"c.json": {DocID: "INV-C", VendorName: "vendor_a", VendorVersion: "2.1", Output: cleanVendorAOutput("INV-C")},
		},
		errs: map[string]error{
			"b.json": errors.New("corrupt payload"),
		},
	}
	p, _ := newTestPipeline(t, ext)

	records := p.ProcessBatch(context.Background(), []string{"c.json", "a.json", "b.json"}, 2)
	require.Len(t, records, 3)

	// Ordered by source regardless of completion order.
	assert.Equal(t, "a.json", records[0].Source)
	assert.Equal(t, "b.json", records[1].Source)
	assert.Equal(t, "c.json", records[2].Source)

	assert.Equal(t, "INV-A", records[0].DocID)
	assert.Empty(t, records[0].Error)
	assert.Contains(t, records[1].Error, "corrupt payload")
	assert.NotEmpty(t, records[1].RunID)
	assert.Equal(t, "INV-C", records[2].DocID)
}

func TestProcessBatch_Empty(t *testing.T) {
	p, _ := newTestPipeline(t, &stubExtractor{})

	records := p.ProcessBatch(context.Background(), nil, 0)
	assert.Empty(t, records)
}

func TestNew_BadShapeConfig(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	cfg := &config.Config{}
	cfg.Normalizer.ShapeConfigPath = filepath.Join(t.TempDir(), "nope.yaml")

	_, err = New(cfg, st, &stubExtractor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape config")
}
