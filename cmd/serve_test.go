package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/extractor"
	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/pipeline"
	"github.com/sells-group/invoice-triage/internal/store"
)

func testServerConfig() *config.Config {
	c := &config.Config{}
	c.Pipeline.Version = "1.0.0"
	c.Pipeline.VendorName = "vendor_a"
	c.Pipeline.VendorVersion = "2.1"
	c.Router.LowConfidenceThreshold = 0.7
	c.Server.RatePerSecond = 100
	c.Server.RateBurst = 100
	c.Server.AllowedOrigins = []string{"*"}
	c.Monitoring.LookbackWindowHours = 24
	return c
}

func newTestRouter(t *testing.T, c *config.Config) http.Handler {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	ext := extractor.NewFileExtractor(c.Pipeline.VendorName, c.Pipeline.VendorVersion)
	p, err := pipeline.New(c, st, ext)
	require.NoError(t, err)

	return newRouter(c, st, p)
}

func vendorPayload(docID string) map[string]any {
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

func writeVendorFile(t *testing.T, docID string) string {
	t.Helper()
	data, err := json.Marshal(vendorPayload(docID))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), docID+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, testServerConfig())

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_ProcessInvoice_Source(t *testing.T) {
	h := newTestRouter(t, testServerConfig())
	path := writeVendorFile(t, "INV-100")

	rr := doJSON(t, h, http.MethodPost, "/v1/invoices", processRequest{Source: path})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result model.ProcessResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, model.OutcomeAutoPost, result.Decision.Outcome)
	assert.Equal(t, "INV-100", result.Record.DocID)
	assert.NotEmpty(t, result.RunID)
}

func TestRouter_ProcessInvoice_InlinePayload(t *testing.T) {
	h := newTestRouter(t, testServerConfig())

	rr := doJSON(t, h, http.MethodPost, "/v1/invoices", processRequest{Payload: vendorPayload("INV-200")})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result model.ProcessResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "INV-200", result.Record.DocID)
	assert.True(t, result.Validation.Passed)
}

func TestRouter_ProcessInvoice_EmptyRequest(t *testing.T) {
	h := newTestRouter(t, testServerConfig())

	rr := doJSON(t, h, http.MethodPost, "/v1/invoices", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source or payload is required")
}

func TestRouter_ProcessInvoice_ExtractFailure(t *testing.T) {
	h := newTestRouter(t, testServerConfig())

	rr := doJSON(t, h, http.MethodPost, "/v1/invoices", processRequest{Source: "/nonexistent/invoice.json"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "processing failed", resp["error"])
	assert.NotEmpty(t, resp["run_id"], "failed runs should still be reported")
}

func TestRouter_RunsAndMetrics(t *testing.T) {
	h := newTestRouter(t, testServerConfig())
	path := writeVendorFile(t, "INV-300")

	rr := doJSON(t, h, http.MethodPost, "/v1/invoices", processRequest{Source: path})
	require.Equal(t, http.StatusOK, rr.Code)

	var result model.ProcessResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))

	// List endpoint sees the completed run.
	rr = doJSON(t, h, http.MethodGet, "/v1/runs?outcome=AUTO_POST", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Runs  []model.Run `json:"runs"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "INV-300", list.Runs[0].DocID)
	assert.Equal(t, model.RunStatusComplete, list.Runs[0].Status)

	// Single-run and decision endpoints.
	rr = doJSON(t, h, http.MethodGet, "/v1/runs/"+result.RunID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/v1/runs/"+result.RunID+"/decision", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var decision model.ProcessResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decision))
	assert.Equal(t, model.OutcomeAutoPost, decision.Decision.Outcome)

	// Metrics reflect the run.
	rr = doJSON(t, h, http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, float64(1), snap["total"])
}

func TestRouter_GetRun_NotFound(t *testing.T) {
	h := newTestRouter(t, testServerConfig())

	rr := doJSON(t, h, http.MethodGet, "/v1/runs/no-such-run", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestRouter_RateLimit(t *testing.T) {
	c := testServerConfig()
	c.Server.RatePerSecond = 0
	c.Server.RateBurst = 1
	h := newTestRouter(t, c)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestSpoolPayload(t *testing.T) {
	path, err := spoolPayload(vendorPayload("INV-400"))
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "INV-400", payload["document_id"])
}
