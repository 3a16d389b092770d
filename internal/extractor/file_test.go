package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileExtractor_Extract(t *testing.T) {
	path := writePayload(t, "invoice_001.json", `{
		"document_id": "INV-001",
		"fields": {"total": {"value": 99.5, "confidence": 0.9}}
	}`)

	e := NewFileExtractor("vendor_a", "2.1")
	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "INV-001", result.DocID)
	assert.Equal(t, "vendor_a", result.VendorName)
	assert.Equal(t, "2.1", result.VendorVersion)
	assert.NotNil(t, result.Output["fields"])
}

func TestFileExtractor_DerivesDocIDFromFilename(t *testing.T) {
	path := writePayload(t, "invoice_002.json", `{"fields": {}}`)

	e := NewFileExtractor("vendor_a", "2.1")
	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "DOC-invoice_002", result.DocID)
	// The derived ID is written back so the normalizer sees it too.
	assert.Equal(t, "DOC-invoice_002", result.Output["document_id"])
}

func TestFileExtractor_URLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"fields": {"total": {"value": 10.0, "confidence": 0.8}}}`))
	}))
	defer srv.Close()

	e := NewFileExtractor("vendor_a", "2.1")

	result, err := e.Extract(context.Background(), srv.URL+"/payload")
	require.NoError(t, err)
	assert.Equal(t, "DOC-URL-001", result.DocID)

	// Sequence advances per URL source.
	result, err = e.Extract(context.Background(), srv.URL+"/payload2")
	require.NoError(t, err)
	assert.Equal(t, "DOC-URL-002", result.DocID)
}

func TestFileExtractor_DocIDPerScheme(t *testing.T) {
	e := NewFileExtractor("vendor_a", "2.1")

	// Every remote scheme draws from the URL sequence; only plain paths
	// derive from the basename.
	assert.Equal(t, "DOC-URL-001", e.deriveDocID("http://host/invoice.json"))
	assert.Equal(t, "DOC-URL-002", e.deriveDocID("https://host/invoice.json"))
	assert.Equal(t, "DOC-URL-003", e.deriveDocID("ftp://host/drop/invoice.json"))
	assert.Equal(t, "DOC-invoice_003", e.deriveDocID("/data/invoice_003.json"))
}

func TestFileExtractor_Errors(t *testing.T) {
	e := NewFileExtractor("vendor_a", "2.1")

	_, err := e.Extract(context.Background(), "/does/not/exist.json")
	assert.Error(t, err)

	path := writePayload(t, "garbage.json", `{not json`)
	_, err = e.Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestFileExtractor_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewFileExtractor("vendor_a", "2.1")
	_, err := e.Extract(ctx, "anything.json")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAzureTotalFallback(t *testing.T) {
	path := writePayload(t, "azure_doc.json", `{
		"document_id": "AZ-1",
		"fields": {
			"total": {"value": null, "confidence": 0.4},
			"subtotal": {"value": 90.0, "confidence": 0.9}
		},
		"line_items": [
			{"description": "A", "amount": 60.0, "confidence": 0.9},
			{"description": "B", "amount": 40.0, "confidence": 0.8}
		]
	}`)

	e := NewFileExtractor("azure_document_intelligence", "prebuilt-invoice")
	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	fields := result.Output["fields"].(map[string]any)
	total := fields["total"].(map[string]any)
	assert.InDelta(t, 100.0, total["value"].(float64), 0.001)
	// Original confidence is kept.
	assert.InDelta(t, 0.4, total["confidence"].(float64), 0.001)
}

func TestAzureTotalFallback_LeavesNonZeroTotalAlone(t *testing.T) {
	path := writePayload(t, "azure_doc2.json", `{
		"document_id": "AZ-2",
		"fields": {"total": {"value": 55.0, "confidence": 0.95}},
		"line_items": [{"description": "A", "amount": 60.0}]
	}`)

	e := NewFileExtractor("azure_document_intelligence", "prebuilt-invoice")
	result, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	fields := result.Output["fields"].(map[string]any)
	total := fields["total"].(map[string]any)
	assert.InDelta(t, 55.0, total["value"].(float64), 0.001)
}
