package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-triage/internal/fetcher"
)

// FileExtractor loads pre-extracted vendor output as JSON. It stands in for
// the live vendor integration during batch runs and replays: the payload
// holds exactly what the vendor API returned. Sources are local paths or
// http(s)/ftp URLs.
type FileExtractor struct {
	vendorName    string
	vendorVersion string
	fetch         *fetcher.Client
	urlSeq        atomic.Int64
}

// NewFileExtractor creates a FileExtractor that labels output with the given
// vendor name and version.
func NewFileExtractor(vendorName, vendorVersion string) *FileExtractor {
	return &FileExtractor{
		vendorName:    vendorName,
		vendorVersion: vendorVersion,
		fetch:         fetcher.New(fetcher.Options{}),
	}
}

// Extract reads one vendor output file. The doc ID comes from the payload's
// document_id when present; otherwise it is derived from the source name:
// DOC-<basename> for files, DOC-URL-NNN for URL sources.
func (e *FileExtractor) Extract(ctx context.Context, source string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := e.fetch.Fetch(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "extractor: fetch %s", source)
	}

	var output map[string]any
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, eris.Wrapf(err, "extractor: parse %s", source)
	}

	docID, _ := output["document_id"].(string)
	if docID == "" {
		docID = e.deriveDocID(source)
		output["document_id"] = docID
	}

	if e.vendorName == "azure_document_intelligence" {
		applyTotalFallback(output, docID)
	}

	return &Result{
		DocID:         docID,
		VendorName:    e.vendorName,
		VendorVersion: e.vendorVersion,
		Output:        output,
	}, nil
}

func (e *FileExtractor) deriveDocID(source string) string {
	if fetcher.IsRemote(source) {
		return fmt.Sprintf("DOC-URL-%03d", e.urlSeq.Add(1))
	}
	base := filepath.Base(source)
	return "DOC-" + strings.TrimSuffix(base, filepath.Ext(base))
}

// applyTotalFallback fills a null or zero total from the sum of line-item
// amounts, keeping the vendor's original confidence. The Azure prebuilt
// invoice model sometimes drops InvoiceTotal while still reading every line.
func applyTotalFallback(output map[string]any, docID string) {
	fields, _ := output["fields"].(map[string]any)
	if fields == nil {
		return
	}
	totalField, _ := fields["total"].(map[string]any)
	if totalField == nil {
		return
	}

	if v, ok := totalField["value"].(float64); ok && v != 0 {
		return
	}
	if s, ok := totalField["value"].(string); ok && s != "" {
		return
	}

	items, _ := output["line_items"].([]any)
	var sum float64
	for _, raw := range items {
		item, _ := raw.(map[string]any)
		if amt, ok := item["amount"].(float64); ok {
			sum += amt
		}
	}
	if sum <= 0 {
		return
	}

	totalField["value"] = sum
	zap.L().Info("extractor: calculated total from line items",
		zap.String("doc_id", docID),
		zap.Float64("total", sum),
	)
}
