package extractor

import (
	"context"
)

// Result is one vendor extraction: the raw, vendor-shaped output plus the
// metadata the normalizer needs to interpret it.
type Result struct {
	DocID         string         `json:"doc_id"`
	VendorName    string         `json:"vendor_name"`
	VendorVersion string         `json:"vendor_version"`
	Output        map[string]any `json:"output"`
}

// Extractor produces vendor output for a document source. The real vendor
// call (OCR, confidence scoring) lives behind this seam; the pipeline only
// sees its already-shaped output.
type Extractor interface {
	Extract(ctx context.Context, source string) (*Result, error)
}
