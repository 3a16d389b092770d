// Package report flattens pipeline output into per-document records and
// writes them out as JSON result files and XLSX workbooks.
package report

import (
	"time"

	"github.com/sells-group/invoice-triage/internal/model"
)

// Record is the flat per-document view of one pipeline run. One record per
// source document, regardless of whether the run succeeded.
type Record struct {
	RunID           string                `json:"run_id"`
	DocID           string                `json:"doc_id"`
	Source          string                `json:"source,omitempty"`
	VendorName      string                `json:"vendor_name,omitempty"`
	ExtractedAt     time.Time             `json:"extracted_at"`
	Fields          map[string]any        `json:"fields"`
	Confidences     map[string]float64    `json:"confidences"`
	LineItemCount   int                   `json:"line_item_count"`
	ValidationPass  bool                  `json:"validation_pass"`
	Errors          []string              `json:"errors,omitempty"`
	Warnings        []string              `json:"warnings,omitempty"`
	Outcome         model.Outcome         `json:"outcome,omitempty"`
	ReasonCodes     []string              `json:"reason_codes,omitempty"`
	ConfidenceScore float64               `json:"confidence_score"`
	Insight         *model.InvoiceInsight `json:"insight,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// FromResult flattens a completed pipeline result. Absent canonical fields
// are omitted from both maps rather than written as nulls.
func FromResult(source string, res *model.ProcessResult) Record {
	rec := Record{
		RunID:           res.RunID,
		Source:          source,
		Fields:          map[string]any{},
		Confidences:     map[string]float64{},
		ValidationPass:  res.Validation.Passed,
		Errors:          res.Validation.Errors,
		Warnings:        res.Validation.Warnings,
		Outcome:         res.Decision.Outcome,
		ReasonCodes:     res.Decision.ReasonCodes,
		ConfidenceScore: res.Decision.ConfidenceScore,
		Insight:         res.Insight,
	}

	if res.Record == nil {
		return rec
	}

	rec.DocID = res.Record.DocID
	rec.VendorName = res.Record.VendorName
	rec.ExtractedAt = res.Record.ExtractionTimestamp
	rec.LineItemCount = len(res.Record.LineItems)

	for _, field := range model.AllCanonicalFields() {
		audit := res.Record.Field(field)
		if audit == nil {
			continue
		}
		rec.Fields[string(field)] = audit.Value
		rec.Confidences[string(field)] = audit.Confidence
	}

	return rec
}

// FailureRecord captures a run that never produced a routing decision.
func FailureRecord(runID, source string, err error) Record {
	return Record{
		RunID:       runID,
		Source:      source,
		Fields:      map[string]any{},
		Confidences: map[string]float64{},
		Error:       err.Error(),
	}
}

// TotalAmount returns the record's numeric total, or 0 when absent or
// non-numeric.
func (r Record) TotalAmount() float64 {
	switch v := r.Fields[string(model.FieldTotal)].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
