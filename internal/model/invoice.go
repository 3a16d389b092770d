package model

import "time"

// LineItem is one invoice line. Amount is always populated (0.0 when the
// vendor omitted it) so totals reconciliation and summation always have a
// numeric value to work with. The embedded audit covers the whole line, not
// individual sub-fields.
type LineItem struct {
	Description string     `json:"description"`
	Quantity    *float64   `json:"quantity,omitempty"`
	UnitPrice   *float64   `json:"unit_price,omitempty"`
	Amount      float64    `json:"amount"`
	Audit       FieldAudit `json:"audit"`
}

// InvoiceRecord is the canonical, vendor-independent invoice representation
// all business logic operates on. A field slot is either absent from Fields
// (the vendor did not produce it) or a fully populated FieldAudit, never a
// bare value. Created once per document by the normalizer; read-only
// downstream.
type InvoiceRecord struct {
	Fields    map[CanonicalField]*FieldAudit `json:"fields"`
	LineItems []LineItem                     `json:"line_items,omitempty"`

	DocID               string         `json:"doc_id"`
	ExtractionTimestamp time.Time      `json:"extraction_timestamp"`
	VendorName          string         `json:"vendor_name"`
	RawVendorOutput     map[string]any `json:"raw_vendor_output,omitempty"`
}

// Field returns the audit for f, or nil if the vendor did not produce it.
func (r *InvoiceRecord) Field(f CanonicalField) *FieldAudit {
	if r == nil || r.Fields == nil {
		return nil
	}
	return r.Fields[f]
}

// FieldValue returns the extracted value for f, or nil if the slot is absent.
// Note a present slot may still carry a nil value ("extracted with value
// null"); callers that need the distinction should use Field.
func (r *InvoiceRecord) FieldValue(f CanonicalField) any {
	if audit := r.Field(f); audit != nil {
		return audit.Value
	}
	return nil
}

// FieldConfidence returns the confidence for f, or 0.0 if the slot is absent.
func (r *InvoiceRecord) FieldConfidence(f CanonicalField) float64 {
	if audit := r.Field(f); audit != nil {
		return audit.Confidence
	}
	return 0.0
}
