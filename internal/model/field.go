package model

// CanonicalField identifies one of the nine slots of the canonical invoice
// schema. Validators and routers iterate over this closed set instead of
// doing free-form string lookups against the record.
type CanonicalField string

const (
	FieldInvoiceNumber CanonicalField = "invoice_number"
	FieldInvoiceDate   CanonicalField = "invoice_date"
	FieldSupplierName  CanonicalField = "supplier_name"
	FieldSupplierID    CanonicalField = "supplier_id"
	FieldCurrency      CanonicalField = "currency"
	FieldSubtotal      CanonicalField = "subtotal"
	FieldTax           CanonicalField = "tax"
	FieldTotal         CanonicalField = "total"
	FieldPONumber      CanonicalField = "po_number"
)

// AllCanonicalFields returns every canonical field in schema order.
func AllCanonicalFields() []CanonicalField {
	return []CanonicalField{
		FieldInvoiceNumber,
		FieldInvoiceDate,
		FieldSupplierName,
		FieldSupplierID,
		FieldCurrency,
		FieldSubtotal,
		FieldTax,
		FieldTotal,
		FieldPONumber,
	}
}

// CriticalFields returns the fields whose confidence drives the routing
// decision. Iteration order is fixed: combined low-confidence reason codes
// join field names in this order.
func CriticalFields() []CanonicalField {
	return []CanonicalField{FieldInvoiceNumber, FieldTotal, FieldInvoiceDate}
}

// DefaultRequiredFields returns the fields a record must carry to pass
// validation when no override is configured.
func DefaultRequiredFields() []CanonicalField {
	return []CanonicalField{FieldInvoiceNumber, FieldInvoiceDate, FieldSupplierName, FieldTotal}
}

// NumericFields returns the fields whose values are coerced to float64
// during normalization.
func NumericFields() []CanonicalField {
	return []CanonicalField{FieldSubtotal, FieldTax, FieldTotal}
}

// IsNumeric reports whether f is one of the amount fields.
func IsNumeric(f CanonicalField) bool {
	switch f {
	case FieldSubtotal, FieldTax, FieldTotal:
		return true
	}
	return false
}

// Evidence is a provenance pointer for an extracted value: where on the
// document the value came from. Immutable once created.
type Evidence struct {
	Page       int         `json:"page"`
	BBox       *[4]float64 `json:"bbox,omitempty"`
	TextAnchor string      `json:"text_anchor,omitempty"`
}

// FieldAudit is the atomic unit of extracted knowledge: one value, the
// vendor's confidence in it, and where it came from. A FieldAudit records a
// single extraction attempt; it is created once by the normalizer and never
// mutated afterward.
type FieldAudit struct {
	Value           any       `json:"value"`
	Confidence      float64   `json:"confidence"`
	Evidence        *Evidence `json:"evidence,omitempty"`
	PipelineVersion string    `json:"pipeline_version"`
	VendorVersion   string    `json:"vendor_version"`
	VendorFieldName string    `json:"vendor_field_name,omitempty"`
}
