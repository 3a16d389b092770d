package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/invoice-triage/internal/model"
)

// Normalizer maps vendor-specific extraction output into the canonical
// invoice schema. It never fails: every input, however malformed, produces
// some canonical record, and all quality judgment is pushed downstream into
// the validator and router.
type Normalizer struct {
	pipelineVersion string
	shapes          *ShapeRegistry
	now             func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithShapeRegistry overrides the built-in vendor shape table.
func WithShapeRegistry(reg *ShapeRegistry) Option {
	return func(n *Normalizer) { n.shapes = reg }
}

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer that stamps records with the given pipeline version.
func New(pipelineVersion string, opts ...Option) *Normalizer {
	n := &Normalizer{
		pipelineVersion: pipelineVersion,
		shapes:          DefaultShapeRegistry(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one vendor output into a canonical InvoiceRecord.
// Fields the vendor did not produce are absent from the record, not zeroed;
// a numeric field whose value cannot be coerced is likewise absent. Absence
// is a legal, representable state here, never an error.
func (n *Normalizer) Normalize(output map[string]any, vendorName, vendorVersion string) *model.InvoiceRecord {
	rec := &model.InvoiceRecord{
		Fields:              make(map[model.CanonicalField]*model.FieldAudit),
		DocID:               docID(output),
		ExtractionTimestamp: n.now(),
		VendorName:          vendorName,
		RawVendorOutput:     output,
	}

	spec := n.shapes.Resolve(vendorName)
	switch spec.Shape {
	case ShapeNested:
		n.normalizeNested(rec, output, spec, vendorVersion)
	default:
		n.normalizeFlat(rec, output, vendorVersion)
	}

	return rec
}

// docID pulls the document identifier out of the raw output, falling back
// to "unknown" rather than failing.
func docID(output map[string]any) string {
	if id := asString(output["document_id"]); id != "" {
		return id
	}
	if id := asString(output["id"]); id != "" {
		return id
	}
	return "unknown"
}

// normalizeFlat handles the vendor A layout: a top-level "fields" mapping of
// canonical-field-name → {value, confidence}.
func (n *Normalizer) normalizeFlat(rec *model.InvoiceRecord, output map[string]any, vendorVersion string) {
	fields := asMap(output["fields"])

	for _, cf := range model.AllCanonicalFields() {
		fieldData, ok := fields[string(cf)]
		if !ok {
			continue
		}
		data := asMap(fieldData)
		value := data["value"]

		// Amount fields carry float64 values downstream. A non-nil value
		// that won't coerce means the extraction is unusable: drop the slot.
		// A nil value stays nil: "extracted with value null" is distinct
		// from "not extracted".
		if model.IsNumeric(cf) && value != nil {
			f, ok := toFloat64(value)
			if !ok {
				continue
			}
			value = f
		}

		confidence, _ := toFloat64(data["confidence"])
		rec.Fields[cf] = n.newAudit(value, confidence, vendorVersion, string(cf))
	}

	rec.LineItems = n.flatLineItems(output, vendorVersion)
}

// normalizeNested handles the vendor B layout: "extracted_data.financial"
// mapping of vendor-vocabulary-key → {text, score}.
func (n *Normalizer) normalizeNested(rec *model.InvoiceRecord, output map[string]any, spec ShapeSpec, vendorVersion string) {
	extracted := asMap(output["extracted_data"])
	financial := asMap(extracted["financial"])

	for _, cf := range model.AllCanonicalFields() {
		vendorKey, ok := spec.Vocabulary[cf]
		if !ok {
			continue
		}
		fieldData, ok := financial[vendorKey]
		if !ok {
			continue
		}
		data := asMap(fieldData)
		value := data["text"]

		if model.IsNumeric(cf) {
			f, ok := toFloat64(value)
			if !ok {
				continue
			}
			value = f
		}

		confidence, _ := toFloat64(data["score"])
		rec.Fields[cf] = n.newAudit(value, confidence, vendorVersion, vendorKey)
	}

	items, _ := extracted["items"].([]any)
	rec.LineItems = n.lineItems(items, vendorVersion, "desc", "qty", "price", "line_total", "score")
}

func (n *Normalizer) flatLineItems(output map[string]any, vendorVersion string) []model.LineItem {
	raw, ok := output["line_items"]
	if !ok {
		return nil
	}
	items, _ := raw.([]any)
	return n.lineItems(items, vendorVersion, "description", "quantity", "unit_price", "amount", "confidence")
}

// lineItems maps a raw item list into LineItems. An item with a missing or
// unparsable amount gets amount 0.0 and keeps its place in the sequence, so
// reconciliation and summation always have a numeric value to operate on.
func (n *Normalizer) lineItems(items []any, vendorVersion, descKey, qtyKey, priceKey, amountKey, confKey string) []model.LineItem {
	if items == nil {
		return nil
	}

	result := make([]model.LineItem, 0, len(items))
	for _, raw := range items {
		item := asMap(raw)

		amount, _ := toFloat64(item[amountKey])
		confidence, _ := toFloat64(item[confKey])

		result = append(result, model.LineItem{
			Description: asString(item[descKey]),
			Quantity:    toFloatPtr(item[qtyKey]),
			UnitPrice:   toFloatPtr(item[priceKey]),
			Amount:      amount,
			Audit:       *n.newAudit(item, confidence, vendorVersion, "line_item"),
		})
	}
	return result
}

func (n *Normalizer) newAudit(value any, confidence float64, vendorVersion, vendorFieldName string) *model.FieldAudit {
	return &model.FieldAudit{
		Value:      value,
		Confidence: clamp01(confidence),
		// The vendor integrations don't report bounding boxes yet.
		Evidence:        &model.Evidence{Page: 1},
		PipelineVersion: n.pipelineVersion,
		VendorVersion:   vendorVersion,
		VendorFieldName: vendorFieldName,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// toFloat64 coerces the numeric value shapes that JSON decoding and vendor
// payloads produce. Strings are parsed after stripping currency noise.
func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(t))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toFloatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return nil
	}
	return &f
}
