package normalizer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invoice-triage/internal/model"
)

// Shape identifies one of the known vendor output layouts.
type Shape string

const (
	// ShapeFlat is a top-level "fields" mapping of {value, confidence}
	// keyed by canonical field names (vendor A and the Azure adapter).
	ShapeFlat Shape = "flat"
	// ShapeNested is an "extracted_data.financial" mapping of {text, score}
	// keyed by a vendor-specific vocabulary (vendor B).
	ShapeNested Shape = "nested"
)

// ShapeSpec describes how one vendor lays out its output. Vocabulary maps
// canonical fields to the vendor's own key names; it is only consulted for
// ShapeNested (ShapeFlat vendors already use canonical names).
type ShapeSpec struct {
	Shape      Shape                           `yaml:"shape"`
	Vocabulary map[model.CanonicalField]string `yaml:"vocabulary,omitempty"`
}

// ShapeRegistry resolves a vendor name to its output shape. Unknown vendors
// resolve to the flat shape: a deliberate graceful default, not an error.
type ShapeRegistry struct {
	vendors  map[string]ShapeSpec
	fallback ShapeSpec
}

// vendorBVocabulary maps canonical fields to vendor B's key names.
var vendorBVocabulary = map[model.CanonicalField]string{
	model.FieldInvoiceNumber: "invoice_num",
	model.FieldInvoiceDate:   "date",
	model.FieldSupplierName:  "vendor_name",
	model.FieldSupplierID:    "vendor_id",
	model.FieldCurrency:      "currency_code",
	model.FieldSubtotal:      "amount_before_tax",
	model.FieldTax:           "tax_amount",
	model.FieldTotal:         "amount_due",
	model.FieldPONumber:      "purchase_order",
}

// DefaultShapeRegistry returns the built-in vendor shape table.
func DefaultShapeRegistry() *ShapeRegistry {
	return &ShapeRegistry{
		vendors: map[string]ShapeSpec{
			"vendor_a":                    {Shape: ShapeFlat},
			"azure_document_intelligence": {Shape: ShapeFlat},
			"vendor_b":                    {Shape: ShapeNested, Vocabulary: vendorBVocabulary},
		},
		fallback: ShapeSpec{Shape: ShapeFlat},
	}
}

// Resolve returns the shape spec for the given vendor name, falling back to
// the flat shape for vendors the registry has never seen.
func (r *ShapeRegistry) Resolve(vendorName string) ShapeSpec {
	if spec, ok := r.vendors[vendorName]; ok {
		return spec
	}
	return r.fallback
}

// Register adds or replaces the shape entry for a vendor.
func (r *ShapeRegistry) Register(vendorName string, spec ShapeSpec) {
	r.vendors[vendorName] = spec
}

// shapeFile is the YAML layout of a shape override file.
type shapeFile struct {
	Vendors map[string]ShapeSpec `yaml:"vendors"`
}

// LoadShapeConfig reads vendor shape overrides from a YAML file and merges
// them over the defaults. Entries for known vendors replace the built-ins.
func LoadShapeConfig(path string) (*ShapeRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalizer: read shape config %s", path)
	}

	var f shapeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "normalizer: parse shape config %s", path)
	}

	reg := DefaultShapeRegistry()
	for vendor, spec := range f.Vendors {
		if spec.Shape != ShapeFlat && spec.Shape != ShapeNested {
			return nil, eris.Errorf("normalizer: unknown shape %q for vendor %q", spec.Shape, vendor)
		}
		reg.Register(vendor, spec)
	}
	return reg, nil
}
