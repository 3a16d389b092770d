package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-triage/internal/model"
)

func audit(value any, confidence float64) *model.FieldAudit {
	return &model.FieldAudit{Value: value, Confidence: confidence, PipelineVersion: "1.0.0"}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		supplier string
		want     model.Category
	}{
		{"Brightside Marketing LLC", model.CategoryMarketing},
		{"First National Bank", model.CategoryFinancial},
		{"Acme Parts and Equipment", model.CategoryMaterials},
		{"CloudNine Software", model.CategoryTechnology},
		{"Metro Electric Utility", model.CategoryUtilities},
		{"Smith & Jones Attorneys", model.CategoryLegal},
		{"Bob's Sandwiches", model.CategoryGeneral},
		{"", model.CategoryGeneral},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.supplier), "supplier %q", tc.supplier)
	}
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, model.PriorityCritical, PriorityFor(75000))
	assert.Equal(t, model.PriorityHigh, PriorityFor(25000))
	assert.Equal(t, model.PriorityMedium, PriorityFor(5000))
	assert.Equal(t, model.PriorityLow, PriorityFor(500))
	// No readable total: middle of the queue, not the bottom.
	assert.Equal(t, model.PriorityMedium, PriorityFor(0))
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, model.UrgencyUrgent, UrgencyFor(150000))
	assert.Equal(t, model.UrgencyNormal, UrgencyFor(60000))
	assert.Equal(t, model.UrgencyLow, UrgencyFor(500))
}

func TestQualityFor(t *testing.T) {
	assert.Equal(t, model.QualityExcellent, QualityFor([]float64{0.96, 0.98}))
	assert.Equal(t, model.QualityGood, QualityFor([]float64{0.85, 0.9}))
	assert.Equal(t, model.QualityFair, QualityFor([]float64{0.7, 0.75}))
	assert.Equal(t, model.QualityPoor, QualityFor([]float64{0.4, 0.5}))
	assert.Equal(t, model.QualityUnknown, QualityFor(nil))
}

func TestAnalyze(t *testing.T) {
	rec := &model.InvoiceRecord{
		DocID: "A-1",
		Fields: map[model.CanonicalField]*model.FieldAudit{
			model.FieldInvoiceNumber: audit("INV-9", 0.95),
			model.FieldSupplierName:  audit("CloudNine Software", 0.9),
			model.FieldTotal:         audit(25000.0, 0.92),
		},
	}

	a := New(0.01)
	insight := a.Analyze(rec, model.ValidationResult{Passed: true})

	assert.Equal(t, model.CategoryTechnology, insight.Category)
	assert.Equal(t, model.PriorityHigh, insight.Priority)
	assert.Equal(t, model.UrgencyLow, insight.Urgency)
	assert.Equal(t, model.RiskLow, insight.RiskLevel)
	assert.Equal(t, model.QualityGood, insight.Quality)
	assert.InDelta(t, 0.01, insight.ProcessingCost, 0.0001)
	assert.InDelta(t, 25000.0, insight.TotalAmount, 0.001)
	assert.Equal(t, "CloudNine Software", insight.Supplier)
	assert.Equal(t, "INV-9", insight.InvoiceNumber)
	assert.Equal(t, "Net 30", insight.PaymentTerms)
}

func TestAnalyze_RiskGrades(t *testing.T) {
	rec := &model.InvoiceRecord{
		DocID: "A-2",
		Fields: map[model.CanonicalField]*model.FieldAudit{
			model.FieldTotal: audit(500.0, 0.9),
		},
	}

	a := New(0)

	// Failed validation dominates.
	insight := a.Analyze(rec, model.ValidationResult{Passed: false})
	assert.Equal(t, model.RiskHigh, insight.RiskLevel)

	// Weak total confidence.
	rec.Fields[model.FieldTotal] = audit(500.0, 0.5)
	insight = a.Analyze(rec, model.ValidationResult{Passed: true})
	assert.Equal(t, model.RiskHigh, insight.RiskLevel)

	// Very large amount.
	rec.Fields[model.FieldTotal] = audit(250000.0, 0.95)
	insight = a.Analyze(rec, model.ValidationResult{Passed: true})
	assert.Equal(t, model.RiskMedium, insight.RiskLevel)
}

func TestAnalyze_MissingFieldsFallBack(t *testing.T) {
	rec := &model.InvoiceRecord{DocID: "A-3", Fields: map[model.CanonicalField]*model.FieldAudit{}}

	a := New(0)
	insight := a.Analyze(rec, model.ValidationResult{Passed: true})

	require.NotNil(t, insight)
	assert.Equal(t, "Unknown", insight.Supplier)
	assert.Equal(t, "N/A", insight.InvoiceNumber)
	assert.Zero(t, insight.TotalAmount)
	assert.Equal(t, model.QualityUnknown, insight.Quality)
	assert.Equal(t, model.PriorityMedium, insight.Priority)
}
