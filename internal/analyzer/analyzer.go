package analyzer

import (
	"fmt"
	"strings"

	"github.com/sells-group/invoice-triage/internal/model"
)

const defaultCostPerPage = 0.01

// Analyzer derives auxiliary categorical tags (spend category, priority,
// urgency, risk, document quality) from a processed record. Tags ride
// alongside the routing decision for reporting; they never influence it.
type Analyzer struct {
	costPerPage float64
}

// New creates an Analyzer. A zero or negative cost falls back to $0.01/page.
func New(costPerPage float64) *Analyzer {
	if costPerPage <= 0 {
		costPerPage = defaultCostPerPage
	}
	return &Analyzer{costPerPage: costPerPage}
}

// categoryKeywords maps supplier-name keywords to spend categories.
// First matching category in table order wins.
var categoryKeywords = []struct {
	category model.Category
	words    []string
}{
	{model.CategoryMarketing, []string{"advertising", "marketing", "media"}},
	{model.CategoryFinancial, []string{"finance", "bank", "capital", "consulting"}},
	{model.CategoryMaterials, []string{"material", "supply", "parts", "equipment"}},
	{model.CategoryTechnology, []string{"software", "saas", "tech", "cloud"}},
	{model.CategoryUtilities, []string{"utility", "electric", "water", "gas"}},
	{model.CategoryLegal, []string{"legal", "attorney", "law"}},
}

// Analyze produces insights for one record and its validation result.
func (a *Analyzer) Analyze(rec *model.InvoiceRecord, validation model.ValidationResult) *model.InvoiceInsight {
	total := numericField(rec, model.FieldTotal)
	supplier := stringField(rec, model.FieldSupplierName, "Unknown")
	invoiceNumber := stringField(rec, model.FieldInvoiceNumber, "N/A")

	return &model.InvoiceInsight{
		Category:       Categorize(supplier),
		Priority:       PriorityFor(total),
		Urgency:        UrgencyFor(total),
		RiskLevel:      a.assessRisk(rec, validation, total),
		Quality:        QualityFor(confidenceScores(rec)),
		ProcessingCost: a.processingCost(rec),
		TotalAmount:    total,
		Supplier:       supplier,
		InvoiceNumber:  invoiceNumber,
		// Payment terms aren't extracted yet; Net 30 is the books default.
		PaymentTerms: "Net 30",
	}
}

// Categorize assigns a spend category from supplier-name keywords.
func Categorize(supplier string) model.Category {
	lower := strings.ToLower(supplier)
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.category
			}
		}
	}
	return model.CategoryGeneral
}

// PriorityFor grades processing priority by amount: >$50k CRITICAL,
// >$10k HIGH, >$1k MEDIUM, below LOW. A zero amount defaults to MEDIUM;
// an invoice with no readable total deserves a look, not the bottom of
// the queue.
func PriorityFor(total float64) model.Priority {
	switch {
	case total == 0:
		return model.PriorityMedium
	case total > 50000:
		return model.PriorityCritical
	case total > 10000:
		return model.PriorityHigh
	case total > 1000:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// UrgencyFor grades payment urgency by amount.
func UrgencyFor(total float64) model.Urgency {
	switch {
	case total > 100000:
		return model.UrgencyUrgent
	case total > 50000:
		return model.UrgencyNormal
	default:
		return model.UrgencyLow
	}
}

// assessRisk grades risk: failed validation or a weak total-field
// confidence is HIGH, a very large amount is MEDIUM, everything else LOW.
func (a *Analyzer) assessRisk(rec *model.InvoiceRecord, validation model.ValidationResult, total float64) model.RiskLevel {
	totalConfidence := 1.0
	if audit := rec.Field(model.FieldTotal); audit != nil {
		totalConfidence = audit.Confidence
	}

	switch {
	case !validation.Passed:
		return model.RiskHigh
	case totalConfidence < 0.7:
		return model.RiskHigh
	case total > 100000:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// QualityFor grades extraction quality by mean confidence across the
// provided scores: ≥0.95 EXCELLENT, ≥0.85 GOOD, ≥0.70 FAIR, below POOR.
func QualityFor(scores []float64) model.Quality {
	if len(scores) == 0 {
		return model.QualityUnknown
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))

	switch {
	case avg >= 0.95:
		return model.QualityExcellent
	case avg >= 0.85:
		return model.QualityGood
	case avg >= 0.70:
		return model.QualityFair
	default:
		return model.QualityPoor
	}
}

// processingCost estimates the vendor charge for this document from its
// page count. Page counts aren't reported by the current integrations, so
// one page is assumed.
func (a *Analyzer) processingCost(rec *model.InvoiceRecord) float64 {
	pages := 1
	return float64(pages) * a.costPerPage
}

// confidenceScores collects the confidences of all present field slots.
func confidenceScores(rec *model.InvoiceRecord) []float64 {
	var scores []float64
	for _, f := range model.AllCanonicalFields() {
		if audit := rec.Field(f); audit != nil {
			scores = append(scores, audit.Confidence)
		}
	}
	return scores
}

func numericField(rec *model.InvoiceRecord, f model.CanonicalField) float64 {
	audit := rec.Field(f)
	if audit == nil || audit.Value == nil {
		return 0.0
	}
	switch t := audit.Value.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0.0
	}
}

func stringField(rec *model.InvoiceRecord, f model.CanonicalField, fallback string) string {
	audit := rec.Field(f)
	if audit == nil || audit.Value == nil {
		return fallback
	}
	if s, ok := audit.Value.(string); ok && s != "" {
		return s
	}
	return fmt.Sprint(audit.Value)
}
