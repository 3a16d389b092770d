package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/model"
)

// validCurrencies is the fixed whitelist of recognized currency codes.
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true,
	"AUD": true, "JPY": true, "CNY": true, "INR": true,
}

const defaultTolerance = 0.01

// Validator runs the fixed battery of structural, semantic, and
// reconciliation checks against a canonical record. Configuration is set at
// construction and read-only afterward, so a single Validator is safe to
// share across concurrent invocations.
type Validator struct {
	tolerances         map[string]float64
	highTotalThreshold float64
	requiredFields     []model.CanonicalField
}

// New builds a Validator from config, filling unset knobs with defaults:
// tolerance 0.01 for USD/EUR/GBP, high-total threshold 100000, and the
// standard four required fields.
func New(cfg config.ValidatorConfig) *Validator {
	v := &Validator{
		tolerances:         cfg.CurrencyTolerance,
		highTotalThreshold: cfg.HighTotalThreshold,
	}
	if len(v.tolerances) == 0 {
		v.tolerances = map[string]float64{"USD": 0.01, "EUR": 0.01, "GBP": 0.01}
	}
	if v.highTotalThreshold == 0 {
		v.highTotalThreshold = 100000.0
	}
	if len(cfg.RequiredFields) == 0 {
		v.requiredFields = model.DefaultRequiredFields()
	} else {
		for _, name := range cfg.RequiredFields {
			v.requiredFields = append(v.requiredFields, model.CanonicalField(name))
		}
	}
	return v
}

// outcome is the structured result of one check: a boolean plus any hard
// error or soft warning messages. Checks are pure; Validate folds their
// outcomes into the ValidationResult in execution order.
type outcome struct {
	passed   bool
	errors   []string
	warnings []string
}

func pass() outcome           { return outcome{passed: true} }
func fail(msg string) outcome { return outcome{errors: []string{msg}} }
func warn(msg string) outcome { return outcome{warnings: []string{msg}} }

// Validate runs all checks in fixed order. Passed is true iff no check
// produced a hard error; warnings never affect it.
func (v *Validator) Validate(rec *model.InvoiceRecord) model.ValidationResult {
	steps := []struct {
		name  model.CheckName
		check func(*model.InvoiceRecord) outcome
	}{
		{model.CheckRequiredFields, v.checkRequiredFields},
		{model.CheckDateFormat, v.checkDateFormat},
		{model.CheckCurrency, v.checkCurrency},
		{model.CheckReconciliation, v.checkReconciliation},
		{model.CheckTotalWithinThreshold, v.checkTotalThreshold},
		{model.CheckPOPresent, v.checkPOPresent},
	}

	var result model.ValidationResult
	for _, step := range steps {
		out := step.check(rec)
		result.Checks = append(result.Checks, model.CheckResult{Name: step.name, Passed: out.passed})
		result.Errors = append(result.Errors, out.errors...)
		result.Warnings = append(result.Warnings, out.warnings...)
	}

	result.Passed = len(result.Errors) == 0
	return result
}

// checkRequiredFields verifies each configured required field is present
// with a non-null value. All missing names are reported in one combined
// error. Hard failure.
func (v *Validator) checkRequiredFields(rec *model.InvoiceRecord) outcome {
	var missing []string
	for _, f := range v.requiredFields {
		audit := rec.Field(f)
		if audit == nil || audit.Value == nil {
			missing = append(missing, string(f))
		}
	}

	if len(missing) > 0 {
		return fail(fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
	}
	return pass()
}

// checkDateFormat verifies invoice_date parses. Absent or null dates pass
// here; check 1 already covers them.
func (v *Validator) checkDateFormat(rec *model.InvoiceRecord) outcome {
	audit := rec.Field(model.FieldInvoiceDate)
	if audit == nil || audit.Value == nil {
		return pass()
	}

	switch d := audit.Value.(type) {
	case string:
		if !parseableDate(d) {
			return fail(fmt.Sprintf("Invalid date format: %s", d))
		}
		return pass()
	case time.Time:
		return pass()
	default:
		return fail(fmt.Sprintf("Date must be string or datetime, got %T", audit.Value))
	}
}

// dateLayouts accepts ISO-8601 datetimes (with or without offset) and plain
// YYYY-MM-DD.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseableDate(s string) bool {
	// fromisoformat-style leniency: a bare Z offset is the same as +00:00.
	normalized := strings.Replace(s, "Z", "+00:00", 1)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
		if _, err := time.Parse(layout, normalized); err == nil {
			return true
		}
	}
	return false
}

// checkCurrency verifies the currency code against the whitelist. Currency
// is optional: absent passes.
func (v *Validator) checkCurrency(rec *model.InvoiceRecord) outcome {
	audit := rec.Field(model.FieldCurrency)
	if audit == nil || audit.Value == nil {
		return pass()
	}

	code := strings.ToUpper(fmt.Sprint(audit.Value))
	if !validCurrencies[code] {
		return fail(fmt.Sprintf("Unrecognized currency: %s", code))
	}
	return pass()
}

// checkReconciliation verifies subtotal + tax equals total within the
// per-currency tolerance. Skipped when any of the three slots is absent.
func (v *Validator) checkReconciliation(rec *model.InvoiceRecord) outcome {
	subAudit := rec.Field(model.FieldSubtotal)
	taxAudit := rec.Field(model.FieldTax)
	totalAudit := rec.Field(model.FieldTotal)
	if subAudit == nil || taxAudit == nil || totalAudit == nil {
		return pass()
	}

	subtotal := numericValue(subAudit)
	tax := numericValue(taxAudit)
	total := numericValue(totalAudit)

	currency := "USD"
	if c := rec.Field(model.FieldCurrency); c != nil && c.Value != nil {
		currency = strings.ToUpper(fmt.Sprint(c.Value))
	}
	tolerance, ok := v.tolerances[currency]
	if !ok {
		tolerance = defaultTolerance
	}

	calculated := subtotal + tax
	difference := calculated - total
	if difference < 0 {
		difference = -difference
	}

	if difference > tolerance {
		return fail(fmt.Sprintf(
			"Reconciliation failed: subtotal (%v) + tax (%v) = %v, but total = %v (difference: %.2f, tolerance: %v)",
			subtotal, tax, calculated, total, difference, tolerance,
		))
	}
	return pass()
}

// checkTotalThreshold flags totals above the review threshold. This is the
// only check whose false outcome is a warning, not an error; the router
// keys HIGH_TOTAL off the check name, so the false-on-warning boolean must
// hold.
func (v *Validator) checkTotalThreshold(rec *model.InvoiceRecord) outcome {
	audit := rec.Field(model.FieldTotal)
	if audit == nil || audit.Value == nil {
		return pass()
	}

	total := numericValue(audit)
	if total > v.highTotalThreshold {
		return warn(fmt.Sprintf("High total amount: %v (threshold: %v)", total, v.highTotalThreshold))
	}
	return pass()
}

// checkPOPresent flags a missing PO number. Soft failure.
func (v *Validator) checkPOPresent(rec *model.InvoiceRecord) outcome {
	audit := rec.Field(model.FieldPONumber)
	if audit == nil || audit.Value == nil {
		return warn("PO number missing")
	}
	return pass()
}

// numericValue reads an audit's value as float64, treating null and
// non-numeric values as 0.0.
func numericValue(audit *model.FieldAudit) float64 {
	if audit == nil || audit.Value == nil {
		return 0.0
	}
	switch t := audit.Value.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0.0
	}
}
