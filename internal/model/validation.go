package model

// CheckName identifies one of the validation checks.
type CheckName string

const (
	CheckRequiredFields       CheckName = "required_fields_present"
	CheckDateFormat           CheckName = "date_format_valid"
	CheckCurrency             CheckName = "currency_valid"
	CheckReconciliation       CheckName = "reconciliation_pass"
	CheckTotalWithinThreshold CheckName = "total_within_threshold"
	CheckPOPresent            CheckName = "po_present"
)

// CheckResult is the outcome of a single validation check.
type CheckResult struct {
	Name   CheckName `json:"name"`
	Passed bool      `json:"passed"`
}

// ValidationResult is the outcome of one validation run. Checks preserves
// execution order (an ordered slice rather than a map, Go maps don't keep
// insertion order). Errors are hard failures; Warnings are policy-level
// concerns that never affect Passed. Immutable once created.
type ValidationResult struct {
	Passed   bool          `json:"passed"`
	Checks   []CheckResult `json:"checks"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Result returns the outcome of the named check and whether it ran.
func (v ValidationResult) Result(name CheckName) (passed, ok bool) {
	for _, c := range v.Checks {
		if c.Name == name {
			return c.Passed, true
		}
	}
	return false, false
}

// CheckMap returns the checks as a name→outcome map for serialization
// surfaces that don't care about order.
func (v ValidationResult) CheckMap() map[CheckName]bool {
	m := make(map[CheckName]bool, len(v.Checks))
	for _, c := range v.Checks {
		m[c.Name] = c.Passed
	}
	return m
}
