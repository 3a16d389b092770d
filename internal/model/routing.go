package model

// Outcome is the final disposition of a record.
type Outcome string

const (
	OutcomeAutoPost    Outcome = "AUTO_POST"
	OutcomeNeedsReview Outcome = "NEEDS_REVIEW"
)

// Reason codes explaining a NEEDS_REVIEW outcome. Order of appearance in a
// decision reflects evaluation order. The combined low-confidence code
// (LOW_CONF_<FIELD>...) is built dynamically from the affected field names.
const (
	ReasonValidationFailed      = "VALIDATION_FAILED"
	ReasonTotalMismatch         = "TOTAL_MISMATCH"
	ReasonMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	ReasonLowConfidence         = "LOW_CONFIDENCE"
	ReasonHighTotal             = "HIGH_TOTAL"
	ReasonMissingPO             = "MISSING_PO"
)

// RoutingDecision is the final, immutable disposition of one record:
// auto-post or hold for human review, with machine-readable reasons and the
// aggregate confidence used at the decision gate.
type RoutingDecision struct {
	Outcome         Outcome  `json:"outcome"`
	ReasonCodes     []string `json:"reason_codes,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// HasReason reports whether code appears in the decision's reason codes.
func (d RoutingDecision) HasReason(code string) bool {
	for _, c := range d.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}
