package router

import (
	"strings"

	"github.com/sells-group/invoice-triage/internal/model"
)

const defaultLowConfidenceThreshold = 0.7

// Router turns a canonical record plus its validation result into a final
// disposition. It is a pure, deterministic function of its inputs; the only
// state is the configured threshold, safe to share across goroutines.
type Router struct {
	lowConfidenceThreshold float64
}

// New creates a Router. A zero or negative threshold falls back to 0.7.
func New(lowConfidenceThreshold float64) *Router {
	if lowConfidenceThreshold <= 0 {
		lowConfidenceThreshold = defaultLowConfidenceThreshold
	}
	return &Router{lowConfidenceThreshold: lowConfidenceThreshold}
}

// Route produces the routing decision. Reason codes are appended in a fixed
// evaluation order: validation outcome first, then confidence, then policy
// warnings. AUTO_POST requires both an empty reason-code list and aggregate
// confidence at or above the threshold; either gate alone holds the record
// for review.
func (r *Router) Route(rec *model.InvoiceRecord, validation model.ValidationResult) model.RoutingDecision {
	var codes []string

	if !validation.Passed {
		codes = append(codes, model.ReasonValidationFailed)
		if passed, ok := validation.Result(model.CheckReconciliation); ok && !passed {
			codes = append(codes, model.ReasonTotalMismatch)
		}
		if passed, ok := validation.Result(model.CheckRequiredFields); ok && !passed {
			codes = append(codes, model.ReasonMissingRequiredFields)
		}
	}

	// A critical field below the threshold, or absent altogether, is
	// disqualifying. Absent slots carry no evidence, which is worse than
	// weak evidence.
	var lowConf []string
	for _, f := range model.CriticalFields() {
		audit := rec.Field(f)
		if audit == nil || audit.Confidence < r.lowConfidenceThreshold {
			lowConf = append(lowConf, string(f))
		}
	}
	if len(lowConf) > 0 {
		codes = append(codes, model.ReasonLowConfidence)
		codes = append(codes, "LOW_CONF_"+strings.ToUpper(strings.Join(lowConf, "_")))
	}

	if passed, ok := validation.Result(model.CheckTotalWithinThreshold); ok && !passed {
		codes = append(codes, model.ReasonHighTotal)
	}
	if passed, ok := validation.Result(model.CheckPOPresent); ok && !passed {
		codes = append(codes, model.ReasonMissingPO)
	}

	confidence := r.aggregateConfidence(rec)

	outcome := model.OutcomeNeedsReview
	if len(codes) == 0 && confidence >= r.lowConfidenceThreshold {
		outcome = model.OutcomeAutoPost
	}

	return model.RoutingDecision{
		Outcome:         outcome,
		ReasonCodes:     codes,
		ConfidenceScore: confidence,
	}
}

// aggregateConfidence is the arithmetic mean over the critical fields that
// are present; absent fields are excluded from both numerator and
// denominator. Zero when none are present.
func (r *Router) aggregateConfidence(rec *model.InvoiceRecord) float64 {
	var sum float64
	var n int
	for _, f := range model.CriticalFields() {
		if audit := rec.Field(f); audit != nil {
			sum += audit.Confidence
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}
