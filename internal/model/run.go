package model

import "time"

// RunStatus represents the current state of a processing run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusExtracting  RunStatus = "extracting"
	RunStatusNormalizing RunStatus = "normalizing"
	RunStatusValidating  RunStatus = "validating"
	RunStatusRouting     RunStatus = "routing"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run represents a single processing run for one document.
type Run struct {
	ID        string     `json:"id"`
	DocID     string     `json:"doc_id"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Outcome         Outcome  `json:"outcome"`
	ReasonCodes     []string `json:"reason_codes,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`
	ValidationPass  bool     `json:"validation_pass"`
	ErrorCount      int      `json:"error_count"`
	WarningCount    int      `json:"warning_count"`
	DurationMS      int64    `json:"duration_ms"`
	Error           string   `json:"error,omitempty"`
}

// ProcessResult is the full output of the pipeline for one document.
type ProcessResult struct {
	RunID      string           `json:"run_id"`
	Record     *InvoiceRecord   `json:"record"`
	Validation ValidationResult `json:"validation"`
	Decision   RoutingDecision  `json:"decision"`
	Insight    *InvoiceInsight  `json:"insight,omitempty"`
}
