package model

// Category is the heuristic spend category assigned by the analyzer.
type Category string

const (
	CategoryMarketing  Category = "Marketing & Advertising"
	CategoryFinancial  Category = "Financial Services"
	CategoryMaterials  Category = "Raw Materials & Supplies"
	CategoryTechnology Category = "Technology & Software"
	CategoryUtilities  Category = "Utilities"
	CategoryLegal      Category = "Legal Services"
	CategoryGeneral    Category = "General Services"
)

// Priority is the processing priority derived from the invoice amount.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Urgency is the payment urgency level.
type Urgency string

const (
	UrgencyUrgent Urgency = "URGENT"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyLow    Urgency = "LOW"
)

// RiskLevel grades a record by validation outcome and confidence.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// Quality grades document extraction quality by mean field confidence.
type Quality string

const (
	QualityExcellent Quality = "EXCELLENT"
	QualityGood      Quality = "GOOD"
	QualityFair      Quality = "FAIR"
	QualityPoor      Quality = "POOR"
	QualityUnknown   Quality = "UNKNOWN"
)

// InvoiceInsight holds the auxiliary categorical tags the analyzer derives
// from a processed record. These ride alongside the routing decision; they
// never influence it.
type InvoiceInsight struct {
	Category       Category  `json:"category"`
	Priority       Priority  `json:"priority"`
	Urgency        Urgency   `json:"urgency"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Quality        Quality   `json:"document_quality"`
	ProcessingCost float64   `json:"processing_cost"`
	TotalAmount    float64   `json:"total_amount"`
	Supplier       string    `json:"supplier"`
	InvoiceNumber  string    `json:"invoice_number"`
	PaymentTerms   string    `json:"payment_terms"`
}
