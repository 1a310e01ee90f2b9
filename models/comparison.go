package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ComparisonStatus represents the status of a comparison
type ComparisonStatus string

const (
	ComparisonStatusPending    ComparisonStatus = "pending"
	ComparisonStatusProcessing ComparisonStatus = "processing"
	ComparisonStatusCompleted  ComparisonStatus = "completed"
	ComparisonStatusFailed     ComparisonStatus = "failed"
)

// ComparisonType identifies what kind of pairing is being compared
type ComparisonType string

const (
	ComparisonInternalVsFiling ComparisonType = "internal_vs_filing"
	ComparisonPeriodOverPeriod ComparisonType = "period_over_period"
	ComparisonVendorVsInternal ComparisonType = "vendor_vs_internal"
)

// Valid reports whether t is a known comparison type
func (t ComparisonType) Valid() bool {
	switch t {
	case ComparisonInternalVsFiling, ComparisonPeriodOverPeriod, ComparisonVendorVsInternal:
		return true
	}
	return false
}

// ComparisonResult is the parsed output of one holistic comparison pass
type ComparisonResult struct {
	KeyDifferences  []string `json:"key_differences"`
	RiskAlignment   string   `json:"risk_alignment"`
	ComplianceGaps  []string `json:"compliance_gaps"`
	Recommendations []string `json:"recommendations"`
}

// Value implements driver.Valuer for JSONB
func (c ComparisonResult) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *ComparisonResult) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*c = ComparisonResult{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// SectionComparisons maps a canonical section name to its sub-comparison.
// A section appears only when it was extracted from both documents.
type SectionComparisons map[string]ComparisonResult

// Value implements driver.Valuer for JSONB
func (s SectionComparisons) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *SectionComparisons) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*s = make(SectionComparisons)
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// MaterialityLevel is the ordinal materiality verdict
type MaterialityLevel string

const (
	MaterialityLow    MaterialityLevel = "Low"
	MaterialityMedium MaterialityLevel = "Medium"
	MaterialityHigh   MaterialityLevel = "High"
)

// MaterialityAssessment is the deterministic materiality verdict for a comparison
type MaterialityAssessment struct {
	Score             int              `json:"score"`
	Level             MaterialityLevel `json:"level"`
	FactorsConsidered []string         `json:"factors_considered"`
	AssessedAt        time.Time        `json:"assessed_at"`
}

// Value implements driver.Valuer for JSONB
func (m MaterialityAssessment) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *MaterialityAssessment) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*m = MaterialityAssessment{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Comparison represents a pairwise comparison between two processed documents
type Comparison struct {
	ID               uuid.UUID        `json:"id"`
	CompanyID        uuid.UUID        `json:"company_id"`
	SourceDocumentID uuid.UUID        `json:"source_document_id"`
	TargetDocumentID uuid.UUID        `json:"target_document_id"`
	Type             ComparisonType   `json:"comparison_type"`
	Status           ComparisonStatus `json:"status"`

	// SimilarityScore is nil until both embeddings are available; it is
	// never coerced to zero.
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	Holistic    ComparisonResult      `json:"holistic"`
	Sections    SectionComparisons    `json:"section_comparisons"`
	Materiality MaterialityAssessment `json:"materiality_assessment"`

	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
