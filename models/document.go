package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the processing status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// DocumentSource identifies where an audit document originated
type DocumentSource string

const (
	SourceInternalAudit    DocumentSource = "internal_audit"
	SourceRegulatoryFiling DocumentSource = "regulatory_filing"
	SourceVendorAssessment DocumentSource = "vendor_assessment"
)

// Finding represents a single finding extracted from an audit document
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"` // "high", "medium", "low"
	Remediation string `json:"remediation,omitempty"`
}

// Findings is the structured extraction result for a document
type Findings struct {
	MaterialWeaknesses      []Finding `json:"material_weaknesses"`
	SignificantDeficiencies []Finding `json:"significant_deficiencies"`
	RiskItems               []Finding `json:"risk_items"`
	ComplianceIssues        []Finding `json:"compliance_issues"`
	Recommendations         []string  `json:"recommendations"`
}

// Value implements driver.Valuer for JSONB
func (f Findings) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB
func (f *Findings) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*f = Findings{}
		return nil
	}
	return json.Unmarshal(bytes, f)
}

// RiskCategory represents one category of risk identified in a document
type RiskCategory struct {
	Category   string   `json:"category"` // "strategic", "operational", "financial", "compliance", "reputational"
	Items      []string `json:"items"`
	Likelihood string   `json:"likelihood,omitempty"`
	Impact     string   `json:"impact,omitempty"`
}

// RiskCategories is a list of risk categories
type RiskCategories []RiskCategory

// Value implements driver.Valuer for JSONB
func (r RiskCategories) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *RiskCategories) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*r = make(RiskCategories, 0)
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// ComplianceScore holds the keyword-frequency score for one framework
type ComplianceScore struct {
	Score       float64   `json:"score"` // 0-100
	Description string    `json:"description"`
	AssessedAt  time.Time `json:"assessed_at"`
}

// ComplianceScores maps framework name (SOX, COSO, ...) to its score
type ComplianceScores map[string]ComplianceScore

// Value implements driver.Valuer for JSONB
func (c ComplianceScores) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *ComplianceScores) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*c = make(ComplianceScores)
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// Vector is a document embedding stored as JSONB
type Vector []float64

// Value implements driver.Valuer for JSONB
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner for JSONB
func (v *Vector) Scan(value interface{}) error {
	bytes, ok := jsonbBytes(value)
	if !ok || len(bytes) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(bytes, v)
}

// Document represents an ingested audit document
type Document struct {
	ID          uuid.UUID      `json:"id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	Source      DocumentSource `json:"source"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	Size        int64          `json:"size"`
	StoragePath string         `json:"storage_path"`

	Fingerprint string  `json:"fingerprint"`
	RawText     *string `json:"-"` // large; excluded from API responses
	WordCount   int     `json:"word_count"`
	CharCount   int     `json:"char_count"`

	Embedding        Vector           `json:"-"`
	Findings         Findings         `json:"findings"`
	RiskCategories   RiskCategories   `json:"risk_categories"`
	ComplianceScores ComplianceScores `json:"compliance_scores"`

	Status       DocumentStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
}

// HasEmbedding reports whether an embedding was generated for the document
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// jsonbBytes coerces the value pgx returns for a JSONB column into raw bytes
func jsonbBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}
