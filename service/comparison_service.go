package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/uuid"
)

var ErrComparisonNotFound = errors.New("comparison not found")

// canonicalSections is the ordered list of report sections the engine tries
// to extract from both documents for section-level sub-comparisons.
var canonicalSections = []string{
	"Executive Summary",
	"Scope and Methodology",
	"Key Findings",
	"Material Weaknesses",
	"Significant Deficiencies",
	"Risk Assessment",
	"Recommendations",
	"Management Response",
}

// Materiality indicator weights. Each category counts once regardless of
// how many times the phrase occurs.
const (
	materialWeaknessWeight      = 3
	significantDeficiencyWeight = 2
	complianceIssueWeight       = 2

	materialityHighThreshold   = 5
	materialityMediumThreshold = 3
)

// ComparisonService orchestrates pairwise document comparisons: similarity
// scoring, the holistic AI pass, section-level sub-comparisons, and the
// deterministic materiality assessment.
type ComparisonService struct {
	comparisons ComparisonStore
	docs        DocumentStore
	ai          *AIService
	cfg         Config
}

// ComparisonServiceOption is a functional option for ComparisonService
type ComparisonServiceOption func(*ComparisonService)

// ComparisonWithStore sets the comparison store
func ComparisonWithStore(s ComparisonStore) ComparisonServiceOption {
	return func(svc *ComparisonService) {
		svc.comparisons = s
	}
}

// ComparisonWithDocumentStore sets the document store
func ComparisonWithDocumentStore(s DocumentStore) ComparisonServiceOption {
	return func(svc *ComparisonService) {
		svc.docs = s
	}
}

// ComparisonWithAIService sets the AI collaborator client
func ComparisonWithAIService(ai *AIService) ComparisonServiceOption {
	return func(svc *ComparisonService) {
		svc.ai = ai
	}
}

// NewComparisonService creates a new comparison service
func NewComparisonService(cfg Config, opts ...ComparisonServiceOption) *ComparisonService {
	svc := &ComparisonService{cfg: cfg}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateComparisonRequest represents a requested comparison
type CreateComparisonRequest struct {
	CompanyID        uuid.UUID
	SourceDocumentID uuid.UUID
	TargetDocumentID uuid.UUID
	Type             models.ComparisonType
}

// CreateComparison validates the precondition (both documents processed) and
// creates a pending comparison record. On precondition failure no record is
// created at all.
func (s *ComparisonService) CreateComparison(ctx context.Context, req CreateComparisonRequest) (*models.Comparison, error) {
	if req.SourceDocumentID == req.TargetDocumentID {
		return nil, &ValidationError{Reason: "source and target documents must differ"}
	}
	if !req.Type.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown comparison type %q", req.Type)}
	}

	source, err := s.docs.GetByID(ctx, req.SourceDocumentID)
	if err != nil {
		return nil, &ValidationError{Reason: "source document not found"}
	}
	target, err := s.docs.GetByID(ctx, req.TargetDocumentID)
	if err != nil {
		return nil, &ValidationError{Reason: "target document not found"}
	}

	if source.Status != models.DocumentStatusProcessed {
		return nil, &PreconditionError{Reason: fmt.Sprintf("source document is %s, not processed", source.Status)}
	}
	if target.Status != models.DocumentStatusProcessed {
		return nil, &PreconditionError{Reason: fmt.Sprintf("target document is %s, not processed", target.Status)}
	}

	cmp := &models.Comparison{
		CompanyID:        req.CompanyID,
		SourceDocumentID: req.SourceDocumentID,
		TargetDocumentID: req.TargetDocumentID,
		Type:             req.Type,
		Status:           models.ComparisonStatusPending,
	}
	if err := s.comparisons.Create(ctx, cmp); err != nil {
		return nil, &PersistenceError{Op: "comparison create", Err: err}
	}
	return cmp, nil
}

// StartComparison creates the comparison and runs its engine in the
// background, returning the pending handle immediately.
func (s *ComparisonService) StartComparison(ctx context.Context, req CreateComparisonRequest) (*models.Comparison, error) {
	cmp, err := s.CreateComparison(ctx, req)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.ProcessComparison(context.Background(), cmp.ID); err != nil {
			log.Printf("Comparison %s failed: %v", cmp.ID, err)
		}
	}()

	return cmp, nil
}

// ProcessComparison runs the comparison engine for one comparison record.
// The record always ends in completed or failed status.
func (s *ComparisonService) ProcessComparison(ctx context.Context, id uuid.UUID) error {
	cmp, err := s.comparisons.GetByID(ctx, id)
	if err != nil {
		return ErrComparisonNotFound
	}

	if err := s.comparisons.UpdateStatus(ctx, id, models.ComparisonStatusProcessing); err != nil {
		return &PersistenceError{Op: "status update", Err: err}
	}

	source, err := s.docs.GetByID(ctx, cmp.SourceDocumentID)
	if err != nil {
		return s.fail(ctx, id, "source document no longer available", err)
	}
	target, err := s.docs.GetByID(ctx, cmp.TargetDocumentID)
	if err != nil {
		return s.fail(ctx, id, "target document no longer available", err)
	}
	if source.RawText == nil || target.RawText == nil {
		err := &PreconditionError{Reason: "document text not available"}
		return s.fail(ctx, id, err.Error(), err)
	}

	// Step 1: embedding similarity, left unset when either side has no vector
	if source.HasEmbedding() && target.HasEmbedding() {
		score := CosineSimilarity01(source.Embedding, target.Embedding)
		cmp.SimilarityScore = &score
	}

	// Step 2: one holistic pass over both full texts; failure here fails
	// the whole comparison
	holistic, err := s.ai.CompareTexts(ctx, *source.RawText, *target.RawText)
	if err != nil {
		return s.fail(ctx, id, fmt.Sprintf("holistic comparison failed: %v", err), err)
	}
	cmp.Holistic = *holistic

	// Step 3: section-level sub-comparisons, best effort per section
	cmp.Sections = s.compareSections(ctx, *source.RawText, *target.RawText)

	// Step 4: deterministic materiality assessment over the combined output
	cmp.Materiality = AssessMateriality(combinedOutputText(cmp), time.Now().UTC())

	// Step 5: persist and complete
	if err := s.comparisons.Complete(ctx, cmp); err != nil {
		return s.fail(ctx, id, fmt.Sprintf("failed to persist results: %v", err), &PersistenceError{Op: "comparison complete", Err: err})
	}

	log.Printf("Comparison %s completed (%d sections, materiality %s)", cmp.ID, len(cmp.Sections), cmp.Materiality.Level)
	return nil
}

// compareSections extracts each canonical section from both texts and runs a
// sub-comparison where both sides yielded an excerpt. A section missing on
// either side, or whose sub-comparison fails, is omitted from the map.
func (s *ComparisonService) compareSections(ctx context.Context, sourceText, targetText string) models.SectionComparisons {
	results := make(models.SectionComparisons)
	for _, section := range canonicalSections {
		sourceExcerpt, ok := extractSection(sourceText, section, s.cfg.SectionLineCap)
		if !ok {
			continue
		}
		targetExcerpt, ok := extractSection(targetText, section, s.cfg.SectionLineCap)
		if !ok {
			continue
		}

		result, err := s.ai.CompareTexts(ctx, sourceExcerpt, targetExcerpt)
		if err != nil {
			log.Printf("Warning: sub-comparison for section %q failed: %v", section, err)
			continue
		}
		results[section] = *result
	}
	return results
}

// extractSection scans text line by line for a line containing the section
// name (case-insensitive), then captures subsequent lines until another
// recognized section header appears or lineCap lines are captured.
func extractSection(text, section string, lineCap int) (string, bool) {
	if lineCap <= 0 {
		lineCap = defaultSectionLineCap
	}

	lines := strings.Split(text, "\n")
	needle := strings.ToLower(section)

	start := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), needle) {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	var captured []string
	for _, line := range lines[start+1:] {
		if len(captured) >= lineCap {
			break
		}
		if isSectionHeader(line, section) {
			break
		}
		captured = append(captured, line)
	}

	excerpt := strings.TrimSpace(strings.Join(captured, "\n"))
	if excerpt == "" {
		return "", false
	}
	return excerpt, true
}

// isSectionHeader reports whether line mentions a canonical section other
// than the one currently being captured
func isSectionHeader(line, current string) bool {
	lower := strings.ToLower(line)
	for _, section := range canonicalSections {
		if section == current {
			continue
		}
		if strings.Contains(lower, strings.ToLower(section)) {
			return true
		}
	}
	return false
}

// combinedOutputText flattens the comparison output into one string for the
// materiality scan
func combinedOutputText(cmp *models.Comparison) string {
	var b strings.Builder
	writeResult := func(r models.ComparisonResult) {
		for _, s := range r.KeyDifferences {
			b.WriteString(s)
			b.WriteByte('\n')
		}
		b.WriteString(r.RiskAlignment)
		b.WriteByte('\n')
		for _, s := range r.ComplianceGaps {
			b.WriteString(s)
			b.WriteByte('\n')
		}
		for _, s := range r.Recommendations {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	writeResult(cmp.Holistic)
	for _, section := range canonicalSections {
		if r, ok := cmp.Sections[section]; ok {
			writeResult(r)
		}
	}
	return b.String()
}

// AssessMateriality scores the combined comparison output against fixed
// indicator phrases and maps the score to an ordinal level. The assessment
// is fully deterministic given its inputs.
func AssessMateriality(combined string, now time.Time) models.MaterialityAssessment {
	lower := strings.ToLower(combined)

	score := 0
	var factors []string
	if strings.Contains(lower, "material weakness") {
		score += materialWeaknessWeight
		factors = append(factors, "Material weaknesses identified")
	}
	if strings.Contains(lower, "significant deficienc") {
		score += significantDeficiencyWeight
		factors = append(factors, "Significant deficiencies identified")
	}
	if strings.Contains(lower, "compliance") {
		score += complianceIssueWeight
		factors = append(factors, "Compliance issues identified")
	}

	level := models.MaterialityLow
	switch {
	case score >= materialityHighThreshold:
		level = models.MaterialityHigh
	case score >= materialityMediumThreshold:
		level = models.MaterialityMedium
	}

	return models.MaterialityAssessment{
		Score:             score,
		Level:             level,
		FactorsConsidered: factors,
		AssessedAt:        now,
	}
}

// fail records a terminal comparison failure and returns the causing error
func (s *ComparisonService) fail(ctx context.Context, id uuid.UUID, message string, cause error) error {
	if err := s.comparisons.Fail(ctx, id, message); err != nil {
		log.Printf("Warning: failed to mark comparison %s failed: %v", id, err)
	}
	return cause
}

// GetComparison retrieves a comparison by id
func (s *ComparisonService) GetComparison(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	cmp, err := s.comparisons.GetByID(ctx, id)
	if err != nil {
		return nil, ErrComparisonNotFound
	}
	return cmp, nil
}

// ListComparisons lists a company's comparisons
func (s *ComparisonService) ListComparisons(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Comparison, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.comparisons.ListByCompany(ctx, companyID, limit, offset)
}

// ComparisonStats reports comparison outcomes for a company
func (s *ComparisonService) ComparisonStats(ctx context.Context, companyID uuid.UUID) (*models.ComparisonStats, error) {
	return s.comparisons.Stats(ctx, companyID)
}
