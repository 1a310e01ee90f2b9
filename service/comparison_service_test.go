package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const comparisonPayload = `{
	"key_differences": ["Target report discloses a new material weakness"],
	"risk_alignment": "Partially aligned on operational risk",
	"compliance_gaps": ["Source report omits SOX 404 compliance scope"],
	"recommendations": ["Reconcile the control inventories"]
}`

func comparisonServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, generationResponse(comparisonPayload))
	}))
}

func newTestComparisonService(comparisons *fakeComparisonStore, docs *fakeDocumentStore, serverURL string) *ComparisonService {
	cfg := testConfig()
	return NewComparisonService(cfg,
		ComparisonWithStore(comparisons),
		ComparisonWithDocumentStore(docs),
		ComparisonWithAIService(NewAIService(cfg, "test-key", WithGenerationEndpoint(serverURL))),
	)
}

func seedProcessedDocument(t *testing.T, docs *fakeDocumentStore, companyID uuid.UUID, text string, embedding models.Vector) *models.Document {
	t.Helper()
	doc := &models.Document{
		CompanyID:   companyID,
		Source:      models.SourceInternalAudit,
		Filename:    "report.txt",
		MimeType:    "text/plain",
		Status:      models.DocumentStatusProcessed,
		RawText:     &text,
		Embedding:   embedding,
		Fingerprint: text,
	}
	require.NoError(t, docs.Create(context.Background(), doc))
	return doc
}

func TestCreateComparisonPrecondition(t *testing.T) {
	comparisons := newFakeComparisonStore()
	docs := newFakeDocumentStore()
	svc := newTestComparisonService(comparisons, docs, "http://unused")
	companyID := uuid.New()

	source := seedProcessedDocument(t, docs, companyID, "source text", nil)
	pending := &models.Document{
		CompanyID: companyID,
		Source:    models.SourceRegulatoryFiling,
		Status:    models.DocumentStatusPending,
	}
	require.NoError(t, docs.Create(context.Background(), pending))

	_, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: pending.ID,
		Type:             models.ComparisonInternalVsFiling,
	})

	var preErr *PreconditionError
	require.ErrorAs(t, err, &preErr)
	assert.Contains(t, preErr.Reason, "pending")
	assert.Zero(t, comparisons.createCalls, "no dangling record on precondition failure")
}

func TestCreateComparisonRejectsSelfComparison(t *testing.T) {
	svc := newTestComparisonService(newFakeComparisonStore(), newFakeDocumentStore(), "http://unused")
	id := uuid.New()

	_, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        uuid.New(),
		SourceDocumentID: id,
		TargetDocumentID: id,
		Type:             models.ComparisonInternalVsFiling,
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestCreateComparisonRejectsUnknownType(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestComparisonService(newFakeComparisonStore(), docs, "http://unused")
	companyID := uuid.New()
	source := seedProcessedDocument(t, docs, companyID, "a", nil)
	target := seedProcessedDocument(t, docs, companyID, "b", nil)

	_, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: target.ID,
		Type:             models.ComparisonType("sideways"),
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestProcessComparisonCompletes(t *testing.T) {
	server := comparisonServer(t)
	defer server.Close()

	comparisons := newFakeComparisonStore()
	docs := newFakeDocumentStore()
	svc := newTestComparisonService(comparisons, docs, server.URL)
	companyID := uuid.New()

	sourceText := "Introduction\nKey Findings\nProcurement controls lack segregation of duties.\nAccess reviews were not completed.\n"
	targetText := "Overview\nKey Findings\nSegregation of duties remediated this period.\n"
	source := seedProcessedDocument(t, docs, companyID, sourceText, models.Vector{1, 0, 0})
	target := seedProcessedDocument(t, docs, companyID, targetText, models.Vector{0, 1, 0})

	cmp, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: target.ID,
		Type:             models.ComparisonInternalVsFiling,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessComparison(context.Background(), cmp.ID))

	stored, err := comparisons.GetByID(context.Background(), cmp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComparisonStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	// Orthogonal embeddings rescale to the midpoint
	require.NotNil(t, stored.SimilarityScore)
	assert.InDelta(t, 0.5, *stored.SimilarityScore, 1e-9)

	assert.Equal(t, "Partially aligned on operational risk", stored.Holistic.RiskAlignment)

	// "Key Findings" is the only section present in both texts
	require.Len(t, stored.Sections, 1)
	assert.Contains(t, stored.Sections, "Key Findings")

	// Output mentions a material weakness and compliance gaps: 3 + 2
	assert.Equal(t, 5, stored.Materiality.Score)
	assert.Equal(t, models.MaterialityHigh, stored.Materiality.Level)
}

func TestProcessComparisonSimilarityUnsetWithoutEmbeddings(t *testing.T) {
	server := comparisonServer(t)
	defer server.Close()

	comparisons := newFakeComparisonStore()
	docs := newFakeDocumentStore()
	svc := newTestComparisonService(comparisons, docs, server.URL)
	companyID := uuid.New()

	source := seedProcessedDocument(t, docs, companyID, "source body", models.Vector{1, 0, 0})
	target := seedProcessedDocument(t, docs, companyID, "target body", nil)

	cmp, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: target.ID,
		Type:             models.ComparisonPeriodOverPeriod,
	})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessComparison(context.Background(), cmp.ID))

	stored, err := comparisons.GetByID(context.Background(), cmp.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SimilarityScore, "similarity stays unset, never coerced to zero")
	assert.Equal(t, models.ComparisonStatusCompleted, stored.Status)
}

func TestProcessComparisonHolisticFailureFailsComparison(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	comparisons := newFakeComparisonStore()
	docs := newFakeDocumentStore()
	svc := newTestComparisonService(comparisons, docs, server.URL)
	companyID := uuid.New()

	source := seedProcessedDocument(t, docs, companyID, "source body", nil)
	target := seedProcessedDocument(t, docs, companyID, "target body", nil)

	cmp, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: target.ID,
		Type:             models.ComparisonInternalVsFiling,
	})
	require.NoError(t, err)

	require.Error(t, svc.ProcessComparison(context.Background(), cmp.ID))

	stored, err := comparisons.GetByID(context.Background(), cmp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComparisonStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "holistic")
}

func TestProcessComparisonSubComparisonFailureOmitsSection(t *testing.T) {
	// First call (holistic) succeeds, every later call fails
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, generationResponse(comparisonPayload))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	comparisons := newFakeComparisonStore()
	docs := newFakeDocumentStore()
	svc := NewComparisonService(cfg,
		ComparisonWithStore(comparisons),
		ComparisonWithDocumentStore(docs),
		ComparisonWithAIService(NewAIService(cfg, "test-key", WithGenerationEndpoint(server.URL))),
	)
	companyID := uuid.New()

	sourceText := "Key Findings\nSource findings body.\n"
	targetText := "Key Findings\nTarget findings body.\n"
	source := seedProcessedDocument(t, docs, companyID, sourceText, nil)
	target := seedProcessedDocument(t, docs, companyID, targetText, nil)

	cmp, err := svc.CreateComparison(context.Background(), CreateComparisonRequest{
		CompanyID:        companyID,
		SourceDocumentID: source.ID,
		TargetDocumentID: target.ID,
		Type:             models.ComparisonInternalVsFiling,
	})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessComparison(context.Background(), cmp.ID))

	stored, err := comparisons.GetByID(context.Background(), cmp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComparisonStatusCompleted, stored.Status, "sub-comparison failure does not fail the comparison")
	assert.Empty(t, stored.Sections)
}

func TestExtractSectionLineCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("Key Findings\n")
	for i := 0; i < 200; i++ {
		b.WriteString(fmt.Sprintf("finding line %d\n", i))
	}

	excerpt, ok := extractSection(b.String(), "Key Findings", 50)

	require.True(t, ok)
	assert.Len(t, strings.Split(excerpt, "\n"), 50)
}

func TestExtractSectionStopsAtNextHeader(t *testing.T) {
	text := "Key Findings\nfirst finding\nsecond finding\nRisk Assessment\nrisk body\n"

	excerpt, ok := extractSection(text, "Key Findings", 50)

	require.True(t, ok)
	assert.Equal(t, "first finding\nsecond finding", excerpt)
}

func TestExtractSectionCaseInsensitive(t *testing.T) {
	text := "EXECUTIVE SUMMARY\noverview body\n"

	excerpt, ok := extractSection(text, "Executive Summary", 50)

	require.True(t, ok)
	assert.Equal(t, "overview body", excerpt)
}

func TestExtractSectionMissing(t *testing.T) {
	_, ok := extractSection("no recognizable headers here", "Key Findings", 50)
	assert.False(t, ok)
}

func TestAssessMaterialityScoring(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		text  string
		score int
		level models.MaterialityLevel
	}{
		{"no indicators", "routine findings only", 0, models.MaterialityLow},
		{"material weakness only", "a material weakness was found", 3, models.MaterialityMedium},
		{"compliance only", "compliance gaps identified", 2, models.MaterialityLow},
		{"weakness and compliance", "material weakness plus compliance gaps", 5, models.MaterialityHigh},
		{"all indicators", "material weakness, significant deficiency, compliance issue", 7, models.MaterialityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessMateriality(tt.text, now)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, now, got.AssessedAt)
		})
	}
}

func TestAssessMaterialityDeterministic(t *testing.T) {
	now := time.Now().UTC()
	text := "material weakness and compliance concerns"

	a := AssessMateriality(text, now)
	b := AssessMateriality(text, now)

	assert.Equal(t, a, b)
}
