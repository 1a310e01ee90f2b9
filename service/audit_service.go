package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/chankeypathak/AuditSync-Pro/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrCompanyNotFound  = errors.New("company not found")
)

// AuditService owns the document pipeline: validation, dedup, extraction,
// embedding, finding extraction, and the document status state machine.
type AuditService struct {
	docs      DocumentStore
	companies CompanyStore
	processor *Processor
	ai        *AIService
	storage   storage.Storage
	cfg       Config

	// inflight serializes pipeline executions per document id; a second
	// concurrent request joins the in-flight run instead of re-triggering it
	inflight singleflight.Group
}

// AuditServiceOption is a functional option for AuditService
type AuditServiceOption func(*AuditService)

// AuditWithDocumentStore sets the document store
func AuditWithDocumentStore(s DocumentStore) AuditServiceOption {
	return func(svc *AuditService) {
		svc.docs = s
	}
}

// AuditWithCompanyStore sets the company store
func AuditWithCompanyStore(s CompanyStore) AuditServiceOption {
	return func(svc *AuditService) {
		svc.companies = s
	}
}

// AuditWithProcessor sets the document processor
func AuditWithProcessor(p *Processor) AuditServiceOption {
	return func(svc *AuditService) {
		svc.processor = p
	}
}

// AuditWithAIService sets the AI collaborator client
func AuditWithAIService(ai *AIService) AuditServiceOption {
	return func(svc *AuditService) {
		svc.ai = ai
	}
}

// AuditWithStorage sets the object storage collaborator
func AuditWithStorage(s storage.Storage) AuditServiceOption {
	return func(svc *AuditService) {
		svc.storage = s
	}
}

// NewAuditService creates a new audit document service
func NewAuditService(cfg Config, opts ...AuditServiceOption) *AuditService {
	svc := &AuditService{cfg: cfg}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// UploadDocumentRequest represents an accepted upload from the ingestion gateway
type UploadDocumentRequest struct {
	CompanyID uuid.UUID
	Source    models.DocumentSource
	Filename  string
	Data      []byte
}

// UploadDocumentResult represents the outcome of an upload
type UploadDocumentResult struct {
	Document  *models.Document
	Duplicate bool
}

// UploadDocument validates the upload, short-circuits on a fingerprint
// match, and otherwise creates a pending document and starts its pipeline
// in the background. The caller gets a handle immediately.
func (s *AuditService) UploadDocument(ctx context.Context, req UploadDocumentRequest) (*UploadDocumentResult, error) {
	if s.docs == nil {
		return nil, errors.New("document store not set")
	}
	if s.processor == nil {
		return nil, errors.New("document processor not set")
	}

	if s.companies != nil {
		if _, err := s.companies.GetByID(ctx, req.CompanyID); err != nil {
			return nil, ErrCompanyNotFound
		}
	}

	validation, err := s.processor.Validate(req.Data, req.Filename)
	if err != nil {
		return nil, err
	}

	fingerprint := s.processor.Fingerprint(req.Data)

	// Identical content within the company maps to the existing record;
	// no re-extraction, no second document.
	existing, err := s.docs.FindByFingerprint(ctx, req.CompanyID, fingerprint)
	if err != nil {
		return nil, &PersistenceError{Op: "fingerprint lookup", Err: err}
	}
	if existing != nil {
		log.Printf("Duplicate upload detected for company %s (fingerprint %.12s), returning document %s", req.CompanyID, fingerprint, existing.ID)
		return &UploadDocumentResult{Document: existing, Duplicate: true}, nil
	}

	docID := uuid.New()
	storagePath, err := s.storage.Upload(ctx, docID, req.Filename, bytes.NewReader(req.Data))
	if err != nil {
		return nil, &PersistenceError{Op: "file upload", Err: err}
	}

	doc := &models.Document{
		CompanyID:   req.CompanyID,
		Source:      req.Source,
		Filename:    req.Filename,
		MimeType:    validation.MimeType,
		Size:        validation.Size,
		StoragePath: storagePath,
		Fingerprint: fingerprint,
		Status:      models.DocumentStatusPending,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		// Best effort cleanup of the orphaned object
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			log.Printf("Warning: failed to clean up stored file %s: %v", storagePath, delErr)
		}
		return nil, &PersistenceError{Op: "document create", Err: err}
	}

	// Process in the background with a fresh context so the pipeline is not
	// cancelled when the upload request completes
	go func() {
		if err := s.ProcessDocument(context.Background(), doc.ID); err != nil {
			log.Printf("Document pipeline %s failed: %v", doc.ID, err)
		}
	}()

	return &UploadDocumentResult{Document: doc}, nil
}

// ProcessDocument runs the extraction/embedding/finding pipeline for one
// document. Concurrent calls for the same id share a single execution.
func (s *AuditService) ProcessDocument(ctx context.Context, id uuid.UUID) error {
	_, err, _ := s.inflight.Do(id.String(), func() (interface{}, error) {
		return nil, s.runPipeline(ctx, id)
	})
	return err
}

// runPipeline is the single-flighted pipeline body
func (s *AuditService) runPipeline(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return ErrDocumentNotFound
	}

	if doc.Status == models.DocumentStatusProcessing {
		// Another execution already owns this document
		return nil
	}

	if err := s.docs.UpdateStatus(ctx, id, models.DocumentStatusProcessing); err != nil {
		return &PersistenceError{Op: "status update", Err: err}
	}

	reader, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		s.failDocument(ctx, id, fmt.Sprintf("failed to read stored file: %v", err))
		return err
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		s.failDocument(ctx, id, fmt.Sprintf("failed to read stored file: %v", err))
		return err
	}

	// Validation or extraction failure aborts the pipeline
	result, err := s.processor.Process(ctx, data, doc.Filename)
	if err != nil {
		s.failDocument(ctx, id, err.Error())
		return err
	}

	doc.RawText = &result.RawText
	doc.WordCount = result.WordCount
	doc.CharCount = result.CharCount

	s.enrichDocument(ctx, doc, result.RawText)

	if err := s.docs.SaveProcessingResults(ctx, doc); err != nil {
		s.failDocument(ctx, id, fmt.Sprintf("failed to persist results: %v", err))
		return &PersistenceError{Op: "save results", Err: err}
	}

	log.Printf("Document %s processed (%d words, embedding=%t)", doc.ID, doc.WordCount, doc.HasEmbedding())
	return nil
}

// enrichDocument runs the embedding and finding-extraction steps. The steps
// run concurrently and degrade independently: a collaborator failure leaves
// that field empty without failing its siblings, and the deterministic
// compliance heuristic always produces a result.
func (s *AuditService) enrichDocument(ctx context.Context, doc *models.Document, text string) {
	doc.ComplianceScores = AssessComplianceScores(text, time.Now())

	if s.ai == nil {
		return
	}

	var wg sync.WaitGroup
	var embedding models.Vector
	var findings models.Findings
	var findingsOK bool
	var weaknesses []models.Finding
	var risks models.RiskCategories

	wg.Add(4)
	go func() {
		defer wg.Done()
		v, err := s.ai.GenerateEmbedding(ctx, text)
		if err != nil {
			log.Printf("Warning: embedding generation failed for document %s: %v", doc.ID, err)
			return
		}
		embedding = v
	}()
	go func() {
		defer wg.Done()
		f, err := s.ai.ExtractFindings(ctx, text)
		if err != nil {
			log.Printf("Warning: finding extraction failed for document %s: %v", doc.ID, err)
			return
		}
		findings = f
		findingsOK = true
	}()
	go func() {
		defer wg.Done()
		w, err := s.ai.DetectMaterialWeaknesses(ctx, text)
		if err != nil {
			log.Printf("Warning: material weakness detection failed for document %s: %v", doc.ID, err)
			return
		}
		weaknesses = w
	}()
	go func() {
		defer wg.Done()
		r, err := s.ai.CategorizeRisks(ctx, text)
		if err != nil {
			log.Printf("Warning: risk categorization failed for document %s: %v", doc.ID, err)
			return
		}
		risks = r
	}()
	wg.Wait()

	doc.Embedding = embedding
	if findingsOK {
		doc.Findings = findings
	}
	// The dedicated weakness pass is more thorough than the generic
	// extraction; prefer its output when it found more
	if len(weaknesses) > len(doc.Findings.MaterialWeaknesses) {
		doc.Findings.MaterialWeaknesses = weaknesses
	}
	doc.RiskCategories = risks
}

// failDocument records a terminal pipeline failure
func (s *AuditService) failDocument(ctx context.Context, id uuid.UUID, message string) {
	if err := s.docs.MarkFailed(ctx, id, message); err != nil {
		log.Printf("Warning: failed to mark document %s failed: %v", id, err)
	}
}

// ReprocessDocument re-enters the pipeline for an existing document. It is
// the only path out of failed status; a document already processing is left
// alone and its current state returned.
func (s *AuditService) ReprocessDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, ErrDocumentNotFound
	}

	if doc.Status == models.DocumentStatusProcessing {
		return doc, nil
	}

	go func() {
		if err := s.ProcessDocument(context.Background(), id); err != nil {
			log.Printf("Document reprocess %s failed: %v", id, err)
		}
	}()

	return doc, nil
}

// GetDocument retrieves a document by id
func (s *AuditService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// ListDocuments lists a company's documents, optionally filtered by source
func (s *AuditService) ListDocuments(ctx context.Context, companyID uuid.UUID, source *models.DocumentSource, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.docs.ListByCompany(ctx, companyID, source, limit, offset)
}

// ProcessingStats reports pipeline outcomes for a company
func (s *AuditService) ProcessingStats(ctx context.Context, companyID uuid.UUID) (*models.ProcessingStats, error) {
	return s.docs.ProcessingStats(ctx, companyID)
}
