package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/google/uuid"
)

// In-memory store fakes. They mimic the repository layer closely enough for
// service tests: copies in, copies out, status history recorded.

type fakeDocumentStore struct {
	mu          sync.Mutex
	docs        map[uuid.UUID]*models.Document
	history     map[uuid.UUID][]models.DocumentStatus
	createCalls int
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:    make(map[uuid.UUID]*models.Document),
		history: make(map[uuid.UUID][]models.DocumentStatus),
	}
}

func copyDocument(doc *models.Document) *models.Document {
	c := *doc
	return &c
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	f.docs[doc.ID] = copyDocument(doc)
	f.createCalls++
	return nil
}

func (f *fakeDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return copyDocument(doc), nil
}

func (f *fakeDocumentStore) FindByFingerprint(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.CompanyID == companyID && doc.Fingerprint == fingerprint {
			return copyDocument(doc), nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return errors.New("no rows")
	}
	doc.Status = status
	f.history[id] = append(f.history[id], status)
	return nil
}

func (f *fakeDocumentStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return errors.New("no rows")
	}
	doc.Status = models.DocumentStatusFailed
	doc.ErrorMessage = &errorMessage
	f.history[id] = append(f.history[id], models.DocumentStatusFailed)
	return nil
}

func (f *fakeDocumentStore) SaveProcessingResults(ctx context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.docs[doc.ID]
	if !ok {
		return errors.New("no rows")
	}
	now := time.Now()
	*stored = *doc
	stored.Status = models.DocumentStatusProcessed
	stored.ProcessedAt = &now
	f.history[doc.ID] = append(f.history[doc.ID], models.DocumentStatusProcessed)
	return nil
}

func (f *fakeDocumentStore) ListByCompany(ctx context.Context, companyID uuid.UUID, source *models.DocumentSource, limit, offset int) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for _, doc := range f.docs {
		if doc.CompanyID != companyID {
			continue
		}
		if source != nil && doc.Source != *source {
			continue
		}
		out = append(out, copyDocument(doc))
	}
	return out, nil
}

func (f *fakeDocumentStore) ProcessingStats(ctx context.Context, companyID uuid.UUID) (*models.ProcessingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.ProcessingStats{}
	for _, doc := range f.docs {
		if doc.CompanyID != companyID {
			continue
		}
		stats.TotalDocuments++
		switch doc.Status {
		case models.DocumentStatusProcessed:
			stats.ProcessedDocuments++
		case models.DocumentStatusProcessing:
			stats.ProcessingDocuments++
		case models.DocumentStatusPending:
			stats.PendingDocuments++
		case models.DocumentStatusFailed:
			stats.FailedDocuments++
		}
	}
	if stats.TotalDocuments > 0 {
		stats.SuccessRate = float64(stats.ProcessedDocuments) / float64(stats.TotalDocuments) * 100
	}
	return stats, nil
}

func (f *fakeDocumentStore) statusHistory(id uuid.UUID) []models.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DocumentStatus(nil), f.history[id]...)
}

type fakeComparisonStore struct {
	mu          sync.Mutex
	comparisons map[uuid.UUID]*models.Comparison
	createCalls int
}

func newFakeComparisonStore() *fakeComparisonStore {
	return &fakeComparisonStore{comparisons: make(map[uuid.UUID]*models.Comparison)}
}

func copyComparison(cmp *models.Comparison) *models.Comparison {
	c := *cmp
	return &c
}

func (f *fakeComparisonStore) Create(ctx context.Context, cmp *models.Comparison) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cmp.ID == uuid.Nil {
		cmp.ID = uuid.New()
	}
	cmp.CreatedAt = time.Now()
	cmp.UpdatedAt = cmp.CreatedAt
	f.comparisons[cmp.ID] = copyComparison(cmp)
	f.createCalls++
	return nil
}

func (f *fakeComparisonStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmp, ok := f.comparisons[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return copyComparison(cmp), nil
}

func (f *fakeComparisonStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ComparisonStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmp, ok := f.comparisons[id]
	if !ok {
		return errors.New("no rows")
	}
	cmp.Status = status
	return nil
}

func (f *fakeComparisonStore) Complete(ctx context.Context, cmp *models.Comparison) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.comparisons[cmp.ID]
	if !ok {
		return errors.New("no rows")
	}
	now := time.Now()
	*stored = *cmp
	stored.Status = models.ComparisonStatusCompleted
	stored.CompletedAt = &now
	return nil
}

func (f *fakeComparisonStore) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmp, ok := f.comparisons[id]
	if !ok {
		return errors.New("no rows")
	}
	cmp.Status = models.ComparisonStatusFailed
	cmp.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeComparisonStore) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comparison
	for _, cmp := range f.comparisons {
		if cmp.CompanyID == companyID {
			out = append(out, copyComparison(cmp))
		}
	}
	return out, nil
}

func (f *fakeComparisonStore) Stats(ctx context.Context, companyID uuid.UUID) (*models.ComparisonStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.ComparisonStats{}
	for _, cmp := range f.comparisons {
		if cmp.CompanyID != companyID {
			continue
		}
		stats.TotalComparisons++
		if cmp.Status == models.ComparisonStatusCompleted {
			stats.CompletedComparisons++
		}
	}
	return stats, nil
}

type fakeCompanyStore struct {
	mu        sync.Mutex
	companies map[uuid.UUID]*models.Company
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{companies: make(map[uuid.UUID]*models.Company)}
}

func (f *fakeCompanyStore) Create(ctx context.Context, company *models.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	company.CreatedAt = time.Now()
	c := *company
	f.companies[company.ID] = &c
	return nil
}

func (f *fakeCompanyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	company, ok := f.companies[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	c := *company
	return &c, nil
}

func (f *fakeCompanyStore) List(ctx context.Context, limit, offset int) ([]*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Company
	for _, company := range f.companies {
		c := *company
		out = append(out, &c)
	}
	return out, nil
}

// fakeStorage is an in-memory Storage backend. downloadGate, when set, makes
// Download block until the gate is closed.
type fakeStorage struct {
	mu           sync.Mutex
	objects      map[string][]byte
	downloadGate chan struct{}
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, documentID uuid.UUID, filename string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("documents/%s/%s", documentID, filename)
	f.mu.Lock()
	f.objects[key] = content
	f.mu.Unlock()
	return key, nil
}

func (f *fakeStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	if f.downloadGate != nil {
		<-f.downloadGate
	}
	f.mu.Lock()
	content, ok := f.objects[storagePath]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("document not found: %s", storagePath)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, storagePath string) error {
	f.mu.Lock()
	delete(f.objects, storagePath)
	f.mu.Unlock()
	return nil
}
