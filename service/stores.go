package service

import (
	"context"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/google/uuid"
)

// DocumentStore is the persistence collaborator for documents. The pgx
// implementation lives in the repository package; tests substitute fakes.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// FindByFingerprint returns (nil, nil) when no document matches within
	// the company scope.
	FindByFingerprint(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	SaveProcessingResults(ctx context.Context, doc *models.Document) error
	ListByCompany(ctx context.Context, companyID uuid.UUID, source *models.DocumentSource, limit, offset int) ([]*models.Document, error)
	ProcessingStats(ctx context.Context, companyID uuid.UUID) (*models.ProcessingStats, error)
}

// ComparisonStore is the persistence collaborator for comparisons
type ComparisonStore interface {
	Create(ctx context.Context, cmp *models.Comparison) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comparison, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ComparisonStatus) error
	Complete(ctx context.Context, cmp *models.Comparison) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Comparison, error)
	Stats(ctx context.Context, companyID uuid.UUID) (*models.ComparisonStats, error)
}

// CompanyStore is the persistence collaborator for companies
type CompanyStore interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	List(ctx context.Context, limit, offset int) ([]*models.Company, error)
}
