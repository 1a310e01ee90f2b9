package repository

import (
	"context"
	"errors"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
	id, company_id, source, filename, mime_type, size, storage_path,
	fingerprint, raw_text, word_count, char_count,
	embedding, findings, risk_categories, compliance_scores,
	status, error_message, created_at, updated_at, processed_at`

// Create creates a new document record
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			company_id, source, filename, mime_type, size, storage_path,
			fingerprint, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.CompanyID,
		doc.Source,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.Fingerprint,
		doc.Status,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)

	return err
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.Source,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.Fingerprint,
		&doc.RawText,
		&doc.WordCount,
		&doc.CharCount,
		&doc.Embedding,
		&doc.Findings,
		&doc.RiskCategories,
		&doc.ComplianceScores,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRow(ctx, query, id))
}

// FindByFingerprint looks up the document with the given content fingerprint
// within a company. Returns (nil, nil) when no document matches.
func (r *DocumentRepository) FindByFingerprint(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE company_id = $1 AND fingerprint = $2
		ORDER BY created_at ASC
		LIMIT 1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, companyID, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateStatus updates the processing status of a document
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus) error {
	query := `
		UPDATE documents SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// MarkFailed moves a document to failed status with an error message
func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE documents SET
			status = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.DocumentStatusFailed, errorMessage)
	return err
}

// SaveProcessingResults persists the pipeline outputs and marks the document
// processed in one statement, so a crash never leaves a half-written record
// in processed status
func (r *DocumentRepository) SaveProcessingResults(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	query := `
		UPDATE documents SET
			raw_text = $2,
			word_count = $3,
			char_count = $4,
			embedding = $5,
			findings = $6,
			risk_categories = $7,
			compliance_scores = $8,
			status = $9,
			error_message = NULL,
			processed_at = $10,
			updated_at = $10
		WHERE id = $1`

	_, err := r.db.Exec(
		ctx, query,
		doc.ID,
		doc.RawText,
		doc.WordCount,
		doc.CharCount,
		doc.Embedding,
		doc.Findings,
		doc.RiskCategories,
		doc.ComplianceScores,
		models.DocumentStatusProcessed,
		now,
	)
	if err == nil {
		doc.Status = models.DocumentStatusProcessed
		doc.ProcessedAt = &now
	}
	return err
}

// ListByCompany retrieves documents for a company, optionally filtered by source
func (r *DocumentRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, source *models.DocumentSource, limit, offset int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE company_id = $1 AND ($2::text IS NULL OR source = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, companyID, source, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ProcessingStats aggregates pipeline outcomes for a company
func (r *DocumentRepository) ProcessingStats(ctx context.Context, companyID uuid.UUID) (*models.ProcessingStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'processed'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM documents
		WHERE company_id = $1`

	stats := &models.ProcessingStats{}
	err := r.db.QueryRow(ctx, query, companyID).Scan(
		&stats.TotalDocuments,
		&stats.ProcessedDocuments,
		&stats.ProcessingDocuments,
		&stats.PendingDocuments,
		&stats.FailedDocuments,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalDocuments > 0 {
		stats.SuccessRate = float64(stats.ProcessedDocuments) / float64(stats.TotalDocuments) * 100
	}
	return stats, nil
}
