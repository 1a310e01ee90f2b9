package repository

import (
	"context"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ComparisonRepository handles database operations for comparisons
type ComparisonRepository struct {
	db *pgxpool.Pool
}

// NewComparisonRepository creates a new comparison repository
func NewComparisonRepository(db *pgxpool.Pool) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

const comparisonColumns = `
	id, company_id, source_document_id, target_document_id, comparison_type,
	status, similarity_score, holistic, section_comparisons, materiality,
	error_message, created_at, updated_at, completed_at`

// Create creates a new comparison record
func (r *ComparisonRepository) Create(ctx context.Context, cmp *models.Comparison) error {
	query := `
		INSERT INTO comparisons (
			company_id, source_document_id, target_document_id,
			comparison_type, status
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		cmp.CompanyID,
		cmp.SourceDocumentID,
		cmp.TargetDocumentID,
		cmp.Type,
		cmp.Status,
	).Scan(&cmp.ID, &cmp.CreatedAt, &cmp.UpdatedAt)

	return err
}

func scanComparison(row pgx.Row) (*models.Comparison, error) {
	cmp := &models.Comparison{}
	err := row.Scan(
		&cmp.ID,
		&cmp.CompanyID,
		&cmp.SourceDocumentID,
		&cmp.TargetDocumentID,
		&cmp.Type,
		&cmp.Status,
		&cmp.SimilarityScore,
		&cmp.Holistic,
		&cmp.Sections,
		&cmp.Materiality,
		&cmp.ErrorMessage,
		&cmp.CreatedAt,
		&cmp.UpdatedAt,
		&cmp.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if cmp.Sections == nil {
		cmp.Sections = make(models.SectionComparisons)
	}
	return cmp, nil
}

// GetByID retrieves a comparison by ID
func (r *ComparisonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	query := `SELECT ` + comparisonColumns + ` FROM comparisons WHERE id = $1`
	return scanComparison(r.db.QueryRow(ctx, query, id))
}

// UpdateStatus updates the status of a comparison
func (r *ComparisonRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ComparisonStatus) error {
	query := `
		UPDATE comparisons SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// Complete persists the comparison results and marks it completed with a
// completion timestamp in one statement
func (r *ComparisonRepository) Complete(ctx context.Context, cmp *models.Comparison) error {
	now := time.Now()
	query := `
		UPDATE comparisons SET
			similarity_score = $2,
			holistic = $3,
			section_comparisons = $4,
			materiality = $5,
			status = $6,
			error_message = NULL,
			completed_at = $7,
			updated_at = $7
		WHERE id = $1`

	_, err := r.db.Exec(
		ctx, query,
		cmp.ID,
		cmp.SimilarityScore,
		cmp.Holistic,
		cmp.Sections,
		cmp.Materiality,
		models.ComparisonStatusCompleted,
		now,
	)
	if err == nil {
		cmp.Status = models.ComparisonStatusCompleted
		cmp.CompletedAt = &now
	}
	return err
}

// Fail marks a comparison as failed with an error message
func (r *ComparisonRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE comparisons SET
			status = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.ComparisonStatusFailed, errorMessage)
	return err
}

// ListByCompany retrieves comparison history for a company
func (r *ComparisonRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Comparison, error) {
	query := `SELECT ` + comparisonColumns + `
		FROM comparisons
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmps []*models.Comparison
	for rows.Next() {
		cmp, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		cmps = append(cmps, cmp)
	}
	return cmps, rows.Err()
}

// Stats aggregates comparison outcomes for a company
func (r *ComparisonRepository) Stats(ctx context.Context, companyID uuid.UUID) (*models.ComparisonStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'processing')),
			AVG(similarity_score) FILTER (WHERE similarity_score IS NOT NULL),
			MAX(created_at)
		FROM comparisons
		WHERE company_id = $1`

	stats := &models.ComparisonStats{}
	err := r.db.QueryRow(ctx, query, companyID).Scan(
		&stats.TotalComparisons,
		&stats.CompletedComparisons,
		&stats.PendingComparisons,
		&stats.AverageSimilarity,
		&stats.LastComparisonAt,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
