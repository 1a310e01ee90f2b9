package repository

import (
	"context"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyRepository handles database operations for companies
type CompanyRepository struct {
	db *pgxpool.Pool
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create creates a new company record
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (name, ticker, industry)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		company.Name,
		company.Ticker,
		company.Industry,
	).Scan(&company.ID, &company.CreatedAt)
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company := &models.Company{}
	query := `
		SELECT id, name, ticker, industry, created_at
		FROM companies
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.Ticker,
		&company.Industry,
		&company.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return company, nil
}

// List retrieves companies ordered by name
func (r *CompanyRepository) List(ctx context.Context, limit, offset int) ([]*models.Company, error) {
	query := `
		SELECT id, name, ticker, industry, created_at
		FROM companies
		ORDER BY name
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company := &models.Company{}
		err := rows.Scan(
			&company.ID,
			&company.Name,
			&company.Ticker,
			&company.Industry,
			&company.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}
