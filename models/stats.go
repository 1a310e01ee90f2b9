package models

import "time"

// ProcessingStats summarizes document pipeline outcomes for a company
type ProcessingStats struct {
	TotalDocuments      int     `json:"total_documents"`
	ProcessedDocuments  int     `json:"processed_documents"`
	ProcessingDocuments int     `json:"processing_documents"`
	PendingDocuments    int     `json:"pending_documents"`
	FailedDocuments     int     `json:"failed_documents"`
	SuccessRate         float64 `json:"success_rate"` // percent
}

// ComparisonStats summarizes comparison outcomes for a company
type ComparisonStats struct {
	TotalComparisons     int        `json:"total_comparisons"`
	CompletedComparisons int        `json:"completed_comparisons"`
	PendingComparisons   int        `json:"pending_comparisons"`
	AverageSimilarity    *float64   `json:"average_similarity,omitempty"`
	LastComparisonAt     *time.Time `json:"last_comparison_at,omitempty"`
}
