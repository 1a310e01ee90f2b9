package models

import (
	"time"

	"github.com/google/uuid"
)

// Company represents a company whose audit documents are tracked
type Company struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Ticker    *string   `json:"ticker,omitempty"`
	Industry  *string   `json:"industry,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
