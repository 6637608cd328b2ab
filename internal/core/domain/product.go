package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Mutations are admin-only.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  string          `json:"category_id"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	BestSeller  bool            `json:"best_seller"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
