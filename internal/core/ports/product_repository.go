package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// ProductFilter narrows List. Zero values mean no filter.
type ProductFilter struct {
	CategoryID     string
	BestSellerOnly bool
	Limit          int
}

// ProductRepository defines persistence operations for the catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) (*domain.Product, error)
	// FindByID returns domain.ErrProductNotFound for unknown or malformed ids.
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// ProductCache is a best-effort read-through cache in front of the repository.
type ProductCache interface {
	Get(ctx context.Context, id string) (*domain.Product, bool, error)
	Set(ctx context.Context, p *domain.Product) error
	GetBestSellers(ctx context.Context) ([]*domain.Product, bool, error)
	SetBestSellers(ctx context.Context, products []*domain.Product) error
	Invalidate(ctx context.Context, id string) error
}
