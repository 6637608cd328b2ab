package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// ProductService implements the catalog use cases. Callers of the mutating
// methods have already passed the admin gate.
type ProductService struct {
	repo   ports.ProductRepository
	cache  ports.ProductCache
	logger zerolog.Logger
}

// NewProductService wires a repository and an optional cache (nil disables caching).
func NewProductService(repo ports.ProductRepository, cache ports.ProductCache, logger zerolog.Logger) *ProductService {
	return &ProductService{repo: repo, cache: cache, logger: logger}
}

func (s *ProductService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.List(ctx, ports.ProductFilter{})
	if err != nil {
		return nil, domain.Internal("list products", err)
	}
	return products, nil
}

func (s *ProductService) ListByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error) {
	products, err := s.repo.List(ctx, ports.ProductFilter{CategoryID: categoryID})
	if err != nil {
		return nil, domain.Internal("list products by category", err)
	}
	return products, nil
}

// BestSellers is read through the cache.
func (s *ProductService) BestSellers(ctx context.Context) ([]*domain.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetBestSellers(ctx)
		switch {
		case err != nil:
			metrics.ProductCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Msg("best sellers cache read failed")
		case ok:
			metrics.ProductCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.ProductCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	products, err := s.repo.List(ctx, ports.ProductFilter{BestSellerOnly: true})
	if err != nil {
		return nil, domain.Internal("list best sellers", err)
	}

	if s.cache != nil {
		if err := s.cache.SetBestSellers(ctx, products); err != nil {
			s.logger.Warn().Err(err).Msg("best sellers cache write failed")
		}
	}
	return products, nil
}

// Get is read through the cache.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			metrics.ProductCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("product_id", id).Msg("product cache read failed")
		case ok:
			metrics.ProductCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.ProductCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, domain.Internal("find product", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("product_id", id).Msg("product cache write failed")
		}
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, in ports.ProductInput) (*domain.Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		BestSeller:  in.BestSeller,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create product")
		return nil, domain.Internal("create product", err)
	}

	s.invalidate(ctx, created.ID)
	metrics.ProductMutationsTotal.WithLabelValues("create").Inc()
	s.logger.Info().Str("product_id", created.ID).Msg("product created")
	return created, nil
}

func (s *ProductService) Update(ctx context.Context, id string, in ports.ProductInput) (*domain.Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, domain.Internal("find product", err)
	}

	current.Name = in.Name
	current.Description = in.Description
	current.Price = in.Price
	current.CategoryID = in.CategoryID
	current.Stock = in.Stock
	current.BestSeller = in.BestSeller
	if in.ImageURL != "" {
		current.ImageURL = in.ImageURL
	}
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, domain.Internal("update product", err)
	}

	s.invalidate(ctx, id)
	metrics.ProductMutationsTotal.WithLabelValues("update").Inc()
	s.logger.Info().Str("product_id", id).Msg("product updated")
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return err
		}
		return domain.Internal("delete product", err)
	}

	s.invalidate(ctx, id)
	metrics.ProductMutationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info().Str("product_id", id).Msg("product deleted")
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Msg("product cache invalidation failed")
	}
}

func validateProduct(in ports.ProductInput) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidInput)
	}
	return nil
}
