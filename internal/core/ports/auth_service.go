package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// RegisterInput carries the fields accepted by POST /auth/register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Promote(ctx context.Context, caller domain.Identity, targetID string) (*domain.User, error)
}
