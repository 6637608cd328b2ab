package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// UserRepository is the credential store the auth core depends on.
type UserRepository interface {
	// FindByEmail returns domain.ErrUserNotFound when no user has that email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create returns domain.ErrEmailTaken when the email is already stored.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// UpdateRole changes only the role and returns the updated user.
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
}
