package ports

import (
	"context"
	"time"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// PasswordHasher produces self-describing salted digests.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports false for a mismatch or a malformed digest. The error is
	// reserved for cancellation and pool shutdown.
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(subjectID string, role domain.Role, ttl time.Duration) (string, error)
}

// TokenVerifier validates session tokens. Every failure is domain.ErrTokenInvalid.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
