package security

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/infrastructure/queue"
)

func newPooledHasher(t *testing.T) *BcryptHasher {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool := queue.NewWorkerPool(2, zerolog.Nop())
	pool.Start(ctx)
	return NewBcryptHasher(bcrypt.MinCost, pool)
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := newPooledHasher(t)
	ctx := context.Background()

	for _, pw := range []string{"pw1", "correct horse battery staple", "ñandú-🔑"} {
		digest, err := h.Hash(ctx, pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, digest)

		ok, err := h.Verify(ctx, pw, digest)
		require.NoError(t, err)
		assert.True(t, ok, "password %q should verify", pw)

		ok, err = h.Verify(ctx, pw+"x", digest)
		require.NoError(t, err)
		assert.False(t, ok, "altered password %q should not verify", pw)
	}
}

func TestBcryptHasher_DigestIsSelfDescribing(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)
	ctx := context.Background()

	a, err := h.Hash(ctx, "same")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each digest carries its own salt")
	cost, err := bcrypt.Cost([]byte(a))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBcryptHasher_MalformedDigest(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	for _, digest := range []string{"", "not-a-hash", "$2a$10$short"} {
		ok, err := h.Verify(context.Background(), "pw", digest)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	_, err := h.Hash(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBcryptHasher_CostClamp(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(0, nil).Cost())
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(1, nil).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(99, nil).Cost())
}

func TestBcryptHasher_CancelledContext(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := h.Verify(ctx, "pw", "whatever")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
