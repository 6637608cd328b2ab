package security

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
)

// DefaultBcryptCost matches the cost the storefront has always stored digests with.
const DefaultBcryptCost = 10

// Runner executes a function off the calling goroutine and waits for it.
// *queue.WorkerPool satisfies it.
type Runner interface {
	Submit(ctx context.Context, fn func()) error
}

// BcryptHasher hashes and verifies passwords with bcrypt. Digests carry their
// own salt and cost, so verification needs nothing but the digest.
type BcryptHasher struct {
	cost   int
	runner Runner
}

// NewBcryptHasher returns a hasher using cost (clamped to bcrypt's bounds).
// When runner is nil the work runs on the caller's goroutine.
func NewBcryptHasher(cost int, runner Runner) *BcryptHasher {
	switch {
	case cost <= 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost, runner: runner}
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", domain.ErrInvalidInput
	}

	var (
		digest  []byte
		hashErr error
	)
	err := h.run(ctx, func() {
		start := time.Now()
		digest, hashErr = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	})
	if err != nil {
		return "", err
	}
	if hashErr != nil {
		return "", hashErr
	}
	return string(digest), nil
}

// Verify never fails on a bad digest: a mismatch and a malformed digest both
// come back as false.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	var match bool
	err := h.run(ctx, func() {
		start := time.Now()
		match = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
		metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	})
	if err != nil {
		return false, err
	}
	return match, nil
}

func (h *BcryptHasher) run(ctx context.Context, fn func()) error {
	if h.runner == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn()
		return nil
	}
	return h.runner.Submit(ctx, fn)
}
