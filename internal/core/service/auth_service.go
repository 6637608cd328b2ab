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

const (
	// DefaultRegisterTokenTTL is the "stay logged in" grant handed out on sign-up.
	DefaultRegisterTokenTTL = 7 * 24 * time.Hour
	// DefaultLoginTokenTTL is the tighter session issued on login.
	DefaultLoginTokenTTL = time.Hour

	dummyPassword = "storefront-timing-equaliser"
)

// TokenTTLs configures token lifetimes per use case.
type TokenTTLs struct {
	Register time.Duration
	Login    time.Duration
}

// AuthService implements registration, login and role promotion.
type AuthService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	ttls   TokenTTLs
	log    zerolog.Logger

	// dummyDigest is verified against when the email is unknown, so a miss
	// costs the same bcrypt work as a wrong password.
	dummyDigest string
}

// NewAuthService hashes the timing-equalisation digest up front; an error
// means the hasher is unusable.
func NewAuthService(
	ctx context.Context,
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	ttls TokenTTLs,
	log zerolog.Logger,
) (*AuthService, error) {
	if ttls.Register <= 0 {
		ttls.Register = DefaultRegisterTokenTTL
	}
	if ttls.Login <= 0 {
		ttls.Login = DefaultLoginTokenTTL
	}

	dummy, err := hasher.Hash(ctx, dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	return &AuthService{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		ttls:        ttls,
		log:         log,
		dummyDigest: dummy,
	}, nil
}

// Register creates a customer account and returns a long-lived token.
// A taken email short-circuits before any hashing or write.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return "", nil, domain.ErrInvalidInput
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return "", nil, domain.ErrEmailTaken
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return "", nil, s.registerFailed(domain.Internal("find user", err))
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return "", nil, s.registerFailed(domain.Internal("hash password", err))
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: digest,
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return "", nil, domain.ErrEmailTaken
		}
		return "", nil, s.registerFailed(domain.Internal("create user", err))
	}

	token, err := s.tokens.Issue(created.ID, created.Role, s.ttls.Register)
	if err != nil {
		return "", nil, s.registerFailed(domain.Internal("issue token", err))
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return token, created, nil
}

// Login exchanges credentials for a short-lived token. An unknown email and a
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, s.loginFailed(domain.Internal("find user", err))
		}
		// Burn the same bcrypt work as a real check.
		if _, verr := s.hasher.Verify(ctx, password, s.dummyDigest); verr != nil {
			return "", nil, s.loginFailed(domain.Internal("verify password", verr))
		}
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return "", nil, s.loginFailed(domain.Internal("verify password", err))
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role, s.ttls.Login)
	if err != nil {
		return "", nil, s.loginFailed(domain.Internal("issue token", err))
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")
	return token, user, nil
}

// Promote grants the admin role to targetID. The caller's role comes from its
// verified token, not from the store. Tokens already issued to the target keep
// their old role until they expire. A target that is already admin is
// returned as stored.
func (s *AuthService) Promote(ctx context.Context, caller domain.Identity, targetID string) (*domain.User, error) {
	if err := domain.RequireRole(caller, domain.RoleAdmin); err != nil {
		metrics.PromotionsTotal.WithLabelValues("forbidden").Inc()
		s.log.Warn().Str("caller_id", caller.SubjectID).Str("target_id", targetID).Msg("promotion denied")
		return nil, err
	}
	if targetID == "" {
		metrics.PromotionsTotal.WithLabelValues("not_found").Inc()
		return nil, domain.ErrUserNotFound
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.PromotionsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.ErrUserNotFound
		}
		metrics.PromotionsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("target_id", targetID).Msg("promotion lookup failed")
		return nil, domain.Internal("find user", err)
	}
	if target.IsAdmin() {
		metrics.PromotionsTotal.WithLabelValues("ok").Inc()
		return target, nil
	}

	updated, err := s.repo.UpdateRole(ctx, targetID, domain.RoleAdmin)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.PromotionsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.ErrUserNotFound
		}
		metrics.PromotionsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("target_id", targetID).Msg("promotion failed")
		return nil, domain.Internal("update role", err)
	}

	metrics.PromotionsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("caller_id", caller.SubjectID).Str("target_id", targetID).Msg("user promoted to admin")
	return updated, nil
}

func (s *AuthService) registerFailed(err error) error {
	metrics.RegistrationsTotal.WithLabelValues("error").Inc()
	s.log.Error().Err(err).Msg("registration failed")
	return err
}

func (s *AuthService) loginFailed(err error) error {
	metrics.LoginsTotal.WithLabelValues("error").Inc()
	s.log.Error().Err(err).Msg("login failed")
	return err
}
