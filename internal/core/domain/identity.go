package domain

import (
	"context"
	"time"
)

// Identity is the decoded, verified content of a session token. It lives for
// the duration of a single request and is never cached across requests.
//
// Role is a snapshot taken when the token was issued: promoting a user does
// not change the Identity carried by tokens issued before the promotion.
type Identity struct {
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the token was issued for an admin.
func (id Identity) IsAdmin() bool {
	return IsAdmin(id.Role)
}

// RequireRole is the authorization gate. Admin satisfies every requirement.
func RequireRole(id Identity, required Role) error {
	if id.Role == required || id.IsAdmin() {
		return nil
	}
	return ErrForbidden
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the Identity stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
