package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailTaken is the Conflict case: the email is already registered.
	ErrEmailTaken = errors.New("user already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means no credentials were supplied.
	ErrUnauthenticated = errors.New("no token, authorization denied")
	// ErrTokenInvalid covers bad signatures, expired and malformed tokens alike.
	ErrTokenInvalid = errors.New("token is not valid")
	ErrForbidden    = errors.New("access denied: admins only")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrProductNotFound = errors.New("product not found")
)

// InternalError wraps a store or infrastructure failure. The HTTP layer
// renders a generic message plus the cause.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal wraps err as an InternalError for operation op.
// A nil err yields nil.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}
