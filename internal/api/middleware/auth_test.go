package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/infrastructure/security"
)

func newVerifier(t *testing.T) *security.TokenManager {
	t.Helper()
	m, err := security.NewTokenManager("secret")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return m
}

func issue(t *testing.T, m *security.TokenManager, role domain.Role) string {
	t.Helper()
	tok, err := m.Issue("user-1", role, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func runAuth(t *testing.T, m *security.TokenManager, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Authenticate(m)(next)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	msg, _ := body["message"].(string)
	return msg
}

func TestAuthenticate_BearerToken(t *testing.T) {
	m := newVerifier(t)
	tok := issue(t, m, domain.RoleAdmin)

	called := false
	rec := runAuth(t, m, "Bearer "+tok, func(c echo.Context) error {
		called = true
		id, ok := IdentityFrom(c)
		if !ok || id.SubjectID != "user-1" || !id.IsAdmin() {
			t.Fatalf("unexpected identity: %+v %v", id, ok)
		}
		ctxID, ok := domain.IdentityFrom(c.Request().Context())
		if !ok || ctxID != id {
			t.Fatalf("identity missing from request context")
		}
		return c.NoContent(http.StatusOK)
	})

	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_RawToken(t *testing.T) {
	m := newVerifier(t)
	tok := issue(t, m, domain.RoleCustomer)

	rec := runAuth(t, m, tok, func(c echo.Context) error {
		id, _ := IdentityFrom(c)
		if id.Role != domain.RoleCustomer || id.IsAdmin() {
			t.Fatalf("unexpected identity: %+v", id)
		}
		return c.NoContent(http.StatusOK)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	m := newVerifier(t)

	rec := runAuth(t, m, "", func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := messageOf(t, rec); msg != MsgNoToken {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	m := newVerifier(t)
	other, _ := security.NewTokenManager("other-secret")
	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := security.NewTokenManager("secret", security.WithClock(past))

	for name, header := range map[string]string{
		"garbage":      "Bearer not-a-token",
		"wrong secret": "Bearer " + issue(t, other, domain.RoleAdmin),
		"expired":      "Bearer " + issue(t, stale, domain.RoleAdmin),
		"bare scheme":  "Bearer",
	} {
		rec := runAuth(t, m, header, func(c echo.Context) error {
			t.Fatalf("%s: should not reach next", name)
			return nil
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
		if msg := messageOf(t, rec); msg != MsgInvalidToken {
			t.Fatalf("%s: unexpected message %q", name, msg)
		}
	}
}
