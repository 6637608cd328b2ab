package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront-api/internal/api/handler"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
	"github.com/storefront/storefront-api/internal/core/service"
	"github.com/storefront/storefront-api/internal/infrastructure/security"
)

// memUsers is an in-memory ports.UserRepository.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	nextID int
	down   bool
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errors.New("connection refused")
	}
	for _, u := range r.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *user
	c.ID = fmt.Sprintf("u%d", r.nextID)
	r.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memUsers) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	c := *u
	return &c, nil
}

// memProducts is an in-memory ports.ProductRepository.
type memProducts struct {
	mu     sync.Mutex
	byID   map[string]*domain.Product
	nextID int
}

func (r *memProducts) Create(_ context.Context, p *domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *p
	c.ID = fmt.Sprintf("p%d", r.nextID)
	r.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memProducts) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (r *memProducts) List(_ context.Context, f ports.ProductFilter) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.byID {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.BestSellerOnly && !p.BestSeller {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (r *memProducts) Update(_ context.Context, p *domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *p
	r.byID[p.ID] = &c
	out := c
	return &out, nil
}

func (r *memProducts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.byID, id)
	return nil
}

type testServer struct {
	handler http.Handler
	users   *memUsers
	tokens  *security.TokenManager
}

func newTestServer(t *testing.T, checks map[string]handler.CheckFunc) *testServer {
	t.Helper()

	tokens, err := security.NewTokenManager("test-secret")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	users := &memUsers{byID: make(map[string]*domain.User)}
	hasher := security.NewBcryptHasher(bcrypt.MinCost, nil)
	log := zerolog.Nop()
	auth, err := service.NewAuthService(context.Background(), users, hasher, tokens, service.TokenTTLs{}, log)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	e := NewRouter(Dependencies{
		Auth:     auth,
		Products: service.NewProductService(&memProducts{byID: make(map[string]*domain.Product)}, nil, log),
		Verifier: tokens,
		Checks:   checks,
		Logger:   log,
	})
	return &testServer{handler: e, users: users, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	resp := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func (s *testServer) register(t *testing.T, name, email, password string) (string, string) {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":%q}`, name, email, password)
	code, resp := s.do(t, http.MethodPost, "/auth/register", "", body)
	if code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %v", email, code, resp)
	}
	user := resp["user"].(map[string]any)
	return resp["token"].(string), user["id"].(string)
}

func (s *testServer) login(t *testing.T, email, password string) (string, map[string]any) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	code, resp := s.do(t, http.MethodPost, "/auth/login", "", body)
	if code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %v", email, code, resp)
	}
	return resp["token"].(string), resp["user"].(map[string]any)
}

// seedAdmin stores an admin directly, as an operator would bootstrap one.
func (s *testServer) seedAdmin(t *testing.T, email, password string) string {
	t.Helper()
	_, id := s.register(t, "Root", email, password)
	if _, err := s.users.UpdateRole(context.Background(), id, domain.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, _ := s.login(t, email, password)
	return token
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	token, _ := s.register(t, "Alice", "alice@example.com", "pw12345")
	if token == "" {
		t.Fatal("expected a token")
	}

	code, resp := s.do(t, http.MethodPost, "/auth/register", "",
		`{"name":"Alice","email":"alice@example.com","password":"other"}`)
	if code != http.StatusBadRequest || resp["message"] != "User already exists" {
		t.Fatalf("duplicate register: got %d %v", code, resp)
	}

	_, user := s.login(t, "alice@example.com", "pw12345")
	if user["isAdmin"] != false || user["role"] != "customer" {
		t.Fatalf("unexpected login user: %v", user)
	}

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"pw12345"}`,
	} {
		code, resp := s.do(t, http.MethodPost, "/auth/login", "", body)
		if code != http.StatusBadRequest || resp["message"] != "Invalid credentials" {
			t.Fatalf("bad login %s: got %d %v", body, code, resp)
		}
	}
}

func TestRouter_PromotionGate(t *testing.T) {
	s := newTestServer(t, nil)

	custToken, custID := s.register(t, "Carol", "carol@example.com", "pw")
	adminToken := s.seedAdmin(t, "root@example.com", "rootpw")

	path := "/auth/users/" + custID + "/promote"

	code, resp := s.do(t, http.MethodPatch, path, "", "")
	if code != http.StatusUnauthorized || resp["message"] != "No token, authorization denied" {
		t.Fatalf("no token: got %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPatch, path, "garbage", "")
	if code != http.StatusUnauthorized || resp["message"] != "Token is not valid" {
		t.Fatalf("bad token: got %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPatch, path, custToken, "")
	if code != http.StatusForbidden || resp["message"] != "Access denied: Admins only" {
		t.Fatalf("customer promote: got %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPatch, "/auth/users/missing/promote", adminToken, "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown target: got %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPatch, path, adminToken, "")
	if code != http.StatusOK || resp["message"] != "User promoted to admin" {
		t.Fatalf("admin promote: got %d %v", code, resp)
	}
	if resp["user"].(map[string]any)["role"] != "admin" {
		t.Fatalf("expected promoted role, got %v", resp["user"])
	}

	// The token issued before promotion still carries the customer role.
	code, resp = s.do(t, http.MethodGet, "/auth/me", custToken, "")
	if code != http.StatusOK || resp["role"] != "customer" || resp["isAdmin"] != false {
		t.Fatalf("stale token: got %d %v", code, resp)
	}
	code, _ = s.do(t, http.MethodPost, "/api/products", custToken, `{"name":"x","price":"1","category_id":"c"}`)
	if code != http.StatusForbidden {
		t.Fatalf("stale token mutation: expected 403, got %d", code)
	}

	// A fresh login picks up the new role.
	_, user := s.login(t, "carol@example.com", "pw")
	if user["isAdmin"] != true {
		t.Fatalf("expected admin after re-login, got %v", user)
	}
}

func TestRouter_CatalogMutationGate(t *testing.T) {
	s := newTestServer(t, nil)

	custToken, _ := s.register(t, "Dan", "dan@example.com", "pw")
	adminToken := s.seedAdmin(t, "root@example.com", "rootpw")
	body := `{"name":"Kettle","price":"24.90","category_id":"kitchen","stock":5,"best_seller":true}`

	if code, _ := s.do(t, http.MethodPost, "/api/products", "", body); code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: expected 401, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/products", custToken, body); code != http.StatusForbidden {
		t.Fatalf("customer create: expected 403, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/products/admin/products", custToken, ""); code != http.StatusForbidden {
		t.Fatalf("customer admin list: expected 403, got %d", code)
	}

	code, created := s.do(t, http.MethodPost, "/api/products", adminToken, body)
	if code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d %v", code, created)
	}
	id := created["id"].(string)
	if created["price"] != "24.90" {
		t.Fatalf("unexpected price: %v", created["price"])
	}

	if code, _ := s.do(t, http.MethodGet, "/api/products/admin/products", adminToken, ""); code != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", code)
	}

	code, got := s.do(t, http.MethodGet, "/api/products/"+id, "", "")
	if code != http.StatusOK || got["name"] != "Kettle" {
		t.Fatalf("public get: got %d %v", code, got)
	}

	code, updated := s.do(t, http.MethodPut, "/api/products/"+id, adminToken,
		`{"name":"Kettle XL","price":"29.90","category_id":"kitchen","stock":2}`)
	if code != http.StatusOK || updated["name"] != "Kettle XL" {
		t.Fatalf("admin update: got %d %v", code, updated)
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/products/"+id, custToken, ""); code != http.StatusForbidden {
		t.Fatalf("customer delete: expected 403, got %d", code)
	}
	if code, _ := s.do(t, http.MethodDelete, "/api/products/"+id, adminToken, ""); code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/products/"+id, "", ""); code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", code)
	}
}

func TestRouter_InternalErrorCarriesCause(t *testing.T) {
	s := newTestServer(t, nil)
	s.users.down = true

	code, resp := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"a@example.com","password":"pw"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %v", code, resp)
	}
	if resp["message"] != MsgServerError || resp["error"] != "connection refused" {
		t.Fatalf("unexpected envelope: %v", resp)
	}
}

func TestRouter_InternalErrorWrappingSentinelIs500(t *testing.T) {
	s := newTestServer(t, nil)
	_, id := s.register(t, "Eve", "eve@example.com", "pw")

	// A role the token manager refuses to sign makes issuance fail after a
	// correct password.
	s.users.mu.Lock()
	s.users.byID[id].Role = domain.Role("user")
	s.users.mu.Unlock()

	code, resp := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"eve@example.com","password":"pw"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %v", code, resp)
	}
	if resp["message"] != MsgServerError {
		t.Fatalf("expected generic message, got %v", resp)
	}
	if cause, _ := resp["error"].(string); !strings.Contains(cause, "invalid input") {
		t.Fatalf("expected the cause in error, got %v", resp)
	}
}

func TestRouter_Operations(t *testing.T) {
	s := newTestServer(t, map[string]handler.CheckFunc{
		"mongodb": func(context.Context) error { return nil },
	})

	if code, _ := s.do(t, http.MethodGet, "/health", "", ""); code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/health/ready", "", ""); code != http.StatusOK {
		t.Fatalf("readiness: expected 200, got %d", code)
	}
	if code, resp := s.do(t, http.MethodGet, "/nope", "", ""); code != http.StatusNotFound || resp["message"] == "" {
		t.Fatalf("unknown route: got %d %v", code, resp)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "_requests_total") {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}
