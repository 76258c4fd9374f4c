// internal/auth/auth_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("op-secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return NewManager(Config{
		Enabled:       true,
		JWTSecret:     "test-secret",
		JWTExpiration: 5,
		APIKeys:       []string{"device-key-1"},
		Operators: []Operator{
			{Username: "operator", PasswordHash: hash, Role: "viewer"},
		},
	})
}

func TestJWTRoundTrip(t *testing.T) {
	m := testManager(t)

	token, err := m.GenerateJWT("operator", "viewer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "operator" || claims.Role != "viewer" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != "water-quality-gateway" {
		t.Fatalf("unexpected issuer: %q", claims.Issuer)
	}
}

func TestValidateJWTRejectsForeignSignature(t *testing.T) {
	m := testManager(t)
	other := NewManager(Config{JWTSecret: "other-secret", JWTExpiration: 5})

	token, err := other.GenerateJWT("operator", "viewer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ValidateJWT(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestValidateAPIKey(t *testing.T) {
	m := testManager(t)

	if !m.ValidateAPIKey("device-key-1") {
		t.Fatal("configured key must validate")
	}
	if m.ValidateAPIKey("device-key-2") {
		t.Fatal("unknown key must not validate")
	}
	if m.ValidateAPIKey("") {
		t.Fatal("empty key must not validate")
	}
}

func TestAuthenticateOperator(t *testing.T) {
	m := testManager(t)

	role, err := m.AuthenticateOperator("operator", "op-secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if role != "viewer" {
		t.Fatalf("unexpected role %q", role)
	}

	if _, err := m.AuthenticateOperator("operator", "wrong"); err == nil {
		t.Fatal("wrong password must fail")
	}
	if _, err := m.AuthenticateOperator("ghost", "op-secret"); err == nil {
		t.Fatal("unknown operator must fail")
	}
}

func TestMiddlewareBypassWhenDisabled(t *testing.T) {
	m := NewManager(Config{Enabled: false})
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rr := httptest.NewRecorder()
	m.APIKeyMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if !called || rr.Code != http.StatusOK {
		t.Fatalf("disabled auth must pass through, called=%v code=%d", called, rr.Code)
	}
}

func TestAPIKeyMiddlewareEnforced(t *testing.T) {
	m := testManager(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := m.APIKeyMiddleware(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing key must be rejected, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-Key", "device-key-1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("valid key must pass, got %d", rr.Code)
	}
}

func TestJWTMiddlewareEnforced(t *testing.T) {
	m := testManager(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := UsernameFromContext(r.Context()); got != "operator" {
			t.Fatalf("username missing from request context, got %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := m.JWTMiddleware(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be rejected, got %d", rr.Code)
	}

	token, err := m.GenerateJWT("operator", "viewer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("valid token must pass, got %d", rr.Code)
	}
}
