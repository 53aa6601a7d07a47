package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallerIdentityFromHeaders(t *testing.T) {
	var got *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Role", "admin")

	CallerIdentity(next).ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("identity not injected")
	}
	if got.UserID != "u1" || got.Role != "admin" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestCallerIdentityAbsent(t *testing.T) {
	var got *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	})

	CallerIdentity(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != nil {
		t.Fatalf("expected nil identity without headers, got %+v", got)
	}
}
