package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/synaptica-ai/pseudonym/pkg/common/auth"
)

func TestLoggingSetsRequestID(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id on the request")
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id on the response")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	tokens, err := auth.NewTokenManager("0123456789abcdef0123", "pseudonym-service", "pseudonym-api", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	granted, _ := tokens.IssueToken("steward", []string{auth.ScopeReidentify})
	other, _ := tokens.IssueToken("ingest", []string{auth.ScopePseudonymize})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || claims.Subject != "steward" {
			t.Error("expected claims in the request context")
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		tokens *auth.TokenManager
		header string
		want   int
	}{
		{"granted", tokens, "Bearer " + granted, http.StatusOK},
		{"missing header", tokens, "", http.StatusUnauthorized},
		{"garbage", tokens, "Bearer nope", http.StatusUnauthorized},
		{"wrong scope", tokens, "Bearer " + other, http.StatusForbidden},
		{"not configured", nil, "Bearer " + granted, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/labels/PP001", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(tc.tokens, auth.ScopeReidentify)(next).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
