package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/synaptica-ai/pseudonym/pkg/common/models"
)

func TestReidentifyRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/api/v1/runs/run-1/labels/PP002" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.ReidentifyResponse{RunID: "run-1", Label: "PP002"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithToken("tok"), WithRetry(3, time.Millisecond))
	resp, err := c.Reidentify(context.Background(), "run-1", "PP002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Label != "PP002" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected response %+v after %d calls", resp, calls)
	}
}

func TestReidentifyPaths(t *testing.T) {
	tests := []struct {
		name  string
		runID string
		want  string
	}{
		{name: "run scoped", runID: "run-7", want: "/api/v1/runs/run-7/labels/PP001"},
		{name: "bare label", runID: "", want: "/api/v1/labels/PP001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Path
				_ = json.NewEncoder(w).Encode(models.ReidentifyResponse{RunID: tc.runID, Label: "PP001"})
			}))
			defer srv.Close()

			if _, err := New(srv.URL, time.Second).Reidentify(context.Background(), tc.runID, "PP001"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRetryPolicyByOperation(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) error
		wantCalls int32
	}{
		{
			name: "pseudonymize is sent once",
			call: func(c *Client) error {
				_, err := c.Pseudonymize(context.Background(), models.PseudonymizeRequest{})
				return err
			},
			wantCalls: 1,
		},
		{
			name: "recompute is retried",
			call: func(c *Client) error {
				_, err := c.Recompute(context.Background(), models.RecomputeRequest{Fields: []string{"x"}})
				return err
			},
			wantCalls: 3,
		},
		{
			name: "lookup is retried",
			call: func(c *Client) error {
				_, err := c.Reidentify(context.Background(), "", "PP001")
				return err
			},
			wantCalls: 3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"keyfile store unavailable"}`))
			}))
			defer srv.Close()

			err := tc.call(New(srv.URL, time.Second, WithRetry(3, time.Millisecond)))
			var status *StatusError
			if !errors.As(err, &status) || status.Code != http.StatusServiceUnavailable || status.Message != "keyfile store unavailable" {
				t.Fatalf("expected 503 StatusError, got %v", err)
			}
			if got := atomic.LoadInt32(&calls); got != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, got)
			}
		})
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"label collision"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithRetry(3, time.Millisecond))
	_, err := c.Recompute(context.Background(), models.RecomputeRequest{Fields: []string{"x"}})

	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusConflict || status.Message != "label collision" {
		t.Fatalf("expected 409 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(srv.URL, time.Second, WithRetry(5, time.Millisecond))
	if _, err := c.Reidentify(ctx, "", "PP001"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("expected no calls after cancel, got %d", got)
	}
}
