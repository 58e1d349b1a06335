package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
}

func TestReadiness(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name    string
		checks  []Check
		status  int
		wantKey string
		wantVal string
	}{
		{"no checks", nil, http.StatusOK, "status", "ready"},
		{"all healthy", []Check{{"postgres", healthy}, {"redis", healthy}}, http.StatusOK, "redis", "ok"},
		{"postgres down", []Check{{"postgres", down}, {"redis", healthy}}, http.StatusServiceUnavailable, "error", "postgres unhealthy"},
		{"redis down", []Check{{"postgres", healthy}, {"redis", down}}, http.StatusServiceUnavailable, "message", "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks...).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body[tt.wantKey] != tt.wantVal {
				t.Fatalf("expected %s=%q, got %v", tt.wantKey, tt.wantVal, body)
			}
		})
	}
}

func TestReadiness_PassesDeadline(t *testing.T) {
	var hadDeadline bool
	h := NewHealthHandler(Check{"postgres", PingFunc(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})})

	h.Readiness(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	if !hadDeadline {
		t.Fatal("expected ping context to carry a deadline")
	}
}
