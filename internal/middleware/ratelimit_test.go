package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	handler := rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
	req.RemoteAddr = "10.0.0.1:50001"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after budget exhausted, got %d", rec.Code)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	handler := rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
	first.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// A different client has its own bucket.
	second := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
	second.RemoteAddr = "10.0.0.2:50000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for distinct client, got %d", rec.Code)
	}

	// The first client is now throttled.
	third := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
	third.RemoteAddr = "10.0.0.1:50002"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, third)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for throttled client, got %d", rec.Code)
	}
}
