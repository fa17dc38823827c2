package server

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func createRequestWithCert(method, path, cn, ou string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.TLS = &tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{createTestCert(cn, ou)},
	}
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_GetLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 5)

	limiter1 := rl.GetLimiter("client-1")
	if limiter1 == nil {
		t.Fatal("expected non-nil limiter")
	}

	// Same client gets the same limiter
	if rl.GetLimiter("client-1") != limiter1 {
		t.Error("same client should reuse its limiter")
	}

	// Different client gets a fresh one
	if rl.GetLimiter("client-2") == limiter1 {
		t.Error("different clients must not share a limiter")
	}
}

func TestRateLimitMiddleware_Allow(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	middleware := RateLimitMiddleware(rl)(okHandler())

	req := createRequestWithCert("POST", "/authorize", "pay-svc", "Payments")
	w := httptest.NewRecorder()
	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_Exceed(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	middleware := RateLimitMiddleware(rl)(okHandler())

	w1 := httptest.NewRecorder()
	middleware.ServeHTTP(w1, createRequestWithCert("POST", "/authorize", "pay-svc", "Payments"))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w1.Code)
	}

	w2 := httptest.NewRecorder()
	middleware.ServeHTTP(w2, createRequestWithCert("POST", "/authorize", "pay-svc", "Payments"))
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want \"1\"", got)
	}
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	middleware := RateLimitMiddleware(rl)(okHandler())

	// Exhaust client-1's budget
	w1 := httptest.NewRecorder()
	middleware.ServeHTTP(w1, createRequestWithCert("POST", "/authorize", "client-1", "Payments"))

	// client-2 has its own budget
	w2 := httptest.NewRecorder()
	middleware.ServeHTTP(w2, createRequestWithCert("POST", "/authorize", "client-2", "Payments"))
	if w2.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", w2.Code)
	}
}

func TestRateLimitMiddleware_NoCert(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	middleware := RateLimitMiddleware(rl)(okHandler())

	req := httptest.NewRequest("POST", "/authorize", nil)
	w := httptest.NewRecorder()
	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupStale(t *testing.T) {
	rl := NewRateLimiter(10, 5)

	rl.GetLimiter("old-client")
	rl.mu.Lock()
	rl.limiters["old-client"].lastUsed = time.Now().Add(-48 * time.Hour)
	rl.mu.Unlock()
	rl.GetLimiter("fresh-client")

	rl.cleanupStale(24 * time.Hour)

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.limiters["old-client"]; ok {
		t.Error("stale limiter should have been removed")
	}
	if _, ok := rl.limiters["fresh-client"]; !ok {
		t.Error("fresh limiter should survive cleanup")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	middleware := RecoveryMiddleware(panicking)

	req := httptest.NewRequest("POST", "/authorize", nil)
	w := httptest.NewRecorder()
	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAuditLogMiddleware_PassesThrough(t *testing.T) {
	middleware := AuditLogMiddleware(okHandler())

	req := createRequestWithCert("POST", "/authorize", "pay-svc", "Payments")
	w := httptest.NewRecorder()
	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
