package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatusHandler_ReportsQuotaWithoutConsuming(t *testing.T) {
	svc := newTestService(t, 5, 60*time.Second)

	// consome 2 de 5 em t0
	svc.Check("10.0.0.1", t0)
	svc.Check("10.0.0.1", t0)

	h := StatusHandler(StatusOptions{
		Service: svc,
		Now:     func() time.Time { return t0.Add(10 * time.Second) },
	})

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "http://example/status", nil)
		r.RemoteAddr = "10.0.0.1:9999"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := do()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		ClientKey string `json:"client_key"`
		RateLimit struct {
			MaxRequests       int   `json:"max_requests"`
			WindowSeconds     int   `json:"window_seconds"`
			Allowed           bool  `json:"allowed"`
			RequestsMade      int   `json:"requests_made"`
			RequestsRemaining int   `json:"requests_remaining"`
			ResetTime         int64 `json:"reset_time"`
			WindowResetsIn    int64 `json:"window_resets_in"`
		} `json:"rate_limit"`
		Timestamp int64 `json:"timestamp"`
	}
	firstBody := w.Body.String()
	if err := json.NewDecoder(strings.NewReader(firstBody)).Decode(&body); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}

	if body.ClientKey != "10.0.0.1" {
		t.Fatalf("expected client_key=10.0.0.1, got %q", body.ClientKey)
	}
	if body.RateLimit.MaxRequests != 5 || body.RateLimit.WindowSeconds != 60 {
		t.Fatalf("expected policy 5/60, got %d/%d", body.RateLimit.MaxRequests, body.RateLimit.WindowSeconds)
	}
	if !body.RateLimit.Allowed {
		t.Fatalf("expected allowed=true with quota available")
	}
	if body.RateLimit.RequestsMade != 2 {
		t.Fatalf("expected requests_made=2, got %d", body.RateLimit.RequestsMade)
	}
	if body.RateLimit.RequestsRemaining != 3 {
		t.Fatalf("expected requests_remaining=3, got %d", body.RateLimit.RequestsRemaining)
	}
	if body.RateLimit.ResetTime != t0.Add(60*time.Second).Unix() {
		t.Fatalf("expected reset_time=%d, got %d", t0.Add(60*time.Second).Unix(), body.RateLimit.ResetTime)
	}
	if body.RateLimit.WindowResetsIn != 50 {
		t.Fatalf("expected window_resets_in=50, got %d", body.RateLimit.WindowResetsIn)
	}
	if body.Timestamp != t0.Add(10*time.Second).Unix() {
		t.Fatalf("expected timestamp=%d, got %d", t0.Add(10*time.Second).Unix(), body.Timestamp)
	}

	// status não consome: repetir dá o mesmo resultado e o Check seguinte passa
	w2 := do()
	if w2.Body.String() != firstBody {
		t.Fatalf("expected identical status bodies, got %q vs %q", firstBody, w2.Body.String())
	}
	if dec := svc.Check("10.0.0.1", t0.Add(10*time.Second)); !dec.Allowed || dec.RequestsMade != 3 {
		t.Fatalf("expected check after status to be allowed with RequestsMade=3, got %+v", dec)
	}
}

func TestStatusHandler_FreshKey(t *testing.T) {
	svc := newTestService(t, 5, 60*time.Second)

	h := StatusHandler(StatusOptions{
		Service: svc,
		Now:     func() time.Time { return t0 },
	})

	r := httptest.NewRequest(http.MethodGet, "http://example/status", nil)
	r.RemoteAddr = "172.16.0.1:1111"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var body struct {
		RateLimit struct {
			RequestsMade      int   `json:"requests_made"`
			RequestsRemaining int   `json:"requests_remaining"`
			WindowResetsIn    int64 `json:"window_resets_in"`
		} `json:"rate_limit"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}
	if body.RateLimit.RequestsMade != 0 || body.RateLimit.RequestsRemaining != 5 {
		t.Fatalf("expected fresh quota 0/5, got %d made %d remaining",
			body.RateLimit.RequestsMade, body.RateLimit.RequestsRemaining)
	}
	// janela vazia: reset relativo a agora
	if body.RateLimit.WindowResetsIn != 60 {
		t.Fatalf("expected window_resets_in=60, got %d", body.RateLimit.WindowResetsIn)
	}
}
