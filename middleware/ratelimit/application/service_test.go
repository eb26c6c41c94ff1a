package application

import (
	"errors"
	"sync"
	"testing"
	"time"

	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, maxRequests int, window time.Duration) (*Service, *infra.WindowLog) {
	t.Helper()
	windows := infra.NewWindowLog()
	svc, err := NewService(windows, infra.NewKeyMutex(0), domain.Policy{MaxRequests: maxRequests, Window: window})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, windows
}

func TestNewService_FailsFastOnBadConfig(t *testing.T) {
	windows := infra.NewWindowLog()

	if _, err := NewService(nil, nil, domain.Policy{MaxRequests: 5, Window: time.Minute}); !errors.Is(err, ErrNilWindowStore) {
		t.Fatalf("expected ErrNilWindowStore, got %v", err)
	}
	if _, err := NewService(windows, nil, domain.Policy{MaxRequests: 0, Window: time.Minute}); !errors.Is(err, domain.ErrMaxRequests) {
		t.Fatalf("expected ErrMaxRequests, got %v", err)
	}
	if _, err := NewService(windows, nil, domain.Policy{MaxRequests: 5, Window: 0}); !errors.Is(err, domain.ErrWindow) {
		t.Fatalf("expected ErrWindow, got %v", err)
	}
}

func TestService_Check_ConcreteScenario(t *testing.T) {
	// cenário de referência: 5 requisições por 60s
	svc, _ := newTestService(t, 5, 60*time.Second)

	for i := 0; i < 5; i++ {
		dec := svc.Check("10.0.0.1", t0.Add(time.Duration(i)*time.Second))
		if !dec.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if dec.RequestsMade != i+1 {
			t.Fatalf("request %d: expected RequestsMade=%d, got %d", i+1, i+1, dec.RequestsMade)
		}
		if dec.RequestsRemaining != 5-(i+1) {
			t.Fatalf("request %d: expected RequestsRemaining=%d, got %d", i+1, 5-(i+1), dec.RequestsRemaining)
		}
		if dec.RetryAfter != 0 {
			t.Fatalf("request %d: expected RetryAfter=0 when allowed, got %s", i+1, dec.RetryAfter)
		}
	}

	// sexta chamada em t=5: negada, retry_after = 60-5 = 55s
	dec := svc.Check("10.0.0.1", t0.Add(5*time.Second))
	if dec.Allowed {
		t.Fatalf("expected sixth request to be denied")
	}
	if dec.RequestsMade != 5 {
		t.Fatalf("expected RequestsMade=5, got %d", dec.RequestsMade)
	}
	if dec.RequestsRemaining != 0 {
		t.Fatalf("expected RequestsRemaining=0, got %d", dec.RequestsRemaining)
	}
	if got := dec.RetryAfterSeconds(); got != 55 {
		t.Fatalf("expected RetryAfterSeconds=55, got %d", got)
	}
	if !dec.ResetTime.Equal(t0.Add(60 * time.Second)) {
		t.Fatalf("expected ResetTime=%s, got %s", t0.Add(60*time.Second), dec.ResetTime)
	}
}

func TestService_Check_DeniedDoesNotRecord(t *testing.T) {
	svc, windows := newTestService(t, 2, time.Minute)

	svc.Check("k", t0)
	svc.Check("k", t0)
	svc.Check("k", t0) // negada

	if got := windows.Count("k"); got != 2 {
		t.Fatalf("expected denied check to not record, Count=%d", got)
	}
}

func TestService_Check_BoundaryCountsAsExpired(t *testing.T) {
	svc, _ := newTestService(t, 1, 60*time.Second)

	if dec := svc.Check("k", t0); !dec.Allowed {
		t.Fatalf("expected first request allowed")
	}

	// em t0+59s ainda dentro da janela: negada, com 1s de espera
	dec := svc.Check("k", t0.Add(59*time.Second))
	if dec.Allowed {
		t.Fatalf("expected request at t0+59s to be denied")
	}
	if got := dec.RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected RetryAfterSeconds=1, got %d", got)
	}

	// exatamente em t0+60s o evento de t0 conta como expirado
	dec = svc.Check("k", t0.Add(60*time.Second))
	if !dec.Allowed {
		t.Fatalf("expected request at exact boundary to be allowed")
	}
	if dec.RequestsMade != 1 {
		t.Fatalf("expected RequestsMade=1 after expiry, got %d", dec.RequestsMade)
	}
}

func TestService_Check_ExpiryReleasesCapacity(t *testing.T) {
	svc, _ := newTestService(t, 3, 60*time.Second)

	for i := 0; i < 3; i++ {
		if dec := svc.Check("k", t0); !dec.Allowed {
			t.Fatalf("expected request %d allowed", i+1)
		}
	}
	if dec := svc.Check("k", t0); dec.Allowed {
		t.Fatalf("expected fourth request denied")
	}

	dec := svc.Check("k", t0.Add(60*time.Second+time.Nanosecond))
	if !dec.Allowed {
		t.Fatalf("expected request after window to be allowed")
	}
	if dec.RequestsMade != 1 {
		t.Fatalf("expected RequestsMade=1, got %d", dec.RequestsMade)
	}
}

func TestService_Check_FreshKeyResetTime(t *testing.T) {
	svc, _ := newTestService(t, 5, time.Minute)

	// primeira requisição de uma chave nunca vista: reset relativo ao evento recém-gravado
	dec := svc.Check("nova", t0)
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if !dec.ResetTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected ResetTime=%s, got %s", t0.Add(time.Minute), dec.ResetTime)
	}
}

func TestService_Peek_NeverConsumes(t *testing.T) {
	svc, _ := newTestService(t, 2, time.Minute)

	svc.Check("k", t0)

	// peeks repetidos com o mesmo now retornam decisões idênticas
	first := svc.Peek("k", t0)
	for i := 0; i < 10; i++ {
		if got := svc.Peek("k", t0); got != first {
			t.Fatalf("peek %d: expected %+v, got %+v", i, first, got)
		}
	}
	if first.RequestsMade != 1 {
		t.Fatalf("expected RequestsMade=1 from peek, got %d", first.RequestsMade)
	}
	if !first.Allowed {
		t.Fatalf("expected peek to predict allowed")
	}

	// e não mudam o desfecho do próximo Check
	if dec := svc.Check("k", t0); !dec.Allowed || dec.RequestsMade != 2 {
		t.Fatalf("expected check after peeks to be allowed with RequestsMade=2, got %+v", dec)
	}
}

func TestService_Peek_PredictsDenial(t *testing.T) {
	svc, _ := newTestService(t, 2, time.Minute)

	svc.Check("k", t0)
	svc.Check("k", t0)

	dec := svc.Peek("k", t0.Add(time.Second))
	if dec.Allowed {
		t.Fatalf("expected peek to predict denial")
	}
	if dec.RequestsMade != 2 {
		t.Fatalf("expected RequestsMade=2, got %d", dec.RequestsMade)
	}
	if got := dec.RetryAfterSeconds(); got != 59 {
		t.Fatalf("expected RetryAfterSeconds=59, got %d", got)
	}
}

func TestService_Peek_EmptyWindow(t *testing.T) {
	svc, _ := newTestService(t, 5, time.Minute)

	dec := svc.Peek("nunca-vista", t0)
	if !dec.Allowed {
		t.Fatalf("expected peek on fresh key to predict allowed")
	}
	if dec.RequestsMade != 0 {
		t.Fatalf("expected RequestsMade=0, got %d", dec.RequestsMade)
	}
	if dec.RequestsRemaining != 5 {
		t.Fatalf("expected RequestsRemaining=5, got %d", dec.RequestsRemaining)
	}
	if !dec.ResetTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected ResetTime=now+window for empty window, got %s", dec.ResetTime)
	}
}

func TestService_PerKeyIsolation(t *testing.T) {
	svc, _ := newTestService(t, 2, time.Minute)

	// esgota a cota de A
	svc.Check("a", t0)
	svc.Check("a", t0)
	if dec := svc.Check("a", t0); dec.Allowed {
		t.Fatalf("expected key a to be exhausted")
	}

	// B continua livre
	if dec := svc.Check("b", t0); !dec.Allowed {
		t.Fatalf("expected key b to be allowed")
	}
}

func TestService_QuotaInvariantUnderRepeatedChecks(t *testing.T) {
	svc, windows := newTestService(t, 5, time.Minute)

	for i := 0; i < 100; i++ {
		svc.Check("k", t0.Add(time.Duration(i)*time.Millisecond))
	}
	if got := windows.Count("k"); got > 5 {
		t.Fatalf("quota invariant broken: %d retained events for max 5", got)
	}
}

func TestService_Check_ConcurrentSameKeyNeverOveradmits(t *testing.T) {
	svc, _ := newTestService(t, 5, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dec := svc.Check("k", t0); dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("expected exactly 5 admissions under concurrency, got %d", allowed)
	}
}

func TestService_JanitorDoesNotBreachQuota(t *testing.T) {
	// TTL ocioso menor que a janela: o Cleanup ainda precisa respeitar a
	// janela como piso, senão a chave "esquece" eventos válidos e admite
	// além da cota
	windows := infra.NewWindowLog(infra.WithIdleTTL(time.Minute))
	svc, err := NewService(windows, infra.NewKeyMutex(0), domain.Policy{MaxRequests: 5, Window: time.Hour})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	start := time.Now().Add(-20 * time.Minute)
	for i := 0; i < 5; i++ {
		if dec := svc.Check("k", start); !dec.Allowed {
			t.Fatalf("expected request %d allowed", i+1)
		}
	}

	windows.Cleanup()

	if dec := svc.Check("k", time.Now()); dec.Allowed {
		t.Fatalf("expected denial: quota still consumed inside the window")
	}
}

func TestService_RequestsRemainingNeverNegative(t *testing.T) {
	svc, windows := newTestService(t, 2, time.Minute)

	// grava por fora do Check para forçar janela acima do limite
	for i := 0; i < 4; i++ {
		windows.Record("k", t0)
	}

	dec := svc.Peek("k", t0)
	if dec.RequestsRemaining != 0 {
		t.Fatalf("expected RequestsRemaining clamped to 0, got %d", dec.RequestsRemaining)
	}
	if dec.RequestsMade != 4 {
		t.Fatalf("expected RequestsMade=4, got %d", dec.RequestsMade)
	}
}
