package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
)

func testHealer(eng *fakeEngine) *healer {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return newHealer(eng, logger, time.Second)
}

func TestHealerRestartsAtThreshold(t *testing.T) {
	eng := newFakeEngine()
	h := testHealer(eng)
	unhealthy := domain.UnhealthyVerdict("HTTP 503")

	for i := 1; i <= 2; i++ {
		if restarted := h.Observe(context.Background(), "api", "c-api", 3, unhealthy); restarted {
			t.Fatalf("restart issued after %d failures", i)
		}
	}
	if !h.Observe(context.Background(), "api", "c-api", 3, unhealthy) {
		t.Fatal("expected restart at the third consecutive failure")
	}
	if eng.restartCount() != 1 {
		t.Fatalf("expected one restart, got %d", eng.restartCount())
	}

	// The restart reset the counter; the next failure starts from one.
	if h.Observe(context.Background(), "api", "c-api", 3, unhealthy) {
		t.Fatal("counter was not reset after restart")
	}
}

func TestHealerHealthyResetsCounter(t *testing.T) {
	eng := newFakeEngine()
	h := testHealer(eng)
	unhealthy := domain.UnhealthyVerdict("timeout")

	h.Observe(context.Background(), "api", "c-api", 3, unhealthy)
	h.Observe(context.Background(), "api", "c-api", 3, unhealthy)
	h.Observe(context.Background(), "api", "c-api", 3, domain.HealthyVerdict())

	// Two fresh failures stay under the threshold.
	h.Observe(context.Background(), "api", "c-api", 3, unhealthy)
	if h.Observe(context.Background(), "api", "c-api", 3, unhealthy) {
		t.Fatal("restart issued despite the counter being reset")
	}
	if eng.restartCount() != 0 {
		t.Fatalf("expected no restarts, got %d", eng.restartCount())
	}
}

func TestHealerCountsServicesIndependently(t *testing.T) {
	eng := newFakeEngine()
	h := testHealer(eng)
	unhealthy := domain.UnhealthyVerdict("connection refused")

	h.Observe(context.Background(), "api", "c-api", 2, unhealthy)
	h.Observe(context.Background(), "db", "c-db", 2, unhealthy)
	if eng.restartCount() != 0 {
		t.Fatal("single failures must not trigger restarts")
	}

	if !h.Observe(context.Background(), "api", "c-api", 2, unhealthy) {
		t.Fatal("expected api restart at its own threshold")
	}
	if eng.restartCount() != 1 || eng.restarted[0] != "c-api" {
		t.Fatalf("unexpected restarts: %v", eng.restarted)
	}
}

func TestHealerFailedRestartStillResets(t *testing.T) {
	eng := newFakeEngine()
	eng.restartErr = errors.New("engine busy")
	h := testHealer(eng)
	unhealthy := domain.UnhealthyVerdict("HTTP 500")

	if h.Observe(context.Background(), "api", "c-api", 1, unhealthy) != true {
		t.Fatal("expected a restart attempt")
	}
	if h.failures["api"] != 0 {
		t.Fatalf("expected counter reset after failed restart, got %d", h.failures["api"])
	}
}
