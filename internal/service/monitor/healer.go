package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

// healer owns the per-service consecutive-failure counters. Each service
// moves through healthy(0) → degraded(1..retries-1) → restarting; a healthy
// verdict from any state resets the counter, and so does issuing a restart,
// whatever its outcome.
type healer struct {
	rt       runtime.ContainerRuntime
	logger   *slog.Logger
	timeout  time.Duration
	failures map[string]int
}

func newHealer(rt runtime.ContainerRuntime, logger *slog.Logger, timeout time.Duration) *healer {
	return &healer{
		rt:       rt,
		logger:   logger,
		timeout:  timeout,
		failures: make(map[string]int),
	}
}

// Observe feeds one health verdict into a service's state machine and
// reports whether a restart was issued. A failed restart is logged, not
// retried; the next cycle re-evaluates the service from a clean counter.
func (h *healer) Observe(ctx context.Context, service, containerRef string, retries int, verdict domain.HealthVerdict) bool {
	if verdict.Healthy {
		h.failures[service] = 0
		return false
	}

	h.failures[service]++
	count := h.failures[service]
	if count < retries {
		h.logger.Warn("service degraded", "service", service, "reason", verdict.Reason, "consecutive_failures", count, "retries", retries)
		return false
	}

	h.logger.Warn("failure threshold reached, restarting container", "service", service, "container", containerRef, "consecutive_failures", count)
	restartCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.rt.RestartContainer(restartCtx, containerRef); err != nil {
		h.logger.Error("container restart failed", "service", service, "container", containerRef, "error", err)
	} else {
		h.logger.Info("container restarted", "service", service, "container", containerRef)
	}
	h.failures[service] = 0
	return true
}
