// Package probe performs single health probes against environment
// containers. A probe never returns an error to its caller; every failure
// mode (missing container, unresolved address, timeout, refused connection,
// bad status) collapses into an unhealthy verdict so the reconciliation
// state machine stays uniform.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 5 * time.Second

// Checker performs a single readiness probe against host:port.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// ForCheck returns the Checker matching a service's health check rule.
func ForCheck(check domain.HealthCheck) Checker {
	if check.Type == domain.CheckTCP {
		return &TCP{}
	}
	return &HTTP{Path: check.Endpoint}
}

// Prober resolves container addresses and runs checks with a bounded
// timeout.
type Prober struct {
	rt      runtime.ContainerRuntime
	timeout time.Duration
}

// New constructs a Prober. A non-positive timeout falls back to
// DefaultTimeout.
func New(rt runtime.ContainerRuntime, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{rt: rt, timeout: timeout}
}

// Probe checks one service's primary container. The target address is the
// container's IP on the environment network (preferred) or on any attached
// network; host-mapped ports are never consulted, so probing works without
// publishing ports.
func (p *Prober) Probe(ctx context.Context, containerName, envNetwork string, spec domain.ServiceSpec) domain.HealthVerdict {
	if spec.HealthCheck == nil {
		return domain.HealthyVerdict()
	}

	info, err := p.rt.GetContainer(ctx, containerName)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return domain.UnhealthyVerdict("container not found")
		}
		return domain.UnhealthyVerdict(fmt.Sprintf("inspect failed: %v", err))
	}

	ip, ok := resolveAddress(info, envNetwork)
	if !ok {
		return domain.UnhealthyVerdict("address unresolved")
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(spec.ProbePort()))
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := ForCheck(*spec.HealthCheck).Check(checkCtx, addr); err != nil {
		return domain.UnhealthyVerdict(err.Error())
	}
	return domain.HealthyVerdict()
}

// resolveAddress prefers the environment network's internal address and
// falls back to any network with an assigned IP. Stopped containers never
// resolve.
func resolveAddress(info runtime.ContainerInfo, envNetwork string) (string, bool) {
	if !info.Running {
		return "", false
	}
	if ip := info.Networks[envNetwork]; ip != "" {
		return ip, true
	}
	for _, ip := range info.Networks {
		if ip != "" {
			return ip, true
		}
	}
	return "", false
}
