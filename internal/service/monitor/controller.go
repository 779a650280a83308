// Package monitor runs the reconciliation loop for one deployed
// environment: probe every monitored service, feed the verdict into the
// self-healing state machine, and on healthy verdicts let the autoscaler
// react to CPU pressure. Errors inside a cycle are absorbed into verdicts
// and logs; the loop itself only stops on cancellation.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/probe"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/environment"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/config"
)

const (
	defaultInterval = 10 * time.Second
	defaultGrace    = 10 * time.Second
)

// prober is the probe seam; tests substitute scripted verdicts.
type prober interface {
	Probe(ctx context.Context, containerName, envNetwork string, spec domain.ServiceSpec) domain.HealthVerdict
}

// Controller owns one environment for the lifetime of a Monitor call.
// Within a cycle services are evaluated sequentially, so each service's
// failure counter is touched by exactly one evaluator.
type Controller struct {
	rt       runtime.ContainerRuntime
	logger   *slog.Logger
	env      domain.Environment
	deployed map[string]domain.DeployedService

	prober prober
	healer *healer
	scaler *autoscaler
	stats  *metrics

	interval time.Duration
	grace    time.Duration

	now       func() time.Time
	lastProbe map[string]time.Time
}

// NewController constructs the reconciliation controller for an
// environment. deployed may come straight from Deploy or from a label
// query rebuild; it is the controller's working state from here on.
func NewController(rt runtime.ContainerRuntime, logger *slog.Logger, cfg config.AgentConfig, env domain.Environment, deployed map[string]domain.DeployedService) *Controller {
	if logger != nil {
		logger = logger.With("component", "monitor", "environment", env.ID)
	}
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	grace := cfg.GracePeriod
	if grace < 0 {
		grace = defaultGrace
	}
	if deployed == nil {
		deployed = make(map[string]domain.DeployedService)
	}
	return &Controller{
		rt:        rt,
		logger:    logger,
		env:       env,
		deployed:  deployed,
		prober:    probe.New(rt, cfg.ProbeTimeout),
		healer:    newHealer(rt, logger, cfg.RuntimeTimeout),
		scaler:    newAutoscaler(rt, logger, cfg),
		stats:     newMetrics(),
		interval:  interval,
		grace:     grace,
		now:       time.Now,
		lastProbe: make(map[string]time.Time),
	}
}

// Run executes the reconciliation loop until the context is cancelled.
// Cancellation is honored between cycles only, never mid-probe, so failure
// counters are never left half-updated.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("monitor started", "grace_period", c.grace, "interval", c.interval, "services", len(c.monitored()))

	select {
	case <-ctx.Done():
		c.logger.Info("monitor stopped before first cycle")
		return nil
	case <-time.After(c.grace):
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

// runCycle evaluates every monitored service once: probe, heal, and, only
// on a healthy verdict, autoscale.
func (c *Controller) runCycle(ctx context.Context) {
	c.stats.cycles.Inc()
	now := c.now()

	for _, name := range c.monitored() {
		spec := c.env.Services[name]
		check := spec.HealthCheck

		if last, ok := c.lastProbe[name]; ok && now.Sub(last) < check.Interval {
			continue
		}
		c.lastProbe[name] = now

		containerName := environment.ContainerName(c.env.ID, name)
		verdict := c.prober.Probe(ctx, containerName, c.env.NetworkName, spec)
		c.stats.probes.WithLabelValues(name, verdictLabel(verdict)).Inc()
		if verdict.Healthy {
			c.logger.Info("health verdict", "service", name, "verdict", "healthy")
		} else {
			c.logger.Warn("health verdict", "service", name, "verdict", "unhealthy", "reason", verdict.Reason)
		}

		entry := c.deployed[name]
		containerRef := entry.ContainerID
		if containerRef == "" {
			// Not observed yet (e.g. monitor attached after a manual
			// removal); the name is stable, let the runtime resolve it.
			containerRef = containerName
		}

		if restarted := c.healer.Observe(ctx, name, containerRef, check.Retries, verdict); restarted {
			c.stats.restarts.WithLabelValues(name).Inc()
			c.scaler.forget(entry.ContainerID)
			continue
		}

		if verdict.Healthy && len(spec.OptimizationRules) > 0 {
			if scaled := c.scaler.Evaluate(ctx, c.env.ID, spec, &entry); scaled {
				c.stats.scaleUps.WithLabelValues(name).Inc()
				c.deployed[name] = entry
			}
		}
	}
}

// monitored returns the names of services carrying a health check rule, in
// stable order.
func (c *Controller) monitored() []string {
	names := make([]string, 0, len(c.env.Services))
	for name, spec := range c.env.Services {
		if spec.HealthCheck != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func verdictLabel(v domain.HealthVerdict) string {
	if v.Healthy {
		return "healthy"
	}
	return "unhealthy"
}
