package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/environment"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/config"
)

// autoscaler creates replica containers when a primary's CPU utilization
// crosses its scale_up threshold. Only primaries are ever evaluated, and at
// most one replica is created per service per reconciliation cycle, so the
// scaling rate is capped by the cycle cadence, not by how far over
// threshold the metric is.
type autoscaler struct {
	rt     runtime.ContainerRuntime
	logger *slog.Logger
	cfg    config.AgentConfig

	// prev holds the last stats sample per primary container id. The
	// first sample after startup has no baseline and reads as 0%.
	prev map[string]runtime.StatsSample

	newSuffix func() string
}

func newAutoscaler(rt runtime.ContainerRuntime, logger *slog.Logger, cfg config.AgentConfig) *autoscaler {
	return &autoscaler{
		rt:     rt,
		logger: logger,
		cfg:    cfg,
		prev:   make(map[string]runtime.StatsSample),
		newSuffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

// Evaluate runs the service's scale-up rules against a fresh CPU sample.
// Reports whether a replica was created and appended to deployed.Replicas.
func (a *autoscaler) Evaluate(ctx context.Context, envID string, spec domain.ServiceSpec, deployed *domain.DeployedService) bool {
	for _, rule := range spec.OptimizationRules {
		if rule.Metric != domain.MetricCPUUsage || rule.Action != domain.ActionScaleUp {
			continue
		}
		util, ok := a.utilization(ctx, deployed.ContainerID)
		if !ok {
			return false
		}
		if util <= rule.Threshold {
			continue
		}
		a.logger.Info("cpu threshold exceeded, scaling up", "service", spec.Name, "cpu_percent", fmt.Sprintf("%.1f", util), "threshold", rule.Threshold, "replicas", len(deployed.Replicas))
		replicaID, err := a.scaleUp(ctx, envID, spec)
		if err != nil {
			a.logger.Error("replica creation failed", "service", spec.Name, "error", err)
			return false
		}
		deployed.Replicas = append(deployed.Replicas, replicaID)
		return true
	}
	return false
}

func (a *autoscaler) utilization(ctx context.Context, containerID string) (float64, bool) {
	statsCtx, cancel := context.WithTimeout(ctx, a.cfg.ProbeTimeout)
	defer cancel()

	sample, err := a.rt.StatsSnapshot(statsCtx, containerID)
	if err != nil {
		a.logger.Warn("stats snapshot failed", "container", containerID, "error", err)
		delete(a.prev, containerID)
		return 0, false
	}

	prev, hasBaseline := a.prev[containerID]
	a.prev[containerID] = sample
	if !hasBaseline {
		return 0, true
	}
	return cpuUtilization(prev, sample), true
}

// scaleUp creates one replica container: same image, environment network,
// environment label plus the replica marker, and, for exposed services,
// the same routing labels as the primary so the ingress layer balances
// primary and replicas as one backend. Replicas never publish host ports.
func (a *autoscaler) scaleUp(ctx context.Context, envID string, spec domain.ServiceSpec) (string, error) {
	labels := map[string]string{
		environment.EnvLabel:     envID,
		environment.ServiceLabel: spec.Name,
		environment.ReplicaLabel: "true",
	}
	if spec.Exposed() {
		for k, v := range environment.RoutingLabels(envID, spec, a.cfg.IngressNetwork, a.cfg.IngressHostSuffix) {
			labels[k] = v
		}
	}

	image := spec.Image
	if spec.Build != "" {
		image = spec.Name + ":" + envID
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.RuntimeTimeout)
	defer cancel()
	name := fmt.Sprintf("%s-%s-replica-%s", envID, spec.Name, a.newSuffix())
	info, err := a.rt.RunContainer(runCtx, runtime.RunRequest{
		Name:    name,
		Image:   image,
		Labels:  labels,
		Network: environment.NetworkName(envID),
		Env:     spec.Environment,
	})
	if err != nil {
		return "", err
	}

	if spec.Exposed() && a.cfg.IngressNetwork != "" {
		if err := a.rt.ConnectNetwork(runCtx, a.cfg.IngressNetwork, info.ID); err != nil {
			a.logger.Warn("ingress network attach failed for replica", "service", spec.Name, "container", name, "error", err)
		}
	}

	a.logger.Info("replica created", "service", spec.Name, "container", name)
	return info.ID, nil
}

// forget drops the stats baseline for a container, forcing the next sample
// to read 0%. Called after restarts so post-restart counters never produce
// a bogus delta.
func (a *autoscaler) forget(containerID string) {
	delete(a.prev, containerID)
}
