// Package environment deploys and destroys labeled container environments.
// Every resource an environment owns carries the EnvLabel; teardown and
// monitoring trust nothing else.
package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/config"
)

const (
	// EnvLabel marks every resource owned by an environment with the
	// environment id.
	EnvLabel = "autotest.env.name"
	// ServiceLabel records which manifest service a container belongs to.
	ServiceLabel = "autotest.env.service"
	// ReplicaLabel marks autoscaler-created replicas. Primaries never
	// carry it.
	ReplicaLabel = "autotest.env.replica"
)

// ErrEnvironmentNotFound is returned when a teardown or monitor target has
// no containers and no networks behind its label.
var ErrEnvironmentNotFound = errors.New("environment not found")

// ErrImageNotFound is returned when a service's image reference does not
// exist in the registry.
var ErrImageNotFound = errors.New("image not found")

// ErrBuildContextMissing is returned when a service's build directory does
// not exist.
var ErrBuildContextMissing = errors.New("build context missing")

// Service is the environment lifecycle manager.
type Service struct {
	rt     runtime.ContainerRuntime
	logger *slog.Logger
	cfg    config.AgentConfig

	newID func() string
}

// New constructs a lifecycle manager bound to a container runtime.
func New(rt runtime.ContainerRuntime, logger *slog.Logger, cfg config.AgentConfig) *Service {
	if logger != nil {
		logger = logger.With("component", "environment")
	}
	return &Service{
		rt:     rt,
		logger: logger,
		cfg:    cfg,
		newID:  newEnvironmentID,
	}
}

// newEnvironmentID generates a globally-unique environment name. The uuid
// suffix is what guarantees two deploys of the same manifest never share a
// label value.
func newEnvironmentID() string {
	return "autotest-env-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NetworkName returns the environment's isolated network name.
func NetworkName(envID string) string {
	return envID + "-net"
}

// ContainerName returns the primary container name for a service.
func ContainerName(envID, service string) string {
	return envID + "-" + service
}

// Deploy creates a full environment: one isolated network plus one started
// container per service. The deploy is atomic from the caller's view: on
// any failure the partially created environment is torn down before the
// original error is returned.
func (s *Service) Deploy(ctx context.Context, specs map[string]domain.ServiceSpec, baseDir string) (domain.Environment, map[string]domain.DeployedService, error) {
	if err := s.rt.Ping(ctx); err != nil {
		return domain.Environment{}, nil, err
	}

	envID := s.newID()
	env := domain.Environment{
		ID:          envID,
		Services:    specs,
		NetworkName: NetworkName(envID),
	}
	labels := map[string]string{EnvLabel: envID}

	deployed, err := s.deploy(ctx, &env, labels, baseDir)
	if err != nil {
		s.rollback(envID)
		return domain.Environment{}, nil, err
	}
	return env, deployed, nil
}

func (s *Service) deploy(ctx context.Context, env *domain.Environment, labels map[string]string, baseDir string) (map[string]domain.DeployedService, error) {
	network, err := s.rt.CreateNetwork(ctx, env.NetworkName, labels)
	if err != nil {
		return nil, fmt.Errorf("create environment network: %w", err)
	}
	env.NetworkID = network.ID
	s.logger.Info("environment network created", "environment", env.ID, "network", env.NetworkName)

	deployed := make(map[string]domain.DeployedService, len(env.Services))
	for _, name := range sortedServiceNames(env.Services) {
		spec := env.Services[name]
		svc, err := s.deployService(ctx, env, spec, baseDir)
		if err != nil {
			return nil, err
		}
		deployed[name] = svc
	}
	return deployed, nil
}

func (s *Service) deployService(ctx context.Context, env *domain.Environment, spec domain.ServiceSpec, baseDir string) (domain.DeployedService, error) {
	image, err := s.resolveImage(ctx, env.ID, spec, baseDir)
	if err != nil {
		return domain.DeployedService{}, err
	}

	name := ContainerName(env.ID, spec.Name)
	labels := map[string]string{
		EnvLabel:     env.ID,
		ServiceLabel: spec.Name,
	}
	if spec.Exposed() {
		for k, v := range RoutingLabels(env.ID, spec, s.cfg.IngressNetwork, s.cfg.IngressHostSuffix) {
			labels[k] = v
		}
	}

	ports := make([]runtime.PortBinding, 0, len(spec.Ports))
	for _, pm := range spec.Ports {
		ports = append(ports, runtime.PortBinding{HostPort: pm.Host, ContainerPort: pm.Container})
	}

	s.logger.Info("creating container", "environment", env.ID, "service", spec.Name, "container", name, "image", image)
	info, err := s.rt.RunContainer(ctx, runtime.RunRequest{
		Name:    name,
		Image:   image,
		Labels:  labels,
		Network: env.NetworkName,
		Ports:   ports,
		Env:     spec.Environment,
	})
	if err != nil {
		return domain.DeployedService{}, fmt.Errorf("service %q: %w", spec.Name, err)
	}

	if spec.Exposed() && s.cfg.IngressNetwork != "" {
		if err := s.rt.ConnectNetwork(ctx, s.cfg.IngressNetwork, info.ID); err != nil {
			// Routing is label metadata; a missing ingress network only
			// degrades external reachability, not the environment.
			s.logger.Warn("ingress network attach failed", "environment", env.ID, "service", spec.Name, "network", s.cfg.IngressNetwork, "error", err)
		}
	}

	return domain.DeployedService{
		ContainerID: info.ID,
		Ports:       assignedPorts(info),
	}, nil
}

// resolveImage builds the service image from its build context when one is
// declared, otherwise pulls the named image. Built images are tagged
// <service>:<env> so they are attributable to the environment.
func (s *Service) resolveImage(ctx context.Context, envID string, spec domain.ServiceSpec, baseDir string) (string, error) {
	if spec.Build != "" {
		dir := spec.Build
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		stat, err := os.Stat(dir)
		if err != nil || !stat.IsDir() {
			return "", fmt.Errorf("service %q: directory %s: %w", spec.Name, dir, ErrBuildContextMissing)
		}
		tag := spec.Name + ":" + envID
		s.logger.Info("building image", "service", spec.Name, "context", dir, "tag", tag)
		err = s.rt.BuildImage(ctx, dir, tag, func(line string) {
			s.logger.Debug("build output", "service", spec.Name, "line", line)
		})
		if err != nil {
			return "", fmt.Errorf("service %q: %w", spec.Name, err)
		}
		return tag, nil
	}

	s.logger.Info("pulling image", "service", spec.Name, "image", spec.Image)
	if err := s.rt.PullImage(ctx, spec.Image); err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return "", fmt.Errorf("service %q: image %q: %w", spec.Name, spec.Image, ErrImageNotFound)
		}
		return "", fmt.Errorf("service %q: %w", spec.Name, err)
	}
	return spec.Image, nil
}

// rollback destroys whatever a failed deploy managed to create. It runs on
// a fresh context because the deploy's context may already be cancelled.
func (s *Service) rollback(envID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RuntimeTimeout)
	defer cancel()
	s.logger.Warn("deploy failed, rolling back environment", "environment", envID)
	if err := s.Teardown(ctx, envID); err != nil && !errors.Is(err, ErrEnvironmentNotFound) {
		s.logger.Error("rollback incomplete", "environment", envID, "error", err)
	}
}

// Teardown force-removes every container (with anonymous volumes) and then
// every network labeled with the environment id. Containers are reclaimed
// first; network removal failures are reported but do not abort cleanup.
// Removing a resource that is already gone is not an error.
func (s *Service) Teardown(ctx context.Context, envID string) error {
	containers, err := s.rt.ListContainersByLabel(ctx, EnvLabel, envID, true)
	if err != nil {
		return fmt.Errorf("list environment containers: %w", err)
	}
	networks, err := s.rt.ListNetworksByLabel(ctx, EnvLabel, envID)
	if err != nil {
		return fmt.Errorf("list environment networks: %w", err)
	}
	if len(containers) == 0 && len(networks) == 0 {
		return fmt.Errorf("environment %q: %w", envID, ErrEnvironmentNotFound)
	}

	s.logger.Info("tearing down environment", "environment", envID, "containers", len(containers), "networks", len(networks))
	var failed []string
	for _, c := range containers {
		if err := s.rt.RemoveContainer(ctx, c.ID, true, true); err != nil {
			s.logger.Error("container removal failed", "environment", envID, "container", c.Name, "error", err)
			failed = append(failed, c.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("environment %q: %d container(s) could not be removed: %s", envID, len(failed), strings.Join(failed, ", "))
	}

	for _, n := range networks {
		if err := s.rt.RemoveNetwork(ctx, n.ID); err != nil {
			s.logger.Warn("network removal failed, may need manual cleanup", "environment", envID, "network", n.Name, "error", err)
		}
	}
	return nil
}

// Rebuild reconstructs the deployed-service set for an environment from a
// live label query. This is the only way state survives a process restart.
func (s *Service) Rebuild(ctx context.Context, envID string) (map[string]domain.DeployedService, error) {
	containers, err := s.rt.ListContainersByLabel(ctx, EnvLabel, envID, true)
	if err != nil {
		return nil, fmt.Errorf("list environment containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("environment %q: %w", envID, ErrEnvironmentNotFound)
	}

	deployed := make(map[string]domain.DeployedService)
	for _, c := range containers {
		service := c.Labels[ServiceLabel]
		if service == "" {
			continue
		}
		entry := deployed[service]
		if c.Labels[ReplicaLabel] != "" {
			entry.Replicas = append(entry.Replicas, c.ID)
		} else {
			entry.ContainerID = c.ID
			entry.Ports = assignedPorts(c)
		}
		deployed[service] = entry
	}
	return deployed, nil
}

func assignedPorts(info runtime.ContainerInfo) []domain.PortMapping {
	ports := make([]domain.PortMapping, 0, len(info.Ports))
	for _, p := range info.Ports {
		ports = append(ports, domain.PortMapping{Host: p.HostPort, Container: p.ContainerPort})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Container < ports[j].Container })
	return ports
}

func sortedServiceNames(specs map[string]domain.ServiceSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
