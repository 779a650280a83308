package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

const restartTimeoutSeconds = 10

// RunContainer creates and starts a container attached to the requested
// network, then inspects it to report the ports and addresses the engine
// actually assigned.
func (c *Client) RunContainer(ctx context.Context, req runtime.RunRequest) (runtime.ContainerInfo, error) {
	if strings.TrimSpace(req.Name) == "" {
		return runtime.ContainerInfo{}, fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(req.Image) == "" {
		return runtime.ContainerInfo{}, fmt.Errorf("image name cannot be empty")
	}

	portBindings := nat.PortMap{}
	exposedPorts := nat.PortSet{}
	for _, p := range req.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", p.ContainerPort))
		exposedPorts[port] = struct{}{}
		if p.HostPort > 0 {
			portBindings[port] = []nat.PortBinding{{HostPort: strconv.Itoa(p.HostPort)}}
		}
	}

	cfg := &container.Config{
		Image:        req.Image,
		Env:          req.Env,
		Labels:       req.Labels,
		ExposedPorts: exposedPorts,
	}
	hostCfg := &container.HostConfig{
		PortBindings: portBindings,
	}
	var netCfg *network.NetworkingConfig
	if req.Network != "" {
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				req.Network: {},
			},
		}
	}

	created, err := c.inner.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, req.Name)
	if err != nil {
		return runtime.ContainerInfo{}, fmt.Errorf("container create: %w", err)
	}
	if err := c.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return runtime.ContainerInfo{}, fmt.Errorf("container start: %w", err)
	}
	return c.GetContainer(ctx, created.ID)
}

// GetContainer inspects a container by name or id.
func (c *Client) GetContainer(ctx context.Context, nameOrID string) (runtime.ContainerInfo, error) {
	inspect, err := c.inner.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.ContainerInfo{}, fmt.Errorf("container %s: %w", nameOrID, runtime.ErrNotFound)
		}
		return runtime.ContainerInfo{}, fmt.Errorf("container inspect: %w", err)
	}
	return infoFromInspect(inspect), nil
}

// ListContainersByLabel returns containers carrying key=value, optionally
// including stopped ones.
func (c *Client) ListContainersByLabel(ctx context.Context, key, value string, includeStopped bool) ([]runtime.ContainerInfo, error) {
	args := filters.NewArgs(filters.Arg("label", key+"="+value))
	list, err := c.inner.ContainerList(ctx, container.ListOptions{All: includeStopped, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}
	infos := make([]runtime.ContainerInfo, 0, len(list))
	for _, item := range list {
		infos = append(infos, infoFromSummary(item))
	}
	return infos, nil
}

// RemoveContainer removes a container. A container that is already gone is
// not an error.
func (c *Client) RemoveContainer(ctx context.Context, id string, force, removeVolumes bool) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("container id cannot be empty")
	}
	err := c.inner.ContainerRemove(ctx, id, container.RemoveOptions{Force: force, RemoveVolumes: removeVolumes})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// RestartContainer restarts a container with a bounded stop timeout.
func (c *Client) RestartContainer(ctx context.Context, id string) error {
	timeout := restartTimeoutSeconds
	err := c.inner.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
		}
		return fmt.Errorf("restart container: %w", err)
	}
	return nil
}

// StatsSnapshot reads one cumulative stats sample for a container. The
// one-shot endpoint carries no baseline, so utilization must be derived by
// the caller from two successive samples.
func (c *Client) StatsSnapshot(ctx context.Context, id string) (runtime.StatsSample, error) {
	resp, err := c.inner.ContainerStatsOneShot(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.StatsSample{}, fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
		}
		return runtime.StatsSample{}, fmt.Errorf("container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return runtime.StatsSample{}, fmt.Errorf("decode container stats: %w", err)
	}

	cpus := stats.CPUStats.OnlineCPUs
	if cpus == 0 {
		cpus = uint32(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	return runtime.StatsSample{
		CPUTotal:    stats.CPUStats.CPUUsage.TotalUsage,
		SystemTotal: stats.CPUStats.SystemUsage,
		OnlineCPUs:  cpus,
		MemoryUsage: stats.MemoryStats.Usage,
		MemoryLimit: stats.MemoryStats.Limit,
	}, nil
}

func infoFromInspect(inspect types.ContainerJSON) runtime.ContainerInfo {
	info := runtime.ContainerInfo{
		ID:       inspect.ID,
		Name:     strings.TrimPrefix(inspect.Name, "/"),
		Networks: map[string]string{},
	}
	if inspect.Config != nil {
		info.Labels = inspect.Config.Labels
	}
	if inspect.State != nil {
		info.Running = inspect.State.Running
	}
	if inspect.NetworkSettings == nil {
		return info
	}
	for name, endpoint := range inspect.NetworkSettings.Networks {
		if endpoint != nil {
			info.Networks[name] = endpoint.IPAddress
		}
	}
	for port, bindings := range inspect.NetworkSettings.Ports {
		pb := runtime.PortBinding{ContainerPort: port.Int()}
		for _, binding := range bindings {
			if hostPort, err := strconv.Atoi(binding.HostPort); err == nil && hostPort > 0 {
				pb.HostPort = hostPort
				break
			}
		}
		info.Ports = append(info.Ports, pb)
	}
	return info
}

func infoFromSummary(item types.Container) runtime.ContainerInfo {
	info := runtime.ContainerInfo{
		ID:       item.ID,
		Labels:   item.Labels,
		Running:  item.State == "running",
		Networks: map[string]string{},
	}
	if len(item.Names) > 0 {
		info.Name = strings.TrimPrefix(item.Names[0], "/")
	}
	if item.NetworkSettings != nil {
		for name, endpoint := range item.NetworkSettings.Networks {
			if endpoint != nil {
				info.Networks[name] = endpoint.IPAddress
			}
		}
	}
	for _, port := range item.Ports {
		info.Ports = append(info.Ports, runtime.PortBinding{
			HostPort:      int(port.PublicPort),
			ContainerPort: int(port.PrivatePort),
		})
	}
	return info
}
