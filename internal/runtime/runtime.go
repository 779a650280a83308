package runtime

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested runtime resource does not exist.
var ErrNotFound = errors.New("runtime: resource not found")

// ErrUnavailable indicates the container runtime cannot be reached.
var ErrUnavailable = errors.New("runtime: engine unavailable")

// RunRequest describes a container to create and start.
type RunRequest struct {
	Name    string
	Image   string
	Labels  map[string]string
	Network string
	Ports   []PortBinding
	Env     []string
}

// PortBinding publishes a container port on the host. HostPort zero means
// the port is exposed inside the environment network only.
type PortBinding struct {
	HostPort      int
	ContainerPort int
}

// ContainerInfo is a runtime-neutral snapshot of a container.
type ContainerInfo struct {
	ID      string
	Name    string
	Labels  map[string]string
	Running bool
	Ports   []PortBinding
	// Networks maps attached network name to the container's IP address
	// on that network.
	Networks map[string]string
}

// NetworkInfo identifies a runtime network.
type NetworkInfo struct {
	ID     string
	Name   string
	Labels map[string]string
}

// StatsSample carries cumulative CPU counters from one stats snapshot.
// Utilization is derived by the caller from two successive samples.
type StatsSample struct {
	CPUTotal    uint64
	SystemTotal uint64
	OnlineCPUs  uint32
	MemoryUsage uint64
	MemoryLimit uint64
}

// BuildOutput is invoked with incremental image build messages.
type BuildOutput func(string)

// ContainerRuntime is the engine-facing capability the agent depends on.
// The Docker implementation lives in internal/docker; tests substitute
// in-memory fakes.
type ContainerRuntime interface {
	Ping(ctx context.Context) error

	CreateNetwork(ctx context.Context, name string, labels map[string]string) (NetworkInfo, error)
	RemoveNetwork(ctx context.Context, id string) error
	ListNetworksByLabel(ctx context.Context, key, value string) ([]NetworkInfo, error)
	ConnectNetwork(ctx context.Context, networkName, containerID string) error

	BuildImage(ctx context.Context, dir, tag string, onOutput BuildOutput) error
	PullImage(ctx context.Context, ref string) error

	RunContainer(ctx context.Context, req RunRequest) (ContainerInfo, error)
	GetContainer(ctx context.Context, nameOrID string) (ContainerInfo, error)
	ListContainersByLabel(ctx context.Context, key, value string, includeStopped bool) ([]ContainerInfo, error)
	RemoveContainer(ctx context.Context, id string, force, removeVolumes bool) error
	RestartContainer(ctx context.Context, id string) error
	StatsSnapshot(ctx context.Context, id string) (StatsSample, error)
}
