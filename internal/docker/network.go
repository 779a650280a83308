package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

// CreateNetwork creates a bridge network carrying the given labels.
func (c *Client) CreateNetwork(ctx context.Context, name string, labels map[string]string) (runtime.NetworkInfo, error) {
	if strings.TrimSpace(name) == "" {
		return runtime.NetworkInfo{}, fmt.Errorf("network name cannot be empty")
	}
	resp, err := c.inner.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: labels,
	})
	if err != nil {
		return runtime.NetworkInfo{}, fmt.Errorf("network create: %w", err)
	}
	return runtime.NetworkInfo{ID: resp.ID, Name: name, Labels: labels}, nil
}

// RemoveNetwork removes a network. A network that is already gone is not
// an error.
func (c *Client) RemoveNetwork(ctx context.Context, id string) error {
	if err := c.inner.NetworkRemove(ctx, id); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("network remove: %w", err)
	}
	return nil
}

// ListNetworksByLabel returns networks carrying key=value.
func (c *Client) ListNetworksByLabel(ctx context.Context, key, value string) ([]runtime.NetworkInfo, error) {
	args := filters.NewArgs(filters.Arg("label", key+"="+value))
	list, err := c.inner.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("network list: %w", err)
	}
	infos := make([]runtime.NetworkInfo, 0, len(list))
	for _, item := range list {
		infos = append(infos, runtime.NetworkInfo{ID: item.ID, Name: item.Name, Labels: item.Labels})
	}
	return infos, nil
}

// ConnectNetwork attaches a running container to an existing network.
func (c *Client) ConnectNetwork(ctx context.Context, networkName, containerID string) error {
	if err := c.inner.NetworkConnect(ctx, networkName, containerID, nil); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("network %s: %w", networkName, runtime.ErrNotFound)
		}
		return fmt.Errorf("network connect: %w", err)
	}
	return nil
}
