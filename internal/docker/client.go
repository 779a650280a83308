// Package docker implements the agent's ContainerRuntime contract on top
// of the Docker Engine API.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

// Client wraps the Docker SDK client behind runtime.ContainerRuntime.
type Client struct {
	inner *client.Client
}

var _ runtime.ContainerRuntime = (*Client)(nil)

// New creates a Docker client using environment defaults. A non-empty host
// overrides DOCKER_HOST.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon. Failure is reported as
// runtime.ErrUnavailable so callers can treat it as fatal without matching
// on SDK error types.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return runtime.ErrUnavailable
	}
	ping, err := c.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrUnavailable, err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("%w: empty API version", runtime.ErrUnavailable)
	}
	return nil
}

// Close releases resources held by the Docker client.
func (c *Client) Close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
