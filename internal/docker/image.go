package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"
)

// BuildImage creates a Docker image from the provided directory using the
// default Dockerfile. Incremental build messages are passed to onOutput.
func (c *Client) BuildImage(ctx context.Context, dir, tag string, onOutput runtime.BuildOutput) error {
	if dir == "" {
		return fmt.Errorf("build directory cannot be empty")
	}
	if tag == "" {
		return fmt.Errorf("image tag cannot be empty")
	}
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	opts := types.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	}
	resp, err := c.inner.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return fmt.Errorf("docker image build: %w", err)
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var msg imageBuildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return fmt.Errorf("docker image build: %s", errMsg)
		}
		if line := msg.render(); line != "" && onOutput != nil {
			onOutput(line)
		}
	}
	return nil
}

// PullImage pulls an image from its registry. A missing reference maps to
// runtime.ErrNotFound. The pull is not complete until the response body is
// fully drained.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	rc, err := c.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("image %s: %w", ref, runtime.ErrNotFound)
		}
		return fmt.Errorf("docker pull %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("docker pull %s: read response: %w", ref, err)
	}
	return nil
}

type imageBuildMessage struct {
	Stream         string                `json:"stream"`
	Status         string                `json:"status"`
	ID             string                `json:"id"`
	Progress       string                `json:"progress"`
	ProgressDetail progressDetail        `json:"progressDetail"`
	Error          string                `json:"error"`
	ErrorDetail    imageBuildErrorDetail `json:"errorDetail"`
}

type progressDetail struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
}

type imageBuildErrorDetail struct {
	Message string `json:"message"`
}

func (m imageBuildMessage) errorMessage() string {
	if strings.TrimSpace(m.Error) != "" {
		return strings.TrimSpace(m.Error)
	}
	if strings.TrimSpace(m.ErrorDetail.Message) != "" {
		return strings.TrimSpace(m.ErrorDetail.Message)
	}
	return ""
}

func (m imageBuildMessage) render() string {
	if m.Stream != "" {
		return strings.TrimSpace(m.Stream)
	}
	if m.Status == "" {
		return ""
	}
	parts := make([]string, 0, 3)
	if strings.TrimSpace(m.ID) != "" {
		parts = append(parts, strings.TrimSpace(m.ID))
	}
	parts = append(parts, strings.TrimSpace(m.Status))
	progress := strings.TrimSpace(m.Progress)
	if progress == "" && m.ProgressDetail.Total > 0 {
		progress = fmt.Sprintf("%d/%d", m.ProgressDetail.Current, m.ProgressDetail.Total)
	}
	if progress != "" {
		parts = append(parts, progress)
	}
	return strings.Join(parts, " ")
}
