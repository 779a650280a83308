// Package cli implements the autotest command surface: deploy, teardown,
// and monitor against a local container engine.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/docker"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/config"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/pkg/logger"
)

// Execute runs the root command with the process context. It only needs to
// happen once, from main.
func Execute(ctx context.Context, version string) {
	root := newRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		// Cobra already printed the error; exit non-zero.
		os.Exit(1)
	}
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "autotest",
		Short: "Provision and supervise disposable container test environments",
		Long: `autotest deploys short-lived, multi-container test environments from a
YAML manifest, monitors their health, restarts failing services, and
scales them under CPU load. Environments are tracked purely through
labels on the container engine, so there is no database to lose.`,
		// Errors from failed deploys/teardowns are reported by us; the
		// usage text would only add noise.
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate(`{{printf "autotest version %s\n" .Version}}`)

	root.AddCommand(newDeployCmd())
	root.AddCommand(newTeardownCmd())
	root.AddCommand(newMonitorCmd())
	return root
}

// newAgent wires the pieces every command needs: settings from the
// environment, a logger, and a Docker-backed runtime.
func newAgent() (config.AgentConfig, *slog.Logger, *docker.Client, error) {
	cfg := config.LoadAgentConfig()
	log := logger.New("autotest", parseLevel(cfg.LogLevel))
	rt, err := docker.New(cfg.DockerHost)
	if err != nil {
		return config.AgentConfig{}, nil, nil, err
	}
	return cfg, log, rt, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
