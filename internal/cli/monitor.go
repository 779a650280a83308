package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	manifest "github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/config"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/domain"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/environment"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/monitor"
)

func newMonitorCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "monitor ENV_NAME",
		Short: "Watch an environment, restarting and scaling services until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID := args[0]

			specs, err := manifest.Load(file)
			if err != nil {
				return err
			}

			cfg, log, rt, err := newAgent()
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := environment.New(rt, log, cfg)
			deployed, err := svc.Rebuild(cmd.Context(), envID)
			if err != nil {
				if errors.Is(err, environment.ErrEnvironmentNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("No environment named %q was found", envID)))
				}
				return err
			}

			env := domain.Environment{
				ID:          envID,
				Services:    specs,
				NetworkName: environment.NetworkName(envID),
			}
			ctrl := monitor.NewController(rt, log, cfg, env, deployed)

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Monitoring environment %q (ctrl-c to stop)", envID)))

			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return ctrl.Run(ctx)
			})
			if cfg.MetricsAddr != "" {
				group.Go(func() error {
					return serveMetrics(ctx, cfg.MetricsAddr)
				})
			}
			return group.Wait()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the environment manifest (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// serveMetrics exposes prometheus counters for the reconciliation loop and
// shuts down cleanly when the monitor stops.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
