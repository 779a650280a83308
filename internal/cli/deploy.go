package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	manifest "github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/config"
	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/environment"
)

func newDeployCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a new test environment from a manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			fmt.Fprintf(cmd.OutOrStdout(), "Deploying %d service(s) from %s...\n", len(specs), file)

			env, deployed, err := svc.Deploy(cmd.Context(), specs, filepath.Dir(file))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("deploy failed, partial environment rolled back"))
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Environment %q deployed", env.ID)))
			names := make([]string, 0, len(deployed))
			for name := range deployed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				svcInfo := deployed[name]
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", name, shortID(svcInfo.ContainerID))
				for _, p := range svcInfo.Ports {
					if p.Host > 0 {
						fmt.Fprintln(cmd.OutOrStdout(), detailStyle.Render(fmt.Sprintf("      port %d -> localhost:%d", p.Container, p.Host)))
					}
				}
				if spec := env.Services[name]; spec.Exposed() {
					host := environment.IngressHost(env.ID, name, cfg.IngressHostSuffix)
					fmt.Fprintln(cmd.OutOrStdout(), detailStyle.Render("      http://"+host))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the environment manifest (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
