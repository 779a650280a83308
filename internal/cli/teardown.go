package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/service/environment"
)

func newTeardownCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "teardown ENV_NAME",
		Short: "Destroy a test environment and all of its resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID := args[0]

			if !yes {
				ok, err := confirmTeardown(cmd, envID)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			cfg, log, rt, err := newAgent()
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := environment.New(rt, log, cfg)
			if err := svc.Teardown(cmd.Context(), envID); err != nil {
				if errors.Is(err, environment.ErrEnvironmentNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("No environment named %q was found", envID)))
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Environment %q destroyed", envID)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirmTeardown asks before destroying. Without a terminal on stdin
// (CI, pipes) there is nobody to ask, so the operation proceeds as if
// confirmed. Scripted callers pass --yes to be explicit.
func confirmTeardown(cmd *cobra.Command, envID string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Permanently delete environment %q and its volumes? [y/N]: ", envID)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
