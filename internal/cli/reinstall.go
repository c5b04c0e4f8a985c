package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/depgraph"
	"hull/pkg/installed"
)

var reinstallCmd = &cobra.Command{
	Use:   "reinstall <package>...",
	Short: "Re-apply the installed version of packages",
	Long: `Download and re-extract the exact installed version of each named
package, repairing files that were damaged or removed on disk. The
dependency graph is unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReinstall,
}

func runReinstall(cmd *cobra.Command, args []string) error {
	patterns, err := parsePatterns(args)
	if err != nil {
		return err
	}

	return hullApp.withState(func(st *state) error {
		manifests, err := installed.NewStore(hullApp.cfg.Paths.Installed).List()
		if err != nil {
			return err
		}

		var plan depgraph.Plan
		for _, pattern := range patterns {
			found := false
			for _, m := range manifests {
				if pattern.MatchName(m.ID) {
					plan.Steps = append(plan.Steps, depgraph.ReplaceStep(m.ID, m.ID))
					found = true
				}
			}
			if !found {
				return fmt.Errorf("%s is not installed", pattern)
			}
		}

		ui.PrintPlan(plan)
		ok, err := hullApp.confirm("Reinstall these packages?")
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}

		_, err = st.engine.Run(rootCtx, commandLine("reinstall", args), plan, st.current)
		if err != nil {
			return err
		}
		ui.SuccessMsg("Reinstalled %d package(s)", len(plan.Steps))
		return nil
	})
}
