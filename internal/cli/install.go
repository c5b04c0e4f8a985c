package cli

import (
	"github.com/spf13/cobra"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install one or more packages",
	Long: `Add a requirement on each named package and merge: the solver picks
the latest matching versions, dependencies are added automatically, and
the resulting plan is applied after confirmation.

Examples:
  hull install dash                  # Latest dash from any repository
  hull install 'gcc#>=8'             # Constrain the version
  hull install stable::shell/dash    # Pin repository and category`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	patterns, err := parsePatterns(args)
	if err != nil {
		return err
	}

	return hullApp.withState(func(st *state) error {
		scratch, _, err := hullApp.loadScratch(st.current)
		if err != nil {
			return err
		}

		for _, pattern := range patterns {
			if _, err := scratch.AddRequirement(ident.RootGroup, pattern, depgraph.KindStatic); err != nil {
				return err
			}
		}

		return hullApp.runMerge(rootCtx, st, commandLine("install", args), scratch, false)
	})
}
