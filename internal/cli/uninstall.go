package cli

import (
	"github.com/spf13/cobra"

	"hull/pkg/ident"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>...",
	Short: "Remove one or more packages",
	Long: `Remove the requirement on each named package and merge. Dependencies
that nothing else needs go away with it; a package that another
installed package depends on is refused with the dependent named.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
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
			if err := scratch.RemoveRequirement(ident.RootGroup, pattern); err != nil {
				return err
			}
		}

		return hullApp.runMerge(rootCtx, st, commandLine("uninstall", args), scratch, false)
	})
}
