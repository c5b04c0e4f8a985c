package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [package...]",
	Short: "Upgrade packages to the latest matching versions",
	Long: `Re-solve requirements against the current cache and merge. Without
arguments every requirement is refreshed; with arguments only the
matching ones. Run 'hull pull' first to refresh the cache.`,
	RunE: runUpgrade,
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	return hullApp.withState(func(st *state) error {
		scratch, _, err := hullApp.loadScratch(st.current)
		if err != nil {
			return err
		}

		if err := resetForUpdate(scratch, args); err != nil {
			return err
		}

		return hullApp.runMerge(rootCtx, st, commandLine("upgrade", args), scratch, false)
	})
}

// resetForUpdate clears the fulfillers the update targets so the solver
// re-derives them. Static predicates stay as authored; the automatic
// requirements under a cleared fulfiller are re-derived from whatever
// the solver picks next.
func resetForUpdate(scratch *depgraph.Graph, args []string) error {
	if len(args) == 0 {
		return scratch.ResetGroup(ident.RootGroup)
	}

	patterns, err := parsePatterns(args)
	if err != nil {
		return err
	}
	for _, pattern := range patterns {
		rids := scratch.StaticRequirements(pattern)
		if len(rids) == 0 {
			return fmt.Errorf("no requirement matches %s", pattern)
		}
		for _, rid := range rids {
			scratch.ClearFulfiller(rid)
		}
	}
	return nil
}
