package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

var requirementParent string

var requirementCmd = &cobra.Command{
	Use:     "requirement",
	Aliases: []string{"req"},
	Short:   "Manage requirements on the scratch graph",
	Long: `Stage requirement changes without applying them. Changes accumulate
on the scratch graph until 'hull merge' turns them into a transaction.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAdvanced(cmd, args); err != nil {
			return err
		}
		return ident.ValidateGroupName(requirementParent)
	},
}

var requirementAddCmd = &cobra.Command{
	Use:   "add <package>...",
	Short: "Add requirements to a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateScratch(func(scratch *depgraph.Graph) error {
			patterns, err := parsePatterns(args)
			if err != nil {
				return err
			}
			for _, pattern := range patterns {
				if _, err := scratch.AddRequirement(requirementParent, pattern, depgraph.KindStatic); err != nil {
					return err
				}
				ui.InfoMsg("Requirement %s added to %s", pattern, requirementParent)
			}
			return nil
		})
	},
}

var requirementRemoveCmd = &cobra.Command{
	Use:   "remove <package>...",
	Short: "Remove requirements from a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateScratch(func(scratch *depgraph.Graph) error {
			patterns, err := parsePatterns(args)
			if err != nil {
				return err
			}
			for _, pattern := range patterns {
				if err := scratch.RemoveRequirement(requirementParent, pattern); err != nil {
					return err
				}
				ui.InfoMsg("Requirement %s removed from %s", pattern, requirementParent)
			}
			return nil
		})
	},
}

var requirementUpdateCmd = &cobra.Command{
	Use:   "update [package...]",
	Short: "Re-solve requirements against the current cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateScratch(func(scratch *depgraph.Graph) error {
			if err := resetForUpdate(scratch, args); err != nil {
				return err
			}
			ui.InfoMsg("Requirements marked for update; run merge to apply")
			return nil
		})
	},
}

func init() {
	requirementCmd.PersistentFlags().StringVar(&requirementParent, "parent", ident.RootGroup, "group holding the requirement")
	requirementCmd.AddCommand(requirementAddCmd)
	requirementCmd.AddCommand(requirementRemoveCmd)
	requirementCmd.AddCommand(requirementUpdateCmd)
}

// mutateScratch loads the pending scratch graph (or clones current),
// applies fn and persists the result for a later merge.
func mutateScratch(fn func(*depgraph.Graph) error) error {
	return hullApp.withState(func(st *state) error {
		scratch, _, err := hullApp.loadScratch(st.current)
		if err != nil {
			return err
		}
		if err := fn(scratch); err != nil {
			return err
		}
		return hullApp.saveScratch(scratch)
	})
}
