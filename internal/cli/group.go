package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

var (
	groupParent string
	groupForce  bool
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage requirement groups",
	Long: `Groups cluster requirements under a name (@project, @toolchain).
Deleting a group that still holds requirements or child groups needs
--force, which removes them with it; like every scratch mutation it
takes effect on the next merge.`,
	PersistentPreRunE: requireAdvanced,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <@name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateScratch(func(scratch *depgraph.Graph) error {
			if err := scratch.CreateGroup(args[0], groupParent); err != nil {
				return err
			}
			ui.InfoMsg("Group %s created under %s", args[0], groupParent)
			return nil
		})
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <@name>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateScratch(func(scratch *depgraph.Graph) error {
			if err := scratch.DeleteGroup(args[0], groupForce); err != nil {
				return err
			}
			ui.InfoMsg("Group %s deleted", args[0])
			return nil
		})
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hullApp.withState(func(st *state) error {
			graph, pending, err := hullApp.loadScratch(st.current)
			if err != nil {
				return err
			}
			if pending {
				ui.MutedMsg("(including unmerged changes)")
			}
			for _, name := range graph.Groups() {
				nid, _ := graph.GroupNode(name)
				node := graph.Node(nid)
				ui.Println("%s  (%d requirements)", ui.GroupName.Sprint(name), len(node.Requirements))
			}
			return nil
		})
	},
}

func init() {
	groupCmd.PersistentFlags().StringVar(&groupParent, "parent", ident.RootGroup, "parent group")
	groupDeleteCmd.Flags().BoolVar(&groupForce, "force", false, "delete the group's requirements too")
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupDeleteCmd)
	groupCmd.AddCommand(groupListCmd)
}
