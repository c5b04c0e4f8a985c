package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
)

var mergeDryRun bool

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Apply the staged scratch changes",
	Long: `Solve the scratch graph, diff it against the current graph, show
the resulting transaction plan and apply it after confirmation. On
success the scratch graph becomes current and the operation is
appended to the log.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: requireAdvanced,
	RunE:              runMergeCmd,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "show the plan without applying it")
}

func runMergeCmd(cmd *cobra.Command, args []string) error {
	return hullApp.withState(func(st *state) error {
		scratch, pending, err := hullApp.loadScratch(st.current)
		if err != nil {
			return err
		}
		if !pending {
			ui.MutedMsg("No pending changes")
			return nil
		}
		return hullApp.runMerge(rootCtx, st, "merge", scratch, mergeDryRun)
	})
}
