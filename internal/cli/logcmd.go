package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"hull/internal/tui"
	"hull/internal/ui"
)

var (
	logLimit       int
	logInteractive bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the operation log",
	Long: `List committed operations, newest first, with the plan each one
applied. Use --interactive for a browsable view.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: requireAdvanced,
	RunE:              runLog,
}

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", 20, "number of entries to show (0 for all)")
	logCmd.Flags().BoolVarP(&logInteractive, "interactive", "i", false, "browse the log interactively")
}

func runLog(cmd *cobra.Command, args []string) error {
	return hullApp.withState(func(st *state) error {
		entries, err := st.hist.List(logLimit)
		if err != nil {
			return err
		}

		if logInteractive {
			return tui.RunLogBrowser(entries)
		}

		if len(entries) == 0 {
			ui.MutedMsg("The operation log is empty")
			return nil
		}
		for _, entry := range entries {
			ui.Println("%s  %s  %s", ui.Bold(formatID(entry.ID)), entry.FormatTime(), entry.Command)
			for _, step := range entry.Plan.Steps {
				ui.MutedMsg("    %s", step)
			}
		}
		return nil
	})
}

func formatID(id uint64) string {
	return ui.Cyan(strconv.FormatUint(id, 10))
}
