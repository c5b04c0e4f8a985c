package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hull/internal/ui"
)

var reverseCmd = &cobra.Command{
	Use:   "reverse <id>",
	Short: "Roll back to an earlier operation",
	Long: `Undo every operation newer than the given log id, newest first, by
applying the inverse of each recorded plan. The id itself is kept; the
log is truncated to it. Archives needed to re-install removed packages
must still be available from the cache or a mirror.`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: requireAdvanced,
	RunE:              runReverse,
}

func runReverse(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid operation id %q", args[0])
	}

	if hullApp.hasPendingScratch() {
		return ErrPendingChanges
	}

	return hullApp.withState(func(st *state) error {
		entries, err := st.hist.After(id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			ui.MutedMsg("Nothing to reverse; %d is already the latest operation", id)
			return nil
		}

		ui.HeaderMsg("Operations to reverse")
		for _, entry := range entries {
			ui.Println("  %s", entry.Summary())
		}

		ok, err := hullApp.confirm(fmt.Sprintf("Reverse %d operation(s)?", len(entries)))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}

		if err := st.engine.Reverse(rootCtx, id); err != nil {
			return err
		}
		ui.SuccessMsg("Rolled back to operation %d", id)
		return nil
	})
}
