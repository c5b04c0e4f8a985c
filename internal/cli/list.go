package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/installed"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Long:  `Show every installed package with its version and file count, read from the installed manifests.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifests, err := installed.NewStore(hullApp.cfg.Paths.Installed).List()
		if err != nil {
			return err
		}
		ui.PrintInstalled(manifests)
		return nil
	},
}
