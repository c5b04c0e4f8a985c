package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
)

var repositoryCmd = &cobra.Command{
	Use:               "repository",
	Aliases:           []string{"repo"},
	Short:             "Manage repositories",
	PersistentPreRunE: requireAdvanced,
}

var repositoryPullCmd = &cobra.Command{
	Use:   "pull [repository...]",
	Short: "Refresh the index of specific repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doPull(args)
	},
}

var repositoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories and their mirrors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, repo := range hullApp.cache.Repositories() {
			ui.Println("%s", ui.Repository.Sprint(repo.Name))
			for _, mirror := range repo.Mirrors {
				ui.MutedMsg("  %s", mirror)
			}
		}
		return nil
	},
}

func init() {
	repositoryCmd.AddCommand(repositoryPullCmd)
	repositoryCmd.AddCommand(repositoryListCmd)
}
