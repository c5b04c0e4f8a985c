package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hull/internal/history"
	"hull/internal/ui"
	"hull/pkg/cache"
	"hull/pkg/depgraph"
)

var pullCmd = &cobra.Command{
	Use:   "pull [repository...]",
	Short: "Refresh the cached repository indexes",
	Long: `Contact each repository's mirrors in order and replace the local
index with the fetched one. Without arguments every configured
repository is pulled; other repositories are still attempted when one
fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doPull(args)
	},
}

func doPull(repos []string) error {
	var results []cache.PullResult
	err := ui.WithSpinner("Pulling repositories", func() error {
		var err error
		results, err = hullApp.cache.Pull(rootCtx, repos...)
		return err
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			ui.ErrorMsg("%s: %v", r.Repository, r.Err)
		} else {
			ui.SuccessMsg("%s updated", r.Repository)
		}
	}

	if failed < len(results) {
		// At least one index changed; that is an operation worth a log
		// entry, and a pivot reverse can land on.
		err := hullApp.withState(func(st *state) error {
			entry, err := history.NewEntry(commandLine("pull", repos), depgraph.Plan{}, st.current)
			if err != nil {
				return err
			}
			return st.hist.Append(entry)
		})
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed to pull", failed, len(results))
	}
	return nil
}
