package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/depgraph"
)

var downloadCmd = &cobra.Command{
	Use:   "download <package>...",
	Short: "Download package archives without installing them",
	Long: `Fetch and verify the archives of the latest packages matching each
pattern into the download directory, without touching the install root.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	patterns, err := parsePatterns(args)
	if err != nil {
		return err
	}

	var plan depgraph.Plan
	for _, pattern := range patterns {
		ids, err := hullApp.cache.Query(pattern, hullApp.cfg.RepositoriesOrder)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no package matches %s", pattern)
		}
		plan.Steps = append(plan.Steps, depgraph.InstallStep(ids[0]))
	}

	return hullApp.withState(func(st *state) error {
		var dir string
		err := ui.WithSpinner("Downloading archives", func() error {
			var err error
			dir, err = st.engine.Download(rootCtx, plan)
			return err
		})
		if err != nil {
			return err
		}
		ui.InfoMsg("Archives staged in %s", dir)
		return nil
	})
}
