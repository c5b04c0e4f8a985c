package cli

import (
	"github.com/spf13/cobra"

	"hull/internal/ui"
	"hull/pkg/ident"
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search the cached indexes for packages",
	Long: `List every cached package matching the pattern, newest versions
first. The pattern accepts the same grammar as install:
name, category/name, repo::category/name, each with an optional
#version-requirement.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	pattern, err := ident.ParsePattern(args[0])
	if err != nil {
		return err
	}

	ids, err := hullApp.cache.Query(pattern, hullApp.cfg.RepositoriesOrder)
	if err != nil {
		return err
	}

	ui.PrintSearchResults(ids)
	return nil
}
