// Package cli implements the command-line interface for hull.
package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hull/internal/config"
	"hull/internal/ui"
	"hull/pkg/archive"
	"hull/pkg/cache"
	"hull/pkg/fetch"
)

var (
	// Global flags
	cfgFile   string
	assumeYes bool
	assumeNo  bool
	verbose   bool
	noColor   bool

	// Global state
	hullApp *app
	rootCtx context.Context
)

// Build metadata - set at build time via ldflags
var (
	Version   = "0.3.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hull",
	Short: "Dependency-based package manager",
	Long: `Hull installs, upgrades and removes packages on an install root,
resolving dependencies between them. Every filesystem-mutating batch of
work is recorded in an operation log and can be rolled back with
'hull reverse'.

The basic commands (install, uninstall, upgrade, search, list, pull)
cover everyday use. With training_wheels disabled in the configuration,
the advanced front-end exposes the underlying machinery: requirements,
groups, merge, and the operation log.

Examples:
  hull pull                     # Refresh repository indexes
  hull install dash             # Install a package and its dependencies
  hull upgrade                  # Upgrade everything
  hull reverse 531              # Roll back to operation 531`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes to all prompts")
	rootCmd.PersistentFlags().BoolVarP(&assumeNo, "no", "n", false, "assume no to all prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(reinstallCmd)
	rootCmd.AddCommand(requirementCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(repositoryCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(reverseCmd)
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, ErrAborted) {
		ui.ErrorMsg("%v", err)
	}
	if errors.Is(err, ErrAborted) {
		ui.MutedMsg("Aborted")
	}
	return err
}

// initializeApp sets up the application state.
func initializeApp() error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if verbose {
		cfg.Output.Verbose = true
	}
	if noColor {
		cfg.Output.Color = false
	}

	ui.Init(cfg.ShouldUseColor(), cfg.Output.Unicode)

	logger := zap.NewNop()
	if cfg.Output.Verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}

	fetcher := fetch.NewHTTPFetcher()
	hullApp = &app{
		cfg:    cfg,
		logger: logger,
		fetch:  fetcher,
		reader: archive.NewTarGz(),
		cache: cache.New(cfg.Paths.Available, cfg.CacheRepositories(), fetcher,
			cache.WithLogger(logger)),
	}
	return nil
}

// requireAdvanced gates the advanced front-end behind training_wheels.
func requireAdvanced(cmd *cobra.Command, args []string) error {
	if hullApp.cfg.TrainingWheels {
		return ErrAdvancedCommand
	}
	return nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print hull version",
	Run: func(cmd *cobra.Command, args []string) {
		ui.InfoMsg("hull version %s", Version)
		if Commit != "unknown" {
			ui.MutedMsg("  Commit: %s", Commit)
		}
		if BuildTime != "unknown" {
			ui.MutedMsg("  Built:  %s", BuildTime)
		}
	},
}
