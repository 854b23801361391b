// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"convoy-cli/internal/config"
	"convoy-cli/internal/issue"
	"convoy-cli/internal/manifest"
	"convoy-cli/internal/module"
	"convoy-cli/internal/pipeline"
	"convoy-cli/internal/registry"
	"convoy-cli/modules"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose raises the log level to info and expands error output
	verbose bool
	// debug raises the log level to debug
	debug bool
	// quiet drops everything below errors
	quiet bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// outputPath mirrors log output into a file
	outputPath string
	// modulePaths are extra directories scanned for module manifests
	modulePaths []string
	// retries bounds whole-pipeline restarts; the config file value applies
	// unless the flag was set explicitly (applyGlobals checks Changed)
	retries int
	// listModules prints the discovered modules and exits
	listModules bool
	// showInfo echoes the pipeline command line before running it
	showInfo bool
	// colors toggles styled terminal output
	colors bool

	// rootCmd is the whole CLI: global flags followed by the module chain.
	rootCmd = &cobra.Command{
		Use:   "convoy [global options] module [module options] [module [module options]...]",
		Short: "A modular pipeline runner",
		Long: TitleStyle.Render("convoy") + SubtitleStyle.Render(" - A modular pipeline runner") + `

convoy chains small single-purpose modules into a sequential pipeline.
Modules exchange data through published capabilities instead of files or
pipes, and the whole pipeline tears down cleanly no matter where it fails.

` + SubtitleStyle.Render("Examples:") + `
  convoy --list-modules                       List discovered modules
  convoy -v test-scheduler --environments f42:x86_64 --command 'make test' \
      guest-provision schedule-runner         Schedule, provision, run
  convoy -r 2 cache env-inject --env CI=yes   Retry the pipeline up to twice`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         runRoot,
	}
)

func init() {
	flags := rootCmd.Flags()
	// Everything after the first non-flag token belongs to the modules.
	flags.SetInterspersed(false)

	flags.BoolVarP(&verbose, "verbose", "v", false, "enable info-level output")
	flags.BoolVarP(&debug, "debug", "d", false, "enable debug-level output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	flags.StringVar(&cfgFile, "config", "", "config file (default is the platform config dir, then ./convoy.toml)")
	flags.StringVarP(&outputPath, "output", "o", "", "mirror log output into this file")
	flags.StringSliceVar(&modulePaths, "module-path", nil, "extra directory scanned for module manifests (repeatable)")
	flags.IntVarP(&retries, "retries", "r", 0, "how many times a failed pipeline is restarted")
	flags.BoolVarP(&listModules, "list-modules", "l", false, "list discovered modules (positional args filter groups) and exit")
	flags.BoolVar(&showInfo, "info", false, "log the command line that reproduces this pipeline")
	flags.BoolVar(&colors, "colors", true, "styled terminal output")
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main() exactly once.
func Execute() {
	// fang.Execute for enhanced Cobra styling; version goes through
	// fang.WithVersion since fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// runRoot is the pipeline entry point: load config, discover modules, split
// the module chain, run it, map the outcome to an exit code.
func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return reportFailureAs(cmd, err, issue.ConfigLoadFailedId)
	}
	applyGlobals(cmd, cfg.Global)

	logger, closeLog, err := newLogger(logOptions{
		Debug:   debug,
		Verbose: verbose,
		Quiet:   quiet,
		Output:  outputPath,
	})
	if err != nil {
		return reportFailure(cmd, issue.WrapWithOperation(err, "set up logging"))
	}
	defer closeLog()

	reg := registry.New(logger)
	sources := []registry.Source{registry.NewBuiltinSource(modules.Builtin()...)}
	for _, dir := range modulePaths {
		sources = append(sources, manifest.NewDirSource(dir))
	}
	if err := reg.Discover(cmd.Context(), sources...); err != nil {
		return reportFailure(cmd, err)
	}

	if listModules {
		return printModuleList(cmd.OutOrStdout(), reg, args, colors)
	}
	if len(args) == 0 {
		return cmd.Help()
	}

	requests, err := splitRequests(reg, args)
	if err != nil {
		return reportFailure(cmd, err)
	}
	if showInfo {
		logger.Info("pipeline can be reproduced with",
			"command", "convoy "+describePipeline(requests))
	}

	exec := pipeline.New(reg, config.NewResolver(cfg, logger), logger, retries)
	if err := exec.Run(cmd.Context(), requests); err != nil {
		if module.IsSoft(err) {
			// The failure is the user's to fix, not an infrastructure
			// problem: report it, exit 0.
			logger.Error("pipeline failed (soft)", "error", err)
			fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("warning: ")+err.Error())
			return nil
		}
		return reportFailure(cmd, err)
	}

	logger.Info("pipeline finished")
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" pipeline finished")
	}
	return nil
}

// applyGlobals fills flag-shaped settings from the config file, for every
// flag the user did not set explicitly.
func applyGlobals(cmd *cobra.Command, global config.Global) {
	flags := cmd.Flags()
	if !flags.Changed("verbose") {
		verbose = global.Verbose
	}
	if !flags.Changed("retries") {
		retries = global.Retries
	}
	if !flags.Changed("output") && global.Output != "" {
		outputPath = global.Output
	}
	if !flags.Changed("colors") {
		colors = global.Colors
	}
	modulePaths = append(modulePaths, global.ModulePaths...)
}

// reportFailure prints err for the user, with the matching issue catalog
// guidance below it, and converts it to a non-zero exit.
func reportFailure(cmd *cobra.Command, err error) error {
	return reportFailureAs(cmd, err, classifyFailure(err))
}

// reportFailureAs is reportFailure with the catalog entry chosen by the
// caller, for failures whose class the call site already knows.
func reportFailureAs(cmd *cobra.Command, err error, id issue.Id) error {
	fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	printGuidance(cmd.ErrOrStderr(), id)
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// print their suggestions; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
