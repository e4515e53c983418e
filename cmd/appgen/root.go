// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for appgen.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

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
)

// newRootCommand builds the command tree bound to app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appgen",
		Short: "Package Jupyter notebook applications as OGC application packages",
		Long: TitleStyle.Render("appgen") + SubtitleStyle.Render(" - OGC application package generator") + `

appgen turns a repository holding a parameterized Jupyter notebook into a
container image, a CWL process description and an application catalog entry.
Each stage records its results in a state directory so the next stage can
pick up where the previous one stopped, in a later invocation.

` + SubtitleStyle.Render("Stages:") + `
  1. init               Localize the application repository
  2. build_docker       Build the application image
  3. push_docker        Push the image to a registry (or push_ecr)
  4. build_cwl          Generate the CWL process and descriptor
  5. push_app_registry  Register the artifacts in the application catalog

` + SubtitleStyle.Render("Examples:") + `
  appgen init https://github.com/org/app.git ./app
  appgen --state_directory ./app/.unity_app_gen build_docker
  appgen parameters
  appgen build_cwl --monolithic`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&app.opts.stateDir, "state_directory", "",
		"application state directory (default is ./"+DefaultStateDirName+")")
	rootCmd.PersistentFlags().BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.opts.configFile, "appgen-config", "",
		"config file (default is $HOME/.config/appgen/config.cue)")

	rootCmd.AddCommand(
		newInitCommand(app),
		newBuildCommand(app),
		newPushCommand(app),
		newPushECRCommand(app),
		newParametersCommand(app),
		newBuildCWLCommand(app),
		newRegisterCommand(app),
		newStateCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process on failure.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(ExitFailure)
	}

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		// Everything else comes from cobra: unknown commands, flags or argument counts.
		os.Exit(ExitUsage)
	}
}

// handleError leaves errors already rendered by a command alone and hands
// cobra usage errors to fang.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
