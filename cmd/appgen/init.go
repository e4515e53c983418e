// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"appgen-cli/internal/pipeline"

	"github.com/spf13/cobra"
)

// newInitCommand creates the `appgen init` command.
func newInitCommand(app *App) *cobra.Command {
	var checkout string

	cmd := &cobra.Command{
		Use:   "init <source> [destination]",
		Short: "Localize the application repository and create the state directory",
		Long: `Localize the application repository and create the state directory.

The source is a local directory or a git clone URL. A remote source is cloned
into the destination, or into a directory named after the repository when no
destination is given. A local directory without a destination is used in place.

The state directory defaults to <destination>/` + DefaultStateDirName + ` when a destination
is given. Running init again on an existing state directory refreshes the
checkout but never changes the recorded source.`,
		Example: `  appgen init https://github.com/org/app.git ./app
  appgen init ./my-notebook-app
  appgen init https://github.com/org/app.git ./app --checkout v1.2.0`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.InitRequest{Source: args[0], Revision: checkout}
			if len(args) > 1 {
				req.Destination = args[1]
			}
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				return runInit(ctx, app, s, req)
			})
		},
	}

	cmd.Flags().StringVarP(&checkout, "checkout", "c", "", "branch, tag or commit to check out")
	return cmd
}

func runInit(ctx context.Context, app *App, s *Session, req pipeline.InitRequest) error {
	dir, err := app.stateDir(req.Destination)
	if err != nil {
		return err
	}
	orch := &pipeline.Orchestrator{
		StateDir: dir,
		Source:   app.Collaborators.Source(s),
		Logger:   s.Logger,
	}

	res, err := orch.Initialize(ctx, req)
	if err != nil {
		return err
	}

	verb := "Refreshed"
	if res.Created {
		verb = "Initialized"
	}
	fmt.Fprintf(s.Stdout, "%s %s application state in %s\n", SuccessStyle.Render("✓"), verb, CmdStyle.Render(res.StateDir))
	fmt.Fprintf(s.Stdout, "  %s %s\n", VerboseStyle.Render("source:     "), res.SourceRepository)
	fmt.Fprintf(s.Stdout, "  %s %s\n", VerboseStyle.Render("application:"), res.AppBasePath)
	return nil
}
