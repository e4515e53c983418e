// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"appgen-cli/internal/pipeline"

	"github.com/spf13/cobra"
)

// newPushCommand creates the `appgen push_docker` command.
func newPushCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push_docker <registry>",
		Short: "Push the built image to a container registry",
		Long: `Push the built image to a container registry.

The registry is a host, optionally followed by a path prefix. The image keeps
the repository and tag of the build. Transient registry failures are retried
(see push.max_attempts and push.backoff in 'appgen config show').`,
		Example: `  appgen push_docker registry.example.com
  appgen push_docker ghcr.io/myorg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := args[0]
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				orch, err := app.orchestrator(s)
				if err != nil {
					return err
				}
				if orch.Pusher, err = app.Collaborators.Pusher(ctx, s); err != nil {
					return err
				}
				res, err := orch.PushImage(ctx, registry)
				if err != nil {
					return err
				}
				printPushed(s, res)
				return nil
			})
		},
	}
}

// newPushECRCommand creates the `appgen push_ecr` command.
func newPushECRCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push_ecr",
		Short: "Push the built image to Amazon ECR",
		Long: `Push the built image to Amazon ECR.

The ECR repository named after the image namespace and repository is created
when it does not exist yet, and the container engine is logged into the
registry with credentials from the AWS shared configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				orch, err := app.orchestrator(s)
				if err != nil {
					return err
				}
				if orch.Pusher, err = app.Collaborators.Pusher(ctx, s); err != nil {
					return err
				}
				if orch.Cloud, err = app.Collaborators.Cloud(ctx, s); err != nil {
					return err
				}
				res, err := orch.PushCloudRegistry(ctx)
				if err != nil {
					return err
				}
				printPushed(s, res)
				return nil
			})
		},
	}
}

func printPushed(s *Session, res pipeline.PushResult) {
	fmt.Fprintf(s.Stdout, "%s Pushed image %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(res.URL))
}
