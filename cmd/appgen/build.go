// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"appgen-cli/internal/pipeline"

	"github.com/spf13/cobra"
)

// newBuildCommand creates the `appgen build_docker` command.
func newBuildCommand(app *App) *cobra.Command {
	var namespace, repository, tag, configFile string

	cmd := &cobra.Command{
		Use:   "build_docker",
		Short: "Build the application container image",
		Long: `Build the application container image.

A Dockerfile (Dockerfile, binder/Dockerfile or .binder/Dockerfile) is built with
the configured container engine; repositories without one are built with
jupyter-repo2docker. Image name parts not given on the command line come from
the previous build, then from the repository: its owner, its name and the
short hash of its HEAD commit. Pass an empty --namespace to build an image
without a namespace.`,
		Example: `  appgen build_docker
  appgen build_docker -n myorg -r myapp -t v1
  appgen build_docker --config build.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.BuildRequest{
				Namespace:  changed(cmd, "namespace", namespace),
				Repository: changed(cmd, "repository", repository),
				Tag:        changed(cmd, "tag", tag),
				ConfigFile: configFile,
			}
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				return runBuild(ctx, app, s, req)
			})
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "image namespace")
	cmd.Flags().StringVarP(&repository, "repository", "r", "", "image repository")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "image tag")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "build configuration file (.toml or .json)")
	return cmd
}

func runBuild(ctx context.Context, app *App, s *Session, req pipeline.BuildRequest) error {
	orch, err := app.orchestrator(s)
	if err != nil {
		return err
	}
	orch.Source = app.Collaborators.Source(s)
	if orch.Builder, err = app.Collaborators.Builder(ctx, s); err != nil {
		return err
	}

	res, err := orch.BuildImage(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "%s Built image %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(res.Reference))
	return nil
}

// changed returns a pointer to value when the flag was given, nil otherwise,
// so an explicitly empty value is kept apart from an absent one.
func changed(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
