// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"appgen-cli/internal/pipeline"

	"github.com/spf13/cobra"
)

// newBuildCWLCommand creates the `appgen build_cwl` command.
func newBuildCWLCommand(app *App) *cobra.Command {
	var req pipeline.GenerateRequest

	cmd := &cobra.Command{
		Use:   "build_cwl",
		Short: "Generate the CWL process and application descriptor",
		Long: `Generate the CWL process and application descriptor.

The process runs the notebook with papermill inside the application image:
the image given with --image-url, else the pushed image, else the local build.
Artifacts are written to --output, else to the directory of the previous run,
else to the cwl directory of the state directory. With --monolithic, STAC
stage-in and stage-out steps and a wrapping workflow are generated as well.`,
		Example: `  appgen build_cwl
  appgen build_cwl -o ./artifacts -u ghcr.io/myorg/myapp:v1
  appgen build_cwl --monolithic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				orch, err := app.orchestrator(s)
				if err != nil {
					return err
				}
				orch.Source = app.Collaborators.Source(s)
				orch.Generator = app.Collaborators.Generator(s)

				res, err := orch.GenerateArtifacts(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.Stdout, "%s Generated artifacts in %s for %s\n",
					SuccessStyle.Render("✓"), CmdStyle.Render(res.OutputDir), res.Image)
				for _, f := range res.Files {
					fmt.Fprintf(s.Stdout, "  %s\n", f)
				}
				fmt.Fprintf(s.Stdout, "  %s\n", res.RoutingFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.OutputDir, "output", "o", "", "artifact output directory")
	cmd.Flags().StringVarP(&req.ImageURL, "image-url", "u", "", "container image the process runs in")
	cmd.Flags().BoolVar(&req.Monolithic, "monolithic", false, "add STAC staging steps and a wrapping workflow")
	return cmd
}
