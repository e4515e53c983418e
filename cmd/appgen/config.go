// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"appgen-cli/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `appgen config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage appgen configuration",
		Long: `Manage appgen configuration.

Configuration is stored in:
  - Linux: ~/.config/appgen/config.cue
  - macOS: ~/Library/Application Support/appgen/config.cue
  - Windows: %APPDATA%\appgen\config.cue

Every key can be overridden with an ` + config.EnvPrefix + `_ environment variable, for
example ` + config.EnvPrefix + `_CONTAINER_ENGINE=podman or ` + config.EnvPrefix + `_PUSH_MAX_ATTEMPTS=5.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(contextOf(cmd), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Save(config.DefaultConfig())
			if err != nil {
				return app.fail(err, app.opts.verbose, false)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.opts.configFile != "" {
				fmt.Fprintf(app.stdout, "Config file: %s\n", app.opts.configFile)
				return nil
			}
			dir, err := config.Dir()
			if err != nil {
				return app.fail(err, app.opts.verbose, false)
			}
			path, err := config.DefaultPath()
			if err != nil {
				return app.fail(err, app.opts.verbose, false)
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.Config.Load(contextOf(cmd), config.LoadOptions{ConfigFilePath: app.opts.configFile})
			if err != nil {
				return app.fail(err, app.opts.verbose, app.opts.verbose)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: app.opts.configFile})
	if err != nil {
		return app.fail(err, app.opts.verbose, true)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	out := app.stdout

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if path != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("container_engine"), valueStyle.Render(cfg.ContainerEngine.String()))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("build"))
	fmt.Fprintf(out, "  repo2docker_binary: %s\n", valueStyle.Render(cfg.Build.Repo2DockerBinary))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("push"))
	fmt.Fprintf(out, "  max_attempts: %s\n", valueStyle.Render(fmt.Sprintf("%d", cfg.Push.MaxAttempts)))
	fmt.Fprintf(out, "  backoff: %s\n", valueStyle.Render(cfg.Push.Backoff.String()))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ecr"))
	if cfg.ECR.Region == "" {
		fmt.Fprintf(out, "  region: %s\n", SubtitleStyle.Render("(from AWS configuration)"))
	} else {
		fmt.Fprintf(out, "  region: %s\n", valueStyle.Render(cfg.ECR.Region))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("cwl"))
	fmt.Fprintf(out, "  notebook_dir: %s\n", valueStyle.Render(cfg.CWL.NotebookDir))
	fmt.Fprintf(out, "  stage_image: %s\n", valueStyle.Render(cfg.CWL.StageImage))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("catalog"))
	fmt.Fprintf(out, "  api_url: %s\n", valueStyle.Render(cfg.Catalog.APIURL))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
