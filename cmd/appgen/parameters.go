// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"appgen-cli/internal/pipeline"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// newParametersCommand creates the `appgen parameters` command.
func newParametersCommand(app *App) *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "parameters",
		Short: "List the parameters declared by the application notebook",
		Long: `List the parameters declared by the application notebook.

Parameters are the assignments of the notebook cell tagged "parameters".
Names starting with output_ are process outputs; every other name is an input.
The state is not modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				orch, err := app.orchestrator(s)
				if err != nil {
					return err
				}
				orch.Source = app.Collaborators.Source(s)
				orch.Generator = app.Collaborators.Generator(s)

				params, err := orch.NotebookParameters(ctx)
				if err != nil {
					return err
				}

				table := parametersMarkdown(params)
				if markdown {
					fmt.Fprint(s.Stdout, table)
					return nil
				}
				renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
				if err != nil {
					return fmt.Errorf("create markdown renderer: %w", err)
				}
				out, err := renderer.Render(table)
				if err != nil {
					return fmt.Errorf("render parameters: %w", err)
				}
				fmt.Fprint(s.Stdout, out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the parameter table as raw markdown")
	return cmd
}

// parametersMarkdown renders params as a markdown table.
func parametersMarkdown(params []pipeline.Parameter) string {
	var sb strings.Builder
	sb.WriteString("# Notebook parameters\n\n")
	if len(params) == 0 {
		sb.WriteString("The parameters cell declares no parameters.\n")
		return sb.String()
	}

	sb.WriteString("| Name | Direction | Type | Default | Description |\n")
	sb.WriteString("|------|-----------|------|---------|-------------|\n")
	for _, p := range params {
		direction := "input"
		if p.Output {
			direction = "output"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			cell(p.Name), direction, cell(p.Type), cell(p.Default), cell(p.Description))
	}
	return sb.String()
}

func cell(s string) string {
	if s == "" {
		return " "
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
