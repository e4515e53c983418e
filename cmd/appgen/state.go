// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"appgen-cli/internal/state"

	"github.com/spf13/cobra"
)

// newStateCommand creates the `appgen state` command tree.
func newStateCommand(app *App) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the application state",
		Long: `Inspect the application state.

The state directory holds ` + state.RecordFileName + `, the record every stage reads its
inputs from and writes its results to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show every recorded value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(_ context.Context, s *Session) error {
				store, err := loadStore(app, s)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(s.Stdout)
					enc.SetIndent("", "    ")
					return enc.Encode(store.Snapshot())
				}
				return showState(s, store)
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	stateCmd.AddCommand(show)

	stateCmd.AddCommand(&cobra.Command{
		Use:       "get <name>",
		Short:     "Print one recorded value",
		Long:      "Print one recorded value, or null when the value is unset.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: fieldNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(_ context.Context, s *Session) error {
				store, err := loadStore(app, s)
				if err != nil {
					return err
				}
				value, err := store.Get(state.Field(args[0]))
				if err != nil {
					return err
				}
				if value == nil {
					fmt.Fprintln(s.Stdout, "null")
					return nil
				}
				fmt.Fprintln(s.Stdout, *value)
				return nil
			})
		},
	})

	var unset bool
	set := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Change one recorded value",
		Long: `Change one recorded value, or clear it with --unset.

` + state.FieldAppBasePath.String() + ` and ` + state.FieldSourceRepository.String() + ` are fixed when the state is created.`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: fieldNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unset == (len(args) == 2) {
				return fmt.Errorf("pass either a value or --unset")
			}
			return app.run(cmd, func(_ context.Context, s *Session) error {
				store, err := loadStore(app, s)
				if err != nil {
					return err
				}
				var value *string
				if !unset {
					value = &args[1]
				}
				if err := store.Set(state.Field(args[0]), value); err != nil {
					return err
				}
				s.Logger.Debug("state value changed", "name", args[0], "unset", unset)
				fmt.Fprintf(s.Stdout, "%s Updated %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
				return nil
			})
		},
	}
	set.Flags().BoolVar(&unset, "unset", false, "clear the value")
	stateCmd.AddCommand(set)

	return stateCmd
}

func loadStore(app *App, s *Session) (*state.Store, error) {
	orch, err := app.orchestrator(s)
	if err != nil {
		return nil, err
	}
	return orch.Load()
}

func showState(s *Session, store *state.Store) error {
	fmt.Fprintln(s.Stdout, TitleStyle.Render("Application State"))
	fmt.Fprintln(s.Stdout)
	fmt.Fprintf(s.Stdout, "%s: %s\n", CmdStyle.Render("Record file"), store.Path())
	fmt.Fprintln(s.Stdout)

	for _, field := range state.Fields() {
		value, err := store.Get(field)
		if err != nil {
			return err
		}
		rendered := SubtitleStyle.Render("(unset)")
		if value != nil {
			rendered = SuccessStyle.Render(*value)
		}
		fmt.Fprintf(s.Stdout, "%s: %s\n", CmdStyle.Render(field.String()), rendered)
	}
	return nil
}

func fieldNames() []string {
	fields := state.Fields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.String())
	}
	return names
}
