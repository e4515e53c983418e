// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"appgen-cli/internal/catalog"
	"appgen-cli/internal/config"
	"appgen-cli/internal/issue"

	"github.com/spf13/cobra"
)

// CatalogTokenEnv holds the catalog token when --token is not given.
const CatalogTokenEnv = config.EnvPrefix + "_CATALOG_TOKEN"

// newRegisterCommand creates the `appgen push_app_registry` command.
func newRegisterCommand(app *App) *cobra.Command {
	var apiURL, token string

	cmd := &cobra.Command{
		Use:   "push_app_registry",
		Short: "Register the generated artifacts in the application catalog",
		Long: `Register the generated artifacts in the application catalog.

An application already registered under the repository name receives the
artifacts as a new version. Otherwise a new entry is registered, its
identifier recorded in the state, and the entry published.

The token is read from --token, else from the ` + CatalogTokenEnv + ` environment variable.`,
		Example: `  appgen push_app_registry --token "$DOCKSTORE_TOKEN"
  appgen push_app_registry --api-url https://dockstore.example.org/api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, s *Session) error {
				orch, err := app.orchestrator(s)
				if err != nil {
					return err
				}

				url := apiURL
				if url == "" {
					url = s.Config.Catalog.APIURL
				}
				if token == "" {
					token = os.Getenv(CatalogTokenEnv)
				}
				if token == "" {
					return issue.NewErrorContext().
						WithOperation("register application").
						WithResource(url).
						WithSuggestion("Pass --token or set " + CatalogTokenEnv).
						WithIssue(issue.CatalogTokenMissingId).
						Wrap(catalog.ErrMissingToken).
						BuildError()
				}
				if orch.Catalog, err = app.Collaborators.Catalog(s, url, token); err != nil {
					return err
				}

				res, err := orch.Register(ctx)
				if err != nil {
					return err
				}
				verb := "Updated"
				if res.Created {
					verb = "Registered"
				}
				fmt.Fprintf(s.Stdout, "%s %s %s in the application catalog (id %s)\n",
					SuccessStyle.Render("✓"), verb, CmdStyle.Render(res.Name), res.ID)
				for _, f := range res.Files {
					fmt.Fprintf(s.Stdout, "  %s\n", f)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "application catalog API URL (default from catalog.api_url)")
	cmd.Flags().StringVar(&token, "token", "", "application catalog API token")
	return cmd
}
