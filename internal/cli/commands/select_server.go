package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/cli/config"
	"github.com/cursos-dev/cursos/internal/cli/serverselect"
	"github.com/cursos-dev/cursos/internal/cli/userconfig"
	runtimeconfig "github.com/cursos-dev/cursos/internal/config"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Select the server to use for commands",
		Long: `Select the server to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ cursos select-server                           # Interactive selection
  $ cursos select-server https://api.example.com   # Select by URL
  $ cursos select-server production                # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(urlOrAlias)
		},
	}

	return cmd
}

func runSelectServer(urlOrAlias string) error {
	rt, err := runtimeconfig.Load()
	if err != nil {
		return err
	}

	cfg, err := config.LoadFrom(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'cursos init' to create a configuration file", err)
	}

	var server *config.Server

	if urlOrAlias != "" {
		server, err = serverselect.GetServerByURLOrAlias(cfg, urlOrAlias)
		if err != nil {
			return err
		}
	} else {
		server, err = serverselect.PromptServerSelection(cfg)
		if err != nil {
			return err
		}
	}

	if err := userconfig.SetSelectedServer(server.Alias); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Printf("Selected server: %s (%s)\n", server.Alias, server.URL)
	return nil
}
