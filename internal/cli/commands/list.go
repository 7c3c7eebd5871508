package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), serverAlias)
		},
	}

	addServerFlag(cmd, &serverAlias)

	return cmd
}

func runList(ctx context.Context, serverAlias string, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	// Restoring the session loads the list
	if err := a.connect(ctx); err != nil {
		return err
	}

	renderCourses(a.out, a.server.Alias, a.courses.State())
	return a.stateError()
}
