package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/models"
)

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	var (
		serverAlias string
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "delete <course-id>",
		Short: "Delete a course",
		Long: `Delete a course.

Only administrators may delete courses; the API rejects everyone else.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), serverAlias, args[0], yes)
		},
	}

	addServerFlag(cmd, &serverAlias)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runDelete(ctx context.Context, serverAlias, courseID string, yes bool, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	if err := a.connect(ctx); err != nil {
		return err
	}

	confirm := a.prompter.Confirm
	if yes {
		confirm = func(string) (bool, error) { return true, nil }
	}

	deleted, err := a.courses.DeleteCourse(ctx, models.CourseID(courseID), confirm)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(a.out, "Delete cancelled.")
		return nil
	}

	fmt.Fprintf(a.out, "✓ Deleted course %s\n\n", courseID)
	renderCourses(a.out, a.server.Alias, a.courses.State())
	return nil
}
