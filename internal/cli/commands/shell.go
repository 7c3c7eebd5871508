package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/models"
)

// NewShellCmd creates the shell command
func NewShellCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Browse and manage courses interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), serverAlias)
		},
	}

	addServerFlag(cmd, &serverAlias)

	return cmd
}

type menuItem struct {
	label string
	run   func(ctx context.Context) (quit bool, err error)
}

func runShell(ctx context.Context, serverAlias string, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	if err := a.session.Sync(ctx); err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	for {
		if _, ok := a.session.Token(); ok {
			renderCourses(a.out, a.server.Alias, a.courses.State())
		} else {
			fmt.Fprintf(a.out, "Not signed in to %s.\n", a.server.Alias)
		}
		fmt.Fprintln(a.out)

		items := a.menu()
		labels := make([]string, len(items))
		for i, item := range items {
			labels[i] = item.label
		}

		index, err := a.prompter.Select("What next?", labels)
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		quit, err := items[index].run(ctx)
		// Controller failures are already part of the rendered state
		if err != nil && err.Error() != a.courses.State().Error {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// menu lists the actions available to the current session. Deleting is
// offered to administrators only.
func (a *app) menu() []menuItem {
	quit := menuItem{label: "Quit", run: func(context.Context) (bool, error) { return true, nil }}

	if _, ok := a.session.Token(); !ok {
		return []menuItem{
			{label: "Log in", run: a.shellLogin},
			quit,
		}
	}

	items := []menuItem{
		{label: "Reload courses", run: a.shellReload},
		{label: "Create course", run: a.shellCreate},
	}
	if a.session.IsAdmin() {
		items = append(items, menuItem{label: "Delete course", run: a.shellDelete})
	}
	return append(items,
		menuItem{label: "Who am I", run: a.shellWhoami},
		menuItem{label: "Log out", run: a.shellLogout},
		quit,
	)
}

func (a *app) shellLogin(ctx context.Context) (bool, error) {
	if err := a.session.SignIn(ctx); err != nil {
		return false, fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintln(a.out, "✓ Login successful!")
	return false, nil
}

func (a *app) shellReload(ctx context.Context) (bool, error) {
	return false, a.courses.ListCourses(ctx)
}

func (a *app) shellCreate(ctx context.Context) (bool, error) {
	var form models.CourseForm
	if err := promptCourseForm(a.prompter, &form); err != nil {
		return false, err
	}

	created, err := a.courses.CreateCourse(ctx, &form)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(a.out, "✓ Created course %s\n", orDash(created.ID.String()))
	return false, nil
}

func (a *app) shellDelete(ctx context.Context) (bool, error) {
	list := a.courses.State().Courses
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No courses to delete.")
		return false, nil
	}

	labels := make([]string, 0, len(list)+1)
	for _, course := range list {
		labels = append(labels, courseLabel(course))
	}
	labels = append(labels, "Cancel")

	index, err := a.prompter.Select("Delete which course?", labels)
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, err
	}
	if index == len(list) {
		return false, nil
	}

	id := list[index].ID
	deleted, err := a.courses.DeleteCourse(ctx, id, a.prompter.Confirm)
	if err != nil {
		return false, err
	}
	if deleted {
		fmt.Fprintf(a.out, "✓ Deleted course %s\n", id)
	} else {
		fmt.Fprintln(a.out, "Delete cancelled.")
	}
	return false, nil
}

func (a *app) shellWhoami(ctx context.Context) (bool, error) {
	printProfile(ctx, a)
	return false, nil
}

func (a *app) shellLogout(ctx context.Context) (bool, error) {
	if err := a.session.SignOut(ctx); err != nil {
		return false, fmt.Errorf("logout failed: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Logged out of %s\n", a.server.Alias)
	return false, nil
}
