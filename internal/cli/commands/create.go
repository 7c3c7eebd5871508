package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/models"
)

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	var (
		serverAlias string
		form        models.CourseForm
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a course",
		Long: `Create a course.

Every field is optional; blank fields are sent as null.
When no field is given and a terminal is attached, each one is prompted for.

Examples:
  $ cursos create --nome "Go" --descricao "Concurrency" --nota 4.5 --professor "Ana"
  $ cursos create`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !cmd.Flags().Changed("nome") &&
				!cmd.Flags().Changed("descricao") &&
				!cmd.Flags().Changed("nota") &&
				!cmd.Flags().Changed("professor") &&
				stdinIsTerminal()
			return runCreate(cmd.Context(), serverAlias, &form, interactive)
		},
	}

	addServerFlag(cmd, &serverAlias)
	cmd.Flags().StringVar(&form.Nome, "nome", "", "Course name")
	cmd.Flags().StringVar(&form.Descricao, "descricao", "", "Course description")
	cmd.Flags().StringVar(&form.Nota, "nota", "", "Course grade, from 0 to 5")
	cmd.Flags().StringVar(&form.NomeProfessor, "professor", "", "Professor name")

	return cmd
}

func runCreate(ctx context.Context, serverAlias string, form *models.CourseForm, interactive bool, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	if err := a.connect(ctx); err != nil {
		return err
	}

	if interactive {
		if err := promptCourseForm(a.prompter, form); err != nil {
			return err
		}
	}

	created, err := a.courses.CreateCourse(ctx, form)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created course %s\n\n", orDash(created.ID.String()))
	renderCourses(a.out, a.server.Alias, a.courses.State())
	return nil
}

// promptCourseForm fills form field by field
func promptCourseForm(p Prompter, form *models.CourseForm) error {
	fields := []struct {
		label string
		value *string
	}{
		{"Nome", &form.Nome},
		{"Descricao", &form.Descricao},
		{"Nota (0-5)", &form.Nota},
		{"Professor", &form.NomeProfessor},
	}

	for _, field := range fields {
		value, err := p.Input(field.label)
		if err != nil {
			return fmt.Errorf("input cancelled: %w", err)
		}
		*field.value = value
	}
	return nil
}
