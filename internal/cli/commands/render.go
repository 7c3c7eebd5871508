package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/cursos-dev/cursos/internal/courses"
	"github.com/cursos-dev/cursos/internal/models"
)

// renderCourses prints the controller state as a table
func renderCourses(w io.Writer, serverAlias string, state courses.State) {
	if state.Loading {
		fmt.Fprintln(w, "Loading courses...")
		return
	}

	if state.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", state.Error)
	}

	if len(state.Courses) == 0 {
		fmt.Fprintln(w, "No courses found.")
		fmt.Fprintln(w, "\nCreate a course with: cursos create --nome <name>")
		return
	}

	fmt.Fprintf(w, "Courses on %s:\n\n", serverAlias)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOME\tDESCRICAO\tNOTA\tPROFESSOR")
	fmt.Fprintln(tw, "──\t────\t─────────\t────\t─────────")

	for _, course := range state.Courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			orDash(course.ID.String()),
			text(course.Nome),
			text(course.Descricao),
			score(course.Nota),
			text(course.NomeProfessor),
		)
	}

	tw.Flush()
}

// courseLabel is the one-line description used in menus
func courseLabel(course models.Course) string {
	return fmt.Sprintf("%s  %s (%s)", orDash(course.ID.String()), text(course.Nome), text(course.NomeProfessor))
}

func text(s *string) string {
	if s == nil {
		return "-"
	}
	return orDash(*s)
}

func score(n *float64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatFloat(*n, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
