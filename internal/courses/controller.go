package courses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cursos-dev/cursos/internal/cli/client"
	"github.com/cursos-dev/cursos/internal/models"
)

// ErrNotAuthenticated is returned when an operation runs without a bearer token
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'cursos login' first")

// ErrAdminRequired is the message shown when the API refuses a delete
var ErrAdminRequired = errors.New("only administrators may delete courses")

// API is the remote course service
type API interface {
	ListCourses(ctx context.Context, token string) ([]models.Course, error)
	CreateCourse(ctx context.Context, token string, input models.CourseInput) (*models.Course, error)
	DeleteCourse(ctx context.Context, token string, id models.CourseID) error
}

// TokenSource provides the current bearer token
type TokenSource interface {
	Token() (string, bool)
}

// ConfirmFunc asks the user a yes/no question
type ConfirmFunc func(prompt string) (bool, error)

// DeletePrompt is the question asked before a course is deleted
const DeletePrompt = "Are you sure you want to delete this course"

// State is the controller's view of the course collection
type State struct {
	Courses []models.Course
	Loading bool
	Error   string
}

// Controller mirrors the remote course collection in memory.
// Operations never cancel each other; the last one to finish wins.
type Controller struct {
	api    API
	tokens TokenSource
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a controller backed by api
func NewController(api API, tokens TokenSource, logger zerolog.Logger) *Controller {
	return &Controller{
		api:    api,
		tokens: tokens,
		logger: logger.With().Str("component", "courses").Logger(),
		state:  State{Courses: []models.Course{}},
	}
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Courses = make([]models.Course, len(c.state.Courses))
	copy(s.Courses, c.state.Courses)
	return s
}

// OnTokenChanged reloads the list for a newly established token
func (c *Controller) OnTokenChanged(ctx context.Context, token string) {
	if err := c.ListCourses(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Automatic course reload failed")
	}
}

// ListCourses replaces the local list with the API's. On failure the previous
// list is kept and the error recorded.
func (c *Controller) ListCourses(ctx context.Context) error {
	token, ok := c.tokens.Token()
	if !ok {
		return ErrNotAuthenticated
	}

	c.update(func(s *State) {
		s.Loading = true
		s.Error = ""
	})
	defer c.update(func(s *State) { s.Loading = false })

	courses, err := c.api.ListCourses(ctx, token)
	if err != nil {
		err = describe(err, "failed to load courses")
		c.setError(err)
		return err
	}

	c.update(func(s *State) { s.Courses = courses })
	c.logger.Debug().Int("count", len(courses)).Msg("Courses loaded")
	return nil
}

// CreateCourse sends form to the API and puts the created course first in
// the list. The form is cleared on success.
func (c *Controller) CreateCourse(ctx context.Context, form *models.CourseForm) (*models.Course, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	c.setError(nil)

	input := form.Input()
	if err := input.Validate(); err != nil {
		c.setError(err)
		return nil, err
	}

	created, err := c.api.CreateCourse(ctx, token, input)
	if err != nil {
		err = describe(err, "failed to create course")
		c.setError(err)
		return nil, err
	}

	c.update(func(s *State) {
		s.Courses = append([]models.Course{*created}, s.Courses...)
	})
	form.Reset()

	c.logger.Info().Str("course_id", created.ID.String()).Msg("Course created")
	return created, nil
}

// DeleteCourse asks confirm before deleting id. A declined confirmation
// returns false without contacting the API.
func (c *Controller) DeleteCourse(ctx context.Context, id models.CourseID, confirm ConfirmFunc) (bool, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return false, ErrNotAuthenticated
	}

	if confirm != nil {
		yes, err := confirm(DeletePrompt)
		if err != nil {
			return false, err
		}
		if !yes {
			c.logger.Debug().Str("course_id", id.String()).Msg("Delete cancelled")
			return false, nil
		}
	}

	c.setError(nil)

	if err := c.api.DeleteCourse(ctx, token, id); err != nil {
		if client.IsStatus(err, http.StatusForbidden) {
			err = ErrAdminRequired
		} else {
			err = describe(err, "failed to delete course")
		}
		c.setError(err)
		return false, err
	}

	c.update(func(s *State) {
		kept := make([]models.Course, 0, len(s.Courses))
		for _, course := range s.Courses {
			if course.ID != id {
				kept = append(kept, course)
			}
		}
		s.Courses = kept
	})

	c.logger.Info().Str("course_id", id.String()).Msg("Course deleted")
	return true, nil
}

func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

func (c *Controller) setError(err error) {
	c.update(func(s *State) {
		if err == nil {
			s.Error = ""
		} else {
			s.Error = err.Error()
		}
	})
}

// describe prefixes API status errors with the failed action
func describe(err error, action string) error {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return err
}
