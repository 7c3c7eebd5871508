package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/cursos-dev/cursos/internal/auth"
	"github.com/cursos-dev/cursos/internal/cli/client"
	"github.com/cursos-dev/cursos/internal/cli/config"
	"github.com/cursos-dev/cursos/internal/models"
)

// setupTestEnvironment isolates the working directory, user config and
// logging of a command test
func setupTestEnvironment(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("CURSOS_LOG_LEVEL", "off")
	return dir
}

func signToken(t *testing.T, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "auth0|42"}
	if len(roles) > 0 {
		claims[auth.DefaultRoleClaim] = roles
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// mockProvider simulates the identity provider
type mockProvider struct {
	authenticated bool
	token         string
	profile       *models.Profile
	signInErr     error
	signIns       int
	// tokenErr fails AccessToken until the next successful SignIn
	tokenErr error
}

func (m *mockProvider) IsAuthenticated(ctx context.Context) (bool, error) {
	return m.authenticated, nil
}

func (m *mockProvider) AccessToken(ctx context.Context) (string, error) {
	if !m.authenticated {
		return "", errors.New("login required")
	}
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockProvider) Profile(ctx context.Context) (*models.Profile, error) {
	if m.profile == nil {
		return nil, errors.New("no profile")
	}
	return m.profile, nil
}

func (m *mockProvider) SignIn(ctx context.Context) error {
	m.signIns++
	if m.signInErr != nil {
		return m.signInErr
	}
	m.authenticated = true
	m.tokenErr = nil
	return nil
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	m.authenticated = false
	return nil
}

// mockCourseAPI simulates the course API over HTTP. Deletes need the admin role.
type mockCourseAPI struct {
	adminToken string

	mu          sync.Mutex
	courses     []map[string]any
	nextID      int
	requests    []string
	listStatus  int
	lastPayload map[string]any
}

func newMockCourseAPI(t *testing.T, adminToken string) *mockCourseAPI {
	return &mockCourseAPI{
		adminToken: adminToken,
		courses: []map[string]any{
			{"id": 1, "nome": "Go", "descricao": "Concorrência", "nota": 4.5, "nomeProfessor": "Ana"},
			{"id": 2, "nome": "Rust", "descricao": nil, "nota": nil, "nomeProfessor": nil},
		},
		nextID: 3,
	}
}

func (m *mockCourseAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, r.Method+" "+r.URL.Path)
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/cursos":
		if m.listStatus != 0 {
			w.WriteHeader(m.listStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(m.courses)

	case r.Method == http.MethodPost && r.URL.Path == "/cursos":
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.lastPayload = payload
		payload["id"] = m.nextID
		m.nextID++
		m.courses = append(m.courses, payload)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(payload)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/cursos/"):
		if token != m.adminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/cursos/")
		for i, course := range m.courses {
			if strconv.Itoa(toInt(course["id"])) == id {
				m.courses = append(m.courses[:i], m.courses[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *mockCourseAPI) requestLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *mockCourseAPI) count(method string) int {
	n := 0
	for _, req := range m.requestLog() {
		if strings.HasPrefix(req, method+" ") {
			n++
		}
	}
	return n
}

func (m *mockCourseAPI) created() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPayload
}

func (m *mockCourseAPI) remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.courses)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return -1
}

// startCourseAPI serves api and returns a client for it
func startCourseAPI(t *testing.T, api *mockCourseAPI) *client.Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return client.New(server.URL, client.Options{Logger: zerolog.Nop()})
}

// scriptedPrompter answers prompts from fixed scripts
type scriptedPrompter struct {
	selects  []int
	inputs   []string
	confirms []bool

	menus   [][]string
	asked   []string
	confirm int
}

func (s *scriptedPrompter) Select(label string, items []string) (int, error) {
	s.menus = append(s.menus, items)
	if len(s.selects) == 0 {
		return -1, errors.New("no more selections scripted")
	}
	next := s.selects[0]
	s.selects = s.selects[1:]
	return next, nil
}

func (s *scriptedPrompter) Input(label string) (string, error) {
	s.asked = append(s.asked, label)
	if len(s.inputs) == 0 {
		return "", errors.New("no more inputs scripted")
	}
	next := s.inputs[0]
	s.inputs = s.inputs[1:]
	return next, nil
}

func (s *scriptedPrompter) Confirm(label string) (bool, error) {
	s.confirm++
	if len(s.confirms) == 0 {
		return false, nil
	}
	next := s.confirms[0]
	s.confirms = s.confirms[1:]
	return next, nil
}

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func testServer() *config.Server {
	return &config.Server{
		Alias: "test-server",
		URL:   "https://api.example.com",
		Auth: config.AuthSettings{
			Domain:   "tenant.us.auth0.com",
			ClientID: "client-123",
		},
	}
}
