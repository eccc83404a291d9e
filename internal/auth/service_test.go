package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uuid.UUID]models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, email, hash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return models.User{}, models.ErrDuplicate
		}
	}
	u := models.User{ID: uuid.New(), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (m *memUsers) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePreferences(_ context.Context, id uuid.UUID, keywords, states []string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	u.Keywords, u.PreferredStates = keywords, states
	m.byID[id] = u
	return u, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(newMemUsers(), "test-secret", nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.cost = bcrypt.MinCost
	return s
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	resp, err := s.Signup(ctx, SignupRequest{Email: "Ana@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "ana@example.com" || resp.User.PasswordHash != "" {
		t.Fatalf("signup response = %+v", resp)
	}

	if _, err := s.Signup(ctx, SignupRequest{Email: "ana@example.com", Password: "another one"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate signup err = %v, want ErrUserExists", err)
	}

	login, err := s.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := s.ParseToken(login.Token)
	if err != nil || id != resp.User.ID {
		t.Fatalf("ParseToken = %v, %v; want %v", id, err, resp.User.ID)
	}

	if _, err := s.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong password"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := s.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever1"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	s := newTestService(t)
	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"bad email", SignupRequest{Email: "not-an-email", Password: "long enough"}},
		{"display name form", SignupRequest{Email: "Ana <ana@example.com>", Password: "long enough"}},
		{"short password", SignupRequest{Email: "ana@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Signup(context.Background(), tt.req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestParseToken_Rejects(t *testing.T) {
	s := newTestService(t)
	id := uuid.New()
	token, err := s.IssueToken(id)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other, _ := NewService(newMemUsers(), "other-secret", nil)
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret err = %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := s.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v", err)
	}

	if _, err := s.ParseToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v", err)
	}
}

func TestUpdatePreferences_Cleans(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	resp, err := s.Signup(ctx, SignupRequest{Email: "pat@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	got, err := s.UpdatePreferences(ctx, resp.User.ID, scoring.Profile{
		Keywords:        []string{" Cloud  Migration", "cloud migration", "", "Cybersecurity"},
		PreferredStates: []string{"tx", "TX", "ca"},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if strings.Join(got.Keywords, "|") != "cloud migration|cybersecurity" {
		t.Errorf("keywords = %q", got.Keywords)
	}
	if strings.Join(got.PreferredStates, "|") != "TX|CA" {
		t.Errorf("states = %q", got.PreferredStates)
	}

	stored, err := s.Preferences(ctx, resp.User.ID)
	if err != nil || len(stored.Keywords) != 2 {
		t.Fatalf("Preferences = %+v, %v", stored, err)
	}

	if _, err := s.Preferences(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t)
	id := uuid.New()
	token, _ := s.IssueToken(id)

	e := echo.New()
	handler := s.Middleware(func(c echo.Context) error {
		got, err := UserIDFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, got.String())
	})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			err := handler(e.NewContext(req, rec))

			code := rec.Code
			var he *echo.HTTPError
			if errors.As(err, &he) {
				code = he.Code
			}
			if code != tt.code {
				t.Fatalf("code = %d, want %d", code, tt.code)
			}
			if tt.code == http.StatusOK && rec.Body.String() != id.String() {
				t.Errorf("body = %q, want user id", rec.Body.String())
			}
		})
	}
}
