// Package auth manages user accounts, JWT issuing and per-user scoring
// preferences.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidToken = errors.New("invalid or expired token")
)

const (
	tokenTTL          = 24 * time.Hour
	minPasswordLength = 8
	maxKeywords       = 50
)

// UserStore persists accounts. Lookups return models.ErrNotFound; a taken
// email on create returns models.ErrDuplicate.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, keywords, states []string) (models.User, error)
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type Service struct {
	store  UserStore
	secret []byte
	cost   int
	now    func() time.Time
}

// NewService signs tokens with secret. An empty secret is replaced by a
// random one that lives as long as the process.
func NewService(store UserStore, secret string, logger *slog.Logger) (*Service, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		key = []byte(base64.RawURLEncoding.EncodeToString(buf))
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	return &Service{store: store, secret: key, cost: bcrypt.DefaultCost, now: time.Now}, nil
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, string(hash))
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, ErrInvalidCreds
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}

	// Clear hash before returning
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return strings.ToLower(addr.Address), nil
}

// IssueToken signs an HS256 token whose subject is the user id.
func (s *Service) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates a token and returns its user id.
func (s *Service) ParseToken(raw string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Preferences returns the user's scoring profile.
func (s *Service) Preferences(ctx context.Context, userID uuid.UUID) (scoring.Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return scoring.Profile{}, err
	}
	return scoring.Profile{Keywords: u.Keywords, PreferredStates: u.PreferredStates}, nil
}

// UpdatePreferences stores a cleaned copy of p.
func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, p scoring.Profile) (scoring.Profile, error) {
	keywords := cleanList(p.Keywords, strings.ToLower)
	if len(keywords) > maxKeywords {
		return scoring.Profile{}, fmt.Errorf("%w: at most %d keywords", ErrInvalidInput, maxKeywords)
	}
	states := cleanList(p.PreferredStates, strings.ToUpper)

	u, err := s.store.UpdatePreferences(ctx, userID, keywords, states)
	if err != nil {
		return scoring.Profile{}, err
	}
	return scoring.Profile{Keywords: u.Keywords, PreferredStates: u.PreferredStates}, nil
}

func cleanList(in []string, fold func(string) string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range in {
		v = fold(strings.Join(strings.Fields(v), " "))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
