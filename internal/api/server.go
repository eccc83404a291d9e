// Package api is the HTTP surface: the opportunity query surface, the sync
// trigger surface, accounts and metrics.
package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/david/opportunity-radar/internal/auth"
	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scheduler"
	"github.com/david/opportunity-radar/internal/scoring"
)

// Store is the read side the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	ListOpportunities(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	ListSources(ctx context.Context) ([]models.DataSource, error)
	GetStats(ctx context.Context, today time.Time) (*db.Stats, error)
}

// Syncer is the sync trigger surface.
type Syncer interface {
	Sync(ctx context.Context, name string) scheduler.AggregateResult
	SyncNext(ctx context.Context) scheduler.SyncResult
	Status(ctx context.Context) (scheduler.Status, error)
	Ranking(ctx context.Context) ([]scheduler.Ranked, error)
}

type Deps struct {
	Store   Store
	Sync    Syncer
	Auth    *auth.Service
	Engine  *scoring.Engine
	Profile scoring.Profile // default profile for explanations

	AdminSecret string
	CORSOrigins []string
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
}

type Server struct {
	Echo *echo.Echo

	store       Store
	sync        Syncer
	auth        *auth.Service
	engine      *scoring.Engine
	profile     scoring.Profile
	adminSecret string
	logger      *slog.Logger

	// Background job tracking
	jobMu sync.Mutex
	jobs  map[string]*backgroundJob
	order []string
}

type backgroundJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running, completed, failed
	Source    string    `json:"source,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Result    any       `json:"result,omitempty"`
}

// maxJobs bounds the in-memory job history.
const maxJobs = 50

func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	secret := strings.TrimSpace(d.AdminSecret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		d.Logger.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	if d.Engine == nil {
		d.Engine = scoring.NewEngine(scoring.Config{})
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = jsonErrorHandler(e)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:        e,
		store:       d.Store,
		sync:        d.Sync,
		auth:        d.Auth,
		engine:      d.Engine,
		profile:     d.Profile,
		adminSecret: secret,
		logger:      d.Logger,
		jobs:        map[string]*backgroundJob{},
	}
	s.routes(d.Gatherer)
	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.Echo.GET("/health", s.handleHealth)
	if gatherer != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/opportunities/:id/explain", s.handleExplainOpportunity)
	api.GET("/sources", s.handleListSources)
	api.GET("/stats", s.handleGetStats)
	api.GET("/sync/status", s.handleSyncStatus)
	api.GET("/sync/ranking", s.handleSyncRanking)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/sync", s.handleSync)
	admin.POST("/sync/next", s.handleSyncNext)
	admin.GET("/sync/jobs/:id", s.handleJobStatus)

	if s.auth != nil {
		api.POST("/auth/signup", s.handleSignup)
		api.POST("/auth/login", s.handleLogin)

		me := api.Group("/me")
		me.Use(s.auth.Middleware)
		me.GET("/preferences", s.handleGetPreferences)
		me.PUT("/preferences", s.handleUpdatePreferences)
		me.GET("/opportunities", s.handleMyOpportunities)
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Check X-Admin-Secret header or Bearer token
		candidate := c.Request().Header.Get("X-Admin-Secret")
		if authHeader := c.Request().Header.Get("Authorization"); candidate == "" && len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			candidate = authHeader[7:]
		}
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1 {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// writeError maps store sentinels onto status codes.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, models.ErrStoreUnavailable):
		s.logger.Error("store unavailable", "path", c.Path(), "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Service unavailable"})
	}
	s.logger.Error("request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

// jsonErrorHandler renders echo errors, including the auth middleware's,
// as {"error": "..."}.
func jsonErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			e.Logger.Error(err)
		}
	}
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
