package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/david/opportunity-radar/internal/auth"
	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
)

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.auth.Signup(c.Request().Context(), req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.auth.Login(c.Request().Context(), req)
	if errors.Is(err, auth.ErrInvalidCreds) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	p, err := s.auth.Preferences(c.Request().Context(), userID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdatePreferences(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	var req scoring.Profile
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	p, err := s.auth.UpdatePreferences(c.Request().Context(), userID, req)
	if errors.Is(err, auth.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// handleMyOpportunities rescores one page of opportunities with the
// caller's profile and orders it by the personalised total.
func (s *Server) handleMyOpportunities(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	ctx := c.Request().Context()
	profile, err := s.auth.Preferences(ctx, userID)
	if err != nil {
		return s.writeError(c, err)
	}

	params, err := parseListParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	params.Today = s.engine.Today()
	result, err := s.store.ListOpportunities(ctx, params)
	if err != nil {
		return s.writeError(c, err)
	}

	opps := make([]models.Opportunity, len(result.Opportunities))
	for i, o := range result.Opportunities {
		s.engine.Score(scoring.FromOpportunity(o), profile).Apply(&o)
		opps[i] = o
	}
	sort.SliceStable(opps, func(i, j int) bool { return opps[i].TotalScore > opps[j].TotalScore })
	result.Opportunities = opps

	return c.JSON(http.StatusOK, map[string]any{
		"profile": profile,
		"result":  result,
	})
}
