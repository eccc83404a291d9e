package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/scoring"
)

// parseListParams reads the opportunity filters from the query string.
func parseListParams(c echo.Context) (db.ListParams, error) {
	p := db.ListParams{
		SourceType: strings.TrimSpace(c.QueryParam("source_type")),
		Status:     strings.TrimSpace(c.QueryParam("status")),
		Agency:     c.QueryParam("agency"),
		Location:   c.QueryParam("location"),
		Query:      c.QueryParam("q"),
		Sort:       c.QueryParam("sort"),
		Order:      c.QueryParam("order"),
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"min_score", &p.MinScore},
		{"max_score", &p.MaxScore},
		{"min_value", &p.MinValue},
		{"max_value", &p.MaxValue},
	}
	for _, f := range floats {
		raw := strings.TrimSpace(c.QueryParam(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("%s must be a number", f.name)
		}
		*f.dst = &v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"due_within_days", &p.DueWithinDays},
		{"page", &p.Page},
		{"per_page", &p.PerPage},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(c.QueryParam(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return p, fmt.Errorf("%s must be a non-negative integer", f.name)
		}
		*f.dst = v
	}
	return p.Normalize(), nil
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	params, err := parseListParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	params.Today = s.engine.Today()
	result, err := s.store.ListOpportunities(c.Request().Context(), params)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	opp, err := s.store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, opp)
}

// handleExplainOpportunity recomputes the score breakdown. keywords (csv)
// replaces the default profile's keywords for this one request.
func (s *Server) handleExplainOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	opp, err := s.store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}

	profile := s.profile
	if kw := splitCSV(c.QueryParam("keywords")); len(kw) > 0 {
		profile.Keywords = kw
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":          opp.ID,
		"title":       opp.Title,
		"stored":      scoring.Scores{Relevance: opp.RelevanceScore, Urgency: opp.UrgencyScore, Value: opp.ValueScore, Competition: opp.CompetitionScore, Total: opp.TotalScore},
		"explanation": s.engine.Explain(scoring.FromOpportunity(*opp), profile),
	})
}

func (s *Server) handleListSources(c echo.Context) error {
	sources, err := s.store.ListSources(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, sources)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.store.GetStats(c.Request().Context(), s.engine.Today())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
