package db

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/opportunity-radar/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.pool.Ping(ctx))
}

// selectCols is the column list shared by every opportunity query.
const selectCols = `id, external_id, source_name, data_source_id,
	title, description, full_description, agency_name, location, contact_info, contact_email, category, set_aside,
	estimated_value, posted_date, due_date, source_type, source_url,
	relevance_score, urgency_score, value_score, competition_score, total_score,
	status, created_at, updated_at`

func scanOpportunity(row pgx.Row) (models.Opportunity, error) {
	var o models.Opportunity
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.SourceName, &o.DataSourceID,
		&o.Title, &o.Description, &o.FullDescription, &o.AgencyName, &o.Location, &o.ContactInfo, &o.ContactEmail, &o.Category, &o.SetAside,
		&o.EstimatedValue, &o.PostedDate, &o.DueDate, &o.SourceType, &o.SourceURL,
		&o.RelevanceScore, &o.UrgencyScore, &o.ValueScore, &o.CompetitionScore, &o.TotalScore,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// FindByExternalID returns the row for the natural key or models.ErrNotFound.
func (s *Store) FindByExternalID(ctx context.Context, sourceName, externalID string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM opportunities
		WHERE source_name = $1 AND external_id = $2
	`, selectCols), sourceName, externalID)

	o, err := scanOpportunity(row)
	if err != nil {
		return nil, classify("find opportunity", err)
	}
	return &o, nil
}

// GetOpportunity looks a row up by its surrogate id.
func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM opportunities WHERE id = $1`, selectCols), id)
	o, err := scanOpportunity(row)
	if err != nil {
		return nil, classify("get opportunity", err)
	}
	return &o, nil
}

// InsertOpportunity inserts opp and fills in its id. A conflict on
// (source_name, external_id) returns models.ErrDuplicate and writes nothing.
func (s *Store) InsertOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (
			id, external_id, source_name, data_source_id,
			title, description, agency_name, location, contact_info, contact_email, category, set_aside,
			estimated_value, posted_date, due_date, source_type, source_url,
			relevance_score, urgency_score, value_score, competition_score, total_score,
			status, created_at, updated_at, full_description
		) VALUES (
			$1, $2, $3, COALESCE($4, (SELECT id FROM data_sources WHERE name = $3)),
			$5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26
		)
		ON CONFLICT (source_name, external_id) DO NOTHING
	`,
		opp.ID, opp.ExternalID, opp.SourceName, opp.DataSourceID,
		opp.Title, opp.Description, opp.AgencyName, opp.Location, opp.ContactInfo, opp.ContactEmail, opp.Category, opp.SetAside,
		opp.EstimatedValue, opp.PostedDate, opp.DueDate, opp.SourceType, opp.SourceURL,
		opp.RelevanceScore, opp.UrgencyScore, opp.ValueScore, opp.CompetitionScore, opp.TotalScore,
		opp.Status, opp.CreatedAt, opp.UpdatedAt, opp.FullDescription,
	)
	if err != nil {
		return classify("insert opportunity", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert %s/%s: %w", opp.SourceName, opp.ExternalID, models.ErrDuplicate)
	}
	return nil
}

// UpdateOpportunity overwrites the mutable columns of the row with opp.ID.
// created_at is left alone.
func (s *Store) UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET
			title = $2, description = $3, agency_name = $4, location = $5, contact_info = $6,
			contact_email = $7, category = $8, set_aside = $9,
			estimated_value = $10, posted_date = $11, due_date = $12, source_type = $13, source_url = $14,
			relevance_score = $15, urgency_score = $16, value_score = $17, competition_score = $18, total_score = $19,
			status = $20, updated_at = $21, full_description = $22
		WHERE id = $1
	`,
		opp.ID,
		opp.Title, opp.Description, opp.AgencyName, opp.Location, opp.ContactInfo,
		opp.ContactEmail, opp.Category, opp.SetAside,
		opp.EstimatedValue, opp.PostedDate, opp.DueDate, opp.SourceType, opp.SourceURL,
		opp.RelevanceScore, opp.UrgencyScore, opp.ValueScore, opp.CompetitionScore, opp.TotalScore,
		opp.Status, opp.UpdatedAt, opp.FullDescription,
	)
	if err != nil {
		return classify("update opportunity", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", opp.ID, models.ErrNotFound)
	}
	return nil
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type ListParams struct {
	SourceType    string
	Status        string
	MinScore      *float64
	MaxScore      *float64
	MinValue      *float64
	MaxValue      *float64
	Agency        string // substring, case-insensitive
	Location      string // substring, case-insensitive
	Query         string // matched against title and description
	DueWithinDays int
	Today         time.Time // date DueWithinDays counts from; zero means today in UTC
	Sort          string
	Order         string // asc or desc
	Page          int
	PerPage       int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Page          int                  `json:"page"`
	PerPage       int                  `json:"per_page"`
	TotalPages    int                  `json:"total_pages"`
	HasNext       bool                 `json:"has_next"`
	HasPrev       bool                 `json:"has_prev"`
}

// sortColumns are the columns a caller may order by.
var sortColumns = map[string]string{
	"total_score":       "total_score",
	"relevance_score":   "relevance_score",
	"urgency_score":     "urgency_score",
	"value_score":       "value_score",
	"competition_score": "competition_score",
	"due_date":          "due_date",
	"posted_date":       "posted_date",
	"estimated_value":   "estimated_value",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"title":             "title",
}

// Normalize applies paging defaults and bounds.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	if _, ok := sortColumns[p.Sort]; !ok {
		p.Sort = "total_score"
	}
	p.Order = strings.ToLower(p.Order)
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}

func buildListWhere(p ListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where += " AND " + strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args)))
	}

	if p.SourceType != "" {
		add("source_type = ?", p.SourceType)
	}
	if p.Status != "" {
		add("status = ?", p.Status)
	}
	if p.MinScore != nil {
		add("total_score >= ?", *p.MinScore)
	}
	if p.MaxScore != nil {
		add("total_score <= ?", *p.MaxScore)
	}
	if p.MinValue != nil {
		add("estimated_value >= ?", *p.MinValue)
	}
	if p.MaxValue != nil {
		add("estimated_value <= ?", *p.MaxValue)
	}
	if s := strings.TrimSpace(p.Agency); s != "" {
		add("agency_name ILIKE ?", "%"+escapeLike(s)+"%")
	}
	if s := strings.TrimSpace(p.Location); s != "" {
		add("location ILIKE ?", "%"+escapeLike(s)+"%")
	}
	if s := strings.TrimSpace(p.Query); s != "" {
		add("(title ILIKE ? OR description ILIKE ?)", "%"+escapeLike(s)+"%")
	}
	if p.DueWithinDays > 0 {
		today := p.Today
		if today.IsZero() {
			today = time.Now().UTC()
		}
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		add("due_date >= ?::date", today)
		add("due_date <= ?::date", today.AddDate(0, 0, p.DueWithinDays))
	}
	return where, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderClause(p ListParams) string {
	col := sortColumns[p.Sort]
	if col == "" {
		col = "total_score"
	}
	dir := "DESC"
	if p.Order == "asc" {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id ASC", col, dir)
}

func pageInfo(total, page, perPage int) (totalPages int, hasNext, hasPrev bool) {
	totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	return totalPages, page < totalPages, page > 1
}

// ListOpportunities filters, sorts and paginates opportunities.
func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	p := params.Normalize()
	where, args := buildListWhere(p)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, classify("count opportunities", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM opportunities %s", selectCols, where) + orderClause(p)
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, p.PerPage, (p.Page-1)*p.PerPage)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, classify("list opportunities", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}

	res := &ListResult{Opportunities: opps, Total: total, Page: p.Page, PerPage: p.PerPage}
	res.TotalPages, res.HasNext, res.HasPrev = pageInfo(total, p.Page, p.PerPage)
	return res, nil
}

type Stats struct {
	Total        int                   `json:"total"`
	ByStatus     map[string]int        `json:"by_status"`
	BySourceType map[string]int        `json:"by_source_type"`
	AverageScore float64               `json:"average_score"`
	DueThisWeek  int                   `json:"due_this_week"`
	LastSync     map[string]*time.Time `json:"last_sync"`
}

// GetStats summarizes the opportunities table and per-source sync times.
// today is the caller's calendar date; due_this_week counts from it.
func (s *Store) GetStats(ctx context.Context, today time.Time) (*Stats, error) {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	st := &Stats{ByStatus: map[string]int{}, BySourceType: map[string]int{}, LastSync: map[string]*time.Time{}}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(total_score), 0),
		       COUNT(*) FILTER (WHERE due_date BETWEEN $1::date AND $2::date)
		FROM opportunities
	`, today, today.AddDate(0, 0, 7)).Scan(&st.Total, &st.AverageScore, &st.DueThisWeek)
	if err != nil {
		return nil, classify("stats totals", err)
	}
	st.AverageScore = math.Round(st.AverageScore*100) / 100

	if err := s.countBy(ctx, "status", st.ByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "source_type", st.BySourceType); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT name, last_sync_at FROM data_sources ORDER BY name`)
	if err != nil {
		return nil, classify("stats sources", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var at *time.Time
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		st.LastSync[name] = at
	}
	return st, classify("stats sources", rows.Err())
}

// countBy fills out with row counts grouped by col, which must be a trusted
// column name.
func (s *Store) countBy(ctx context.Context, col string, out map[string]int) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM opportunities GROUP BY %[1]s`, col))
	if err != nil {
		return classify("stats by "+col, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		out[k] = n
	}
	return classify("stats by "+col, rows.Err())
}
