package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/david/opportunity-radar/internal/models"
)

const sourceCols = `id, name, type, base_url, api_key_required, rate_limit_per_hour, is_active, last_sync_at, created_at, updated_at`

func scanSource(row pgx.Row) (models.DataSource, error) {
	var ds models.DataSource
	err := row.Scan(&ds.ID, &ds.Name, &ds.Type, &ds.BaseURL, &ds.APIKeyRequired, &ds.RateLimitPerHour,
		&ds.IsActive, &ds.LastSyncAt, &ds.CreatedAt, &ds.UpdatedAt)
	return ds, err
}

// UpsertSource creates the data source row or refreshes its registry
// metadata. last_sync_at is preserved.
func (s *Store) UpsertSource(ctx context.Context, ds models.DataSource) (models.DataSource, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO data_sources (name, type, base_url, api_key_required, rate_limit_per_hour, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			type = EXCLUDED.type,
			base_url = EXCLUDED.base_url,
			api_key_required = EXCLUDED.api_key_required,
			rate_limit_per_hour = EXCLUDED.rate_limit_per_hour,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING %s
	`, sourceCols), ds.Name, ds.Type, ds.BaseURL, ds.APIKeyRequired, ds.RateLimitPerHour, ds.IsActive)

	out, err := scanSource(row)
	if err != nil {
		return models.DataSource{}, classify("upsert source", err)
	}
	return out, nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.DataSource, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM data_sources ORDER BY name`, sourceCols))
	if err != nil {
		return nil, classify("list sources", err)
	}
	defer rows.Close()

	out := []models.DataSource{}
	for rows.Next() {
		ds, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, ds)
	}
	return out, classify("list sources", rows.Err())
}

// MarkSynced records a finished attempt, successful or not.
func (s *Store) MarkSynced(ctx context.Context, name string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE data_sources SET last_sync_at = $2, updated_at = NOW() WHERE name = $1`, name, at)
	if err != nil {
		return classify("mark synced", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("data source %q: %w", name, models.ErrNotFound)
	}
	return nil
}
