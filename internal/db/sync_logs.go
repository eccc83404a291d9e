package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/david/opportunity-radar/internal/models"
)

const syncLogCols = `id, source_name, status, records_processed, records_added, records_updated, records_failed,
	error_message, started_at, completed_at, duration_ms`

func scanSyncLog(row pgx.Row) (models.SyncLog, error) {
	var l models.SyncLog
	err := row.Scan(&l.ID, &l.SourceName, &l.Status, &l.RecordsProcessed, &l.RecordsAdded, &l.RecordsUpdated,
		&l.RecordsFailed, &l.ErrorMessage, &l.StartedAt, &l.CompletedAt, &l.DurationMS)
	return l, err
}

// StartSyncLog appends a running log row.
func (s *Store) StartSyncLog(ctx context.Context, source string, startedAt time.Time) (models.SyncLog, error) {
	l := models.SyncLog{SourceName: source, Status: models.SyncRunning, StartedAt: startedAt}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_logs (source_name, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, source, l.Status, startedAt).Scan(&l.ID)
	if err != nil {
		return models.SyncLog{}, classify("start sync log", err)
	}
	return l, nil
}

// FinishSyncLog finalizes a running log. Logs that already left the running
// state are immutable and yield models.ErrNotFound.
func (s *Store) FinishSyncLog(ctx context.Context, l models.SyncLog) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_logs SET
			status = $2, records_processed = $3, records_added = $4, records_updated = $5, records_failed = $6,
			error_message = $7, completed_at = $8, duration_ms = $9
		WHERE id = $1 AND status = 'running'
	`, l.ID, l.Status, l.RecordsProcessed, l.RecordsAdded, l.RecordsUpdated, l.RecordsFailed,
		l.ErrorMessage, l.CompletedAt, l.DurationMS)
	if err != nil {
		return classify("finish sync log", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("running sync log %d: %w", l.ID, models.ErrNotFound)
	}
	return nil
}

func (s *Store) LatestSyncLog(ctx context.Context) (models.SyncLog, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sync_logs ORDER BY started_at DESC, id DESC LIMIT 1`, syncLogCols))
	l, err := scanSyncLog(row)
	if err != nil {
		return models.SyncLog{}, classify("latest sync log", err)
	}
	return l, nil
}

// RecentSyncLogs returns up to limit logs newest first, for one source or
// all of them when source is empty.
func (s *Store) RecentSyncLogs(ctx context.Context, source string, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM sync_logs
		WHERE ($1::text = '' OR source_name = $1::text)
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`, syncLogCols), source, limit)
	if err != nil {
		return nil, classify("recent sync logs", err)
	}
	defer rows.Close()

	out := []models.SyncLog{}
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, l)
	}
	return out, classify("recent sync logs", rows.Err())
}

// FailStaleRuns marks logs still running since before startedBefore as
// failed with reason.
func (s *Store) FailStaleRuns(ctx context.Context, startedBefore, at time.Time, reason string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_logs SET
			status = 'failed',
			error_message = $3,
			completed_at = $2,
			duration_ms = (EXTRACT(EPOCH FROM ($2 - started_at)) * 1000)::bigint
		WHERE status = 'running' AND started_at < $1
	`, startedBefore, at, reason)
	if err != nil {
		return 0, classify("fail stale runs", err)
	}
	return int(tag.RowsAffected()), nil
}
