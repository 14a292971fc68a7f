package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voicecontrol/internal/db"
)

// Repository persists command logs in Postgres.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) InsertLog(ctx context.Context, l Log) (Log, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Log{}, fmt.Errorf("generate log id: %w", err)
	}
	l.ID = id.String()
	l.CreatedAt = time.Now().UTC()

	_, err = r.db.Exec(ctx, `
		INSERT INTO command_logs (id, user_id, raw_text, action, device_type, location,
			value, success, response, error_message, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, l.ID, l.UserID, l.RawText, l.Action, l.DeviceType, l.Location,
		l.Value, l.Success, l.Response, l.ErrorMessage, l.ProcessingMS, l.CreatedAt)
	if err != nil {
		return Log{}, fmt.Errorf("insert command log: %w", err)
	}

	return l, nil
}

func (r *Repository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]Log, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, raw_text, action, device_type, location,
			value, success, response, error_message, processing_time_ms, created_at
		FROM command_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list command logs: %w", err)
	}
	defer rows.Close()

	logs := make([]Log, 0, limit)
	for rows.Next() {
		var l Log
		err := rows.Scan(&l.ID, &l.UserID, &l.RawText, &l.Action, &l.DeviceType, &l.Location,
			&l.Value, &l.Success, &l.Response, &l.ErrorMessage, &l.ProcessingMS, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan command log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list command logs: %w", err)
	}

	return logs, nil
}

// DeleteStaleLogs removes logs older than the retention cutoff in bounded
// batches.
func (r *Repository) DeleteStaleLogs(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := r.db.Exec(ctx, `
		WITH stale AS (
			SELECT id
			FROM command_logs
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM command_logs c
		USING stale
		WHERE c.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale command logs: %w", err)
	}

	return tag.RowsAffected(), nil
}
