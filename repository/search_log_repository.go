package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dealscout/models"

	"github.com/lib/pq"
)

type SearchLogRepository struct {
	db *sql.DB
}

func NewSearchLogRepository(db *sql.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

// Record stores a search and its per-source reports in one transaction
func (r *SearchLogRepository) Record(ctx context.Context, entry *models.SearchLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO search_log (query, normalized_query, result_count, duration_ms, cache_hit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		entry.Query, entry.NormalizedQuery, entry.ResultCount,
		entry.DurationMS, entry.CacheHit, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	if len(entry.Sources) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_log_sources (search_id, source, record_count, error, bot_wall, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare source insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range entry.Sources {
			_, err := stmt.ExecContext(ctx, entry.ID, string(s.Source), s.Count,
				nullString(s.Error), s.BotWall, s.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("failed to record source %s: %w", s.Source, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit search log: %w", err)
	}
	return nil
}

// Recent returns the latest searches, newest first, with their source reports
func (r *SearchLogRepository) Recent(ctx context.Context, limit int) ([]models.SearchLogEntry, error) {
	query := `
		SELECT id, query, normalized_query, result_count, duration_ms, cache_hit, created_at
		FROM search_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent searches: %w", err)
	}
	defer rows.Close()

	entries := []models.SearchLogEntry{}
	index := make(map[int]int)
	var ids []int64
	for rows.Next() {
		var e models.SearchLogEntry
		err := rows.Scan(&e.ID, &e.Query, &e.NormalizedQuery, &e.ResultCount,
			&e.DurationMS, &e.CacheHit, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		index[e.ID] = len(entries)
		ids = append(ids, int64(e.ID))
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read searches: %w", err)
	}
	if len(ids) == 0 {
		return entries, nil
	}

	srcRows, err := r.db.QueryContext(ctx, `
		SELECT search_id, source, record_count, COALESCE(error, ''), bot_wall, duration_ms
		FROM search_log_sources
		WHERE search_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get search sources: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var (
			searchID   int
			source     string
			report     models.SourceReport
			durationMS int64
		)
		if err := srcRows.Scan(&searchID, &source, &report.Count, &report.Error, &report.BotWall, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan search source: %w", err)
		}
		report.Source = models.SourceID(source)
		report.Duration = time.Duration(durationMS) * time.Millisecond
		if i, ok := index[searchID]; ok {
			entries[i].Sources = append(entries[i].Sources, report)
		}
	}
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search sources: %w", err)
	}

	return entries, nil
}

// PruneOlderThan deletes searches recorded before cutoff and returns how many went
func (r *SearchLogRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM search_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune search log: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned searches: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
