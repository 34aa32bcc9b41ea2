package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketing-backend/internal/model"
)

type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) Insert(ctx context.Context, e model.AnalyticsEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO analytics_events (id, type, path, referrer, session_id, user_agent, ip, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Type, e.Path, e.Referrer, e.SessionID, e.UserAgent, e.IP, metadata, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) Summary(ctx context.Context, since time.Time, topN int) (model.AnalyticsSummary, error) {
	summary := model.AnalyticsSummary{Since: since, ByType: []model.CountByKey{}, TopPaths: []model.CountByKey{}}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT NULLIF(session_id, ''))
		 FROM analytics_events WHERE occurred_at >= $1`, since).
		Scan(&summary.TotalEvents, &summary.Sessions)
	if err != nil {
		return model.AnalyticsSummary{}, fmt.Errorf("count analytics events: %w", err)
	}

	summary.ByType, err = r.countBy(ctx,
		`SELECT type, COUNT(*) FROM analytics_events
		 WHERE occurred_at >= $1 GROUP BY type ORDER BY COUNT(*) DESC, type LIMIT $2`, since, topN)
	if err != nil {
		return model.AnalyticsSummary{}, fmt.Errorf("count events by type: %w", err)
	}

	summary.TopPaths, err = r.countBy(ctx,
		`SELECT path, COUNT(*) FROM analytics_events
		 WHERE occurred_at >= $1 AND path <> '' GROUP BY path ORDER BY COUNT(*) DESC, path LIMIT $2`, since, topN)
	if err != nil {
		return model.AnalyticsSummary{}, fmt.Errorf("count events by path: %w", err)
	}

	return summary, nil
}

func (r *AnalyticsRepository) countBy(ctx context.Context, query string, since time.Time, limit int) ([]model.CountByKey, error) {
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]model.CountByKey, 0)
	for rows.Next() {
		var c model.CountByKey
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
