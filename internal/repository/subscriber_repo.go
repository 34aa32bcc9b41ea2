package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketing-backend/internal/model"
)

type SubscriberRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (model.Subscriber, error) {
	var s model.Subscriber
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, active, subscribed_at, unsubscribed_at
		 FROM subscribers WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).
		Scan(&s.ID, &s.Email, &s.Name, &s.Active, &s.SubscribedAt, &s.UnsubscribedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subscriber{}, notFound("subscriber", email)
	}
	if err != nil {
		return model.Subscriber{}, fmt.Errorf("find subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepository) Create(ctx context.Context, s model.Subscriber) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscribers (id, email, name, active, subscribed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, strings.ToLower(s.Email), s.Name, s.Active, s.SubscribedAt)
	if isUniqueViolation(err) {
		return alreadyExists("subscriber", s.Email)
	}
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	query := `UPDATE subscribers SET active = true, subscribed_at = $2, unsubscribed_at = NULL WHERE id = $1`
	if !active {
		query = `UPDATE subscribers SET active = false, unsubscribed_at = $2 WHERE id = $1`
	}

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("subscriber", id)
	}
	return nil
}

func (r *SubscriberRepository) List(ctx context.Context, activeOnly bool) ([]model.Subscriber, error) {
	query := `SELECT id, email, name, active, subscribed_at, unsubscribed_at FROM subscribers`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY subscribed_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]model.Subscriber, 0)
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.Active, &s.SubscribedAt, &s.UnsubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}
