package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketing-backend/internal/model"
)

// DocumentRepository stores schemaless documents as JSONB rows keyed by
// collection.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Insert(ctx context.Context, doc model.Document) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Collection, data, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert %s document: %w", doc.Collection, err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, collection string, id string) (model.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, collection, data, created_at, updated_at
		 FROM documents WHERE collection = $1 AND id = $2`, collection, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, notFound(collection, id)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("get %s document: %w", collection, err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, q model.DocumentQuery) ([]model.Document, int, error) {
	match := q.Match
	if match == nil {
		match = map[string]any{}
	}
	filter, err := json.Marshal(match)
	if err != nil {
		return nil, 0, fmt.Errorf("encode filter: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1 AND data @> $2::jsonb`,
		q.Collection, string(filter)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s documents: %w", q.Collection, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, collection, data, created_at, updated_at
		 FROM documents
		 WHERE collection = $1 AND data @> $2::jsonb
		 ORDER BY COALESCE((data->>'order')::int, 2147483647), created_at DESC
		 LIMIT $3 OFFSET $4`,
		q.Collection, string(filter), q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s documents: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *DocumentRepository) Update(ctx context.Context, doc model.Document) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
		doc.Collection, doc.ID, data, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update %s document: %w", doc.Collection, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(doc.Collection, doc.ID)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection string, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s document: %w", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(collection, id)
	}
	return nil
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var (
		doc  model.Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return model.Document{}, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return model.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
