package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketing-backend/internal/model"
)

const principalColumns = `id, email, password_hash, role, active, refresh_tokens, last_login, created_at, updated_at`

type PrincipalRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool, now: time.Now}
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (model.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Principal{}, notFound("principal", id)
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("find principal by id: %w", err)
	}
	return p, nil
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string, activeOnly bool) (model.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE lower(email) = lower($1)`
	if activeOnly {
		query += ` AND active`
	}

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Principal{}, notFound("principal", email)
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("find principal by email: %w", err)
	}
	return p, nil
}

func (r *PrincipalRepository) Create(ctx context.Context, p model.Principal) error {
	tokens, err := json.Marshal(nonNilTokens(p.RefreshTokens))
	if err != nil {
		return fmt.Errorf("encode refresh tokens: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO principals (`+principalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, strings.ToLower(p.Email), p.PasswordHash, string(p.Role), p.Active, tokens, p.LastLogin, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return alreadyExists("principal", p.Email)
	}
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// Update applies patch in a single statement so concurrent token appends and
// removals on the same principal serialize on the row.
func (r *PrincipalRepository) Update(ctx context.Context, id string, patch model.PrincipalPatch) error {
	args := []any{id, r.now().UTC()}
	sets := []string{"updated_at = $2"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	tokens := "refresh_tokens"
	if patch.ClearRefreshTokens {
		tokens = "'[]'::jsonb"
	}
	if patch.PruneRefreshTokensBefore != nil {
		tokens = fmt.Sprintf(
			"(SELECT COALESCE(jsonb_agg(e), '[]'::jsonb) FROM jsonb_array_elements(%s) e WHERE (e->>'issued_at')::timestamptz > %s)",
			tokens, arg(patch.PruneRefreshTokensBefore.UTC()))
	}
	if patch.RemoveRefreshToken != "" {
		tokens = fmt.Sprintf(
			"(SELECT COALESCE(jsonb_agg(e), '[]'::jsonb) FROM jsonb_array_elements(%s) e WHERE e->>'token' <> %s)",
			tokens, arg(patch.RemoveRefreshToken))
	}
	if patch.AddRefreshToken != nil {
		entry, err := json.Marshal([]model.RefreshTokenEntry{*patch.AddRefreshToken})
		if err != nil {
			return fmt.Errorf("encode refresh token: %w", err)
		}
		tokens = fmt.Sprintf("%s || %s::jsonb", tokens, arg(string(entry)))
	}
	if tokens != "refresh_tokens" {
		sets = append(sets, "refresh_tokens = "+tokens)
	}

	if patch.LastLogin != nil {
		sets = append(sets, "last_login = "+arg(patch.LastLogin.UTC()))
	}
	if patch.Role != nil {
		sets = append(sets, "role = "+arg(string(*patch.Role)))
	}
	if patch.Active != nil {
		sets = append(sets, "active = "+arg(*patch.Active))
	}
	if patch.PasswordHash != nil {
		sets = append(sets, "password_hash = "+arg(*patch.PasswordHash))
	}

	tag, err := r.pool.Exec(ctx, `UPDATE principals SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("principal", id)
	}
	return nil
}

func (r *PrincipalRepository) List(ctx context.Context) ([]model.Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	principals := make([]model.Principal, 0)
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

func (r *PrincipalRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM principals`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count principals: %w", err)
	}
	return count, nil
}

func scanPrincipal(row pgx.Row) (model.Principal, error) {
	var (
		p      model.Principal
		role   string
		tokens []byte
	)
	if err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &role, &p.Active, &tokens, &p.LastLogin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Principal{}, err
	}
	p.Role = model.Role(role)

	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &p.RefreshTokens); err != nil {
			return model.Principal{}, fmt.Errorf("decode refresh tokens: %w", err)
		}
	}
	return p, nil
}

func nonNilTokens(tokens []model.RefreshTokenEntry) []model.RefreshTokenEntry {
	if tokens == nil {
		return []model.RefreshTokenEntry{}
	}
	return tokens
}
