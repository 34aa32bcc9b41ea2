package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
)

func TestMemoryPrincipalStore_FindByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPrincipalStore()
	require.NoError(t, store.Create(ctx, model.Principal{ID: "p1", Email: "Ops@Example.com", Role: model.RoleAdmin, Active: true}))
	require.NoError(t, store.Create(ctx, model.Principal{ID: "p2", Email: "gone@example.com", Role: model.RoleEmployee}))

	p, err := store.FindByEmail(ctx, " ops@example.COM ", true)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "ops@example.com", p.Email)

	_, err = store.FindByEmail(ctx, "gone@example.com", true)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	p, err = store.FindByEmail(ctx, "gone@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
}

func TestMemoryPrincipalStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPrincipalStore()
	require.NoError(t, store.Create(ctx, model.Principal{ID: "p1", Email: "a@b.com"}))

	err := store.Create(ctx, model.Principal{ID: "p2", Email: "A@B.com"})
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryPrincipalStore_UpdateRefreshTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPrincipalStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old := model.RefreshTokenEntry{Token: "old", IssuedAt: now.Add(-10 * 24 * time.Hour)}
	require.NoError(t, store.Create(ctx, model.Principal{
		ID: "p1", Email: "a@b.com", Active: true,
		RefreshTokens: []model.RefreshTokenEntry{old, {Token: "keep", IssuedAt: now.Add(-time.Hour)}},
	}))

	cutoff := now.Add(-7 * 24 * time.Hour)
	require.NoError(t, store.Update(ctx, "p1", model.PrincipalPatch{
		PruneRefreshTokensBefore: &cutoff,
		AddRefreshToken:          &model.RefreshTokenEntry{Token: "new", IssuedAt: now},
		LastLogin:                &now,
	}))

	p, err := store.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.RefreshTokens, 2)
	assert.Equal(t, "keep", p.RefreshTokens[0].Token)
	assert.Equal(t, "new", p.RefreshTokens[1].Token)
	require.NotNil(t, p.LastLogin)
	assert.Equal(t, now, *p.LastLogin)
	assert.Equal(t, now, p.UpdatedAt)

	require.NoError(t, store.Update(ctx, "p1", model.PrincipalPatch{RemoveRefreshToken: "keep"}))
	p, err = store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.HasRefreshToken("keep"))
	assert.True(t, p.HasRefreshToken("new"))

	require.NoError(t, store.Update(ctx, "p1", model.PrincipalPatch{ClearRefreshTokens: true}))
	p, err = store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.RefreshTokens)

	err = store.Update(ctx, "missing", model.PrincipalPatch{ClearRefreshTokens: true})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMemoryPrincipalStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPrincipalStore()
	require.NoError(t, store.Create(ctx, model.Principal{
		ID: "p1", Email: "a@b.com",
		RefreshTokens: []model.RefreshTokenEntry{{Token: "t1"}},
	}))

	p, err := store.FindByID(ctx, "p1")
	require.NoError(t, err)
	p.RefreshTokens[0].Token = "mutated"

	again, err := store.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, again.HasRefreshToken("t1"))
}

func TestMemoryDocumentStore_ListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, data := range []map[string]any{
		{"title": "SEO", "published": true, "category": "growth"},
		{"title": "Ads", "published": true, "category": "growth", "order": 1},
		{"title": "Draft", "published": false, "category": "growth"},
		{"title": "Brand", "published": true, "category": "design"},
	} {
		doc := model.Document{
			ID:         string(rune('a' + i)),
			Collection: model.CollectionServices,
			Data:       data,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.Insert(ctx, doc))
	}

	docs, total, err := store.List(ctx, model.DocumentQuery{
		Collection: model.CollectionServices,
		Match:      map[string]any{"published": true, "category": "growth"},
		Page:       1,
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "Ads", docs[0].Data["title"], "explicit order sorts first")
	assert.Equal(t, "SEO", docs[1].Data["title"])

	docs, total, err = store.List(ctx, model.DocumentQuery{Collection: model.CollectionServices, Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, docs, 1)

	docs, _, err = store.List(ctx, model.DocumentQuery{Collection: model.CollectionServices, Page: 5, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryDocumentStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	doc := model.Document{ID: "x", Collection: model.CollectionTeam, Data: map[string]any{"name": "Ana"}}
	require.NoError(t, store.Insert(ctx, doc))

	doc.Data = map[string]any{"name": "Ana", "position": "CTO"}
	require.NoError(t, store.Update(ctx, doc))

	got, err := store.Get(ctx, model.CollectionTeam, "x")
	require.NoError(t, err)
	assert.Equal(t, "CTO", got.Data["position"])

	require.NoError(t, store.Delete(ctx, model.CollectionTeam, "x"))
	_, err = store.Get(ctx, model.CollectionTeam, "x")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, model.CollectionTeam, "x"), model.ErrNotFound))
}

func TestMemorySubscriberStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySubscriberStore()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, model.Subscriber{ID: "s1", Email: "Reader@Example.com", Active: true, SubscribedAt: at}))
	assert.True(t, errors.Is(store.Create(ctx, model.Subscriber{ID: "s2", Email: "reader@example.com"}), model.ErrAlreadyExists))

	require.NoError(t, store.SetActive(ctx, "s1", false, at.Add(time.Hour)))
	active, err := store.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	sub, err := store.FindByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.False(t, sub.Active)
	require.NotNil(t, sub.UnsubscribedAt)
}

func TestMemoryAnalyticsStore_Summary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAnalyticsStore()
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	events := []model.AnalyticsEvent{
		{Type: "page_view", Path: "/", SessionID: "s1", OccurredAt: since.Add(time.Minute)},
		{Type: "page_view", Path: "/", SessionID: "s2", OccurredAt: since.Add(2 * time.Minute)},
		{Type: "page_view", Path: "/pricing", SessionID: "s1", OccurredAt: since.Add(3 * time.Minute)},
		{Type: "cta_click", Path: "/pricing", OccurredAt: since.Add(4 * time.Minute)},
		{Type: "page_view", Path: "/old", SessionID: "s3", OccurredAt: since.Add(-time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}

	summary, err := store.Summary(ctx, since, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalEvents)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, []model.CountByKey{{Key: "page_view", Count: 3}, {Key: "cta_click", Count: 1}}, summary.ByType)
	assert.Equal(t, []model.CountByKey{{Key: "/", Count: 2}, {Key: "/pricing", Count: 2}}, summary.TopPaths)
}
