package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Manager ")
	require.True(t, ok)
	assert.Equal(t, RoleManager, role)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestPrincipalApply(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	newPrincipal := func() Principal {
		return Principal{
			ID:   "p1",
			Role: RoleEmployee,
			RefreshTokens: []RefreshTokenEntry{
				{Token: "old", IssuedAt: base.Add(-10 * 24 * time.Hour)},
				{Token: "a", IssuedAt: base.Add(-time.Hour)},
				{Token: "b", IssuedAt: base},
			},
		}
	}

	t.Run("add appends and prunes expired entries", func(t *testing.T) {
		p := newPrincipal()
		cutoff := base.Add(-7 * 24 * time.Hour)
		p.Apply(PrincipalPatch{
			PruneRefreshTokensBefore: &cutoff,
			AddRefreshToken:          &RefreshTokenEntry{Token: "c", IssuedAt: base},
			LastLogin:                &base,
		}, base)

		assert.False(t, p.HasRefreshToken("old"))
		assert.True(t, p.HasRefreshToken("a"))
		assert.True(t, p.HasRefreshToken("c"))
		require.NotNil(t, p.LastLogin)
		assert.Equal(t, base, *p.LastLogin)
	})

	t.Run("remove drops one entry", func(t *testing.T) {
		p := newPrincipal()
		p.Apply(PrincipalPatch{RemoveRefreshToken: "a"}, base)

		assert.Len(t, p.RefreshTokens, 2)
		assert.False(t, p.HasRefreshToken("a"))
		assert.True(t, p.HasRefreshToken("b"))
	})

	t.Run("clear drops every entry", func(t *testing.T) {
		p := newPrincipal()
		active := false
		role := RoleAdmin
		p.Apply(PrincipalPatch{ClearRefreshTokens: true, Active: &active, Role: &role}, base)

		assert.Empty(t, p.RefreshTokens)
		assert.False(t, p.Active)
		assert.Equal(t, RoleAdmin, p.Role)
		assert.Equal(t, base, p.UpdatedAt)
	})
}
