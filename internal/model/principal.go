package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// ParseRole normalizes raw and reports whether it names a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleManager, RoleEmployee:
		return role, true
	default:
		return "", false
	}
}

type RefreshTokenEntry struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

type Principal struct {
	ID            string              `json:"id"`
	Email         string              `json:"email"`
	PasswordHash  string              `json:"-"`
	Role          Role                `json:"role"`
	Active        bool                `json:"active"`
	RefreshTokens []RefreshTokenEntry `json:"-"`
	LastLogin     *time.Time          `json:"last_login,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// HasRefreshToken reports whether token is still listed on the principal.
func (p Principal) HasRefreshToken(token string) bool {
	for _, entry := range p.RefreshTokens {
		if entry.Token == token {
			return true
		}
	}
	return false
}

// PrincipalPatch is a partial update. Nil fields are left untouched.
type PrincipalPatch struct {
	AddRefreshToken          *RefreshTokenEntry
	RemoveRefreshToken       string
	ClearRefreshTokens       bool
	PruneRefreshTokensBefore *time.Time
	LastLogin                *time.Time
	Role                     *Role
	Active                   *bool
	PasswordHash             *string
}

type AuthClaims struct {
	PrincipalID string `json:"sub"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Type        string `json:"typ"`
	TokenID     string `json:"jti"`
}

type AuthUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (p Principal) Public() AuthUser {
	return AuthUser{ID: p.ID, Email: p.Email, Role: p.Role, Active: p.Active, LastLogin: p.LastLogin}
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}

type AccessGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Apply performs patch on p in the order prune, remove/clear, add.
func (p *Principal) Apply(patch PrincipalPatch, now time.Time) {
	tokens := p.RefreshTokens
	if patch.ClearRefreshTokens {
		tokens = nil
	}

	if patch.PruneRefreshTokensBefore != nil || patch.RemoveRefreshToken != "" {
		kept := make([]RefreshTokenEntry, 0, len(tokens))
		for _, entry := range tokens {
			if patch.PruneRefreshTokensBefore != nil && !entry.IssuedAt.After(*patch.PruneRefreshTokensBefore) {
				continue
			}
			if patch.RemoveRefreshToken != "" && entry.Token == patch.RemoveRefreshToken {
				continue
			}
			kept = append(kept, entry)
		}
		tokens = kept
	}

	if patch.AddRefreshToken != nil {
		tokens = append(tokens, *patch.AddRefreshToken)
	}
	p.RefreshTokens = tokens

	if patch.LastLogin != nil {
		lastLogin := *patch.LastLogin
		p.LastLogin = &lastLogin
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.PasswordHash != nil {
		p.PasswordHash = *patch.PasswordHash
	}
	p.UpdatedAt = now
}
