package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"marketing-backend/internal/event"
	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultPasswordCost = 12
	minPasswordLength   = 8
)

// PrincipalStore persists principals and their refresh-token lists.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string, activeOnly bool) (model.Principal, error)
	FindByID(ctx context.Context, id string) (model.Principal, error)
	Update(ctx context.Context, id string, patch model.PrincipalPatch) error
	Create(ctx context.Context, p model.Principal) error
	List(ctx context.Context) ([]model.Principal, error)
	Count(ctx context.Context) (int, error)
}

type AuthFailureObserver interface {
	ObserveAuthFailure(reason string)
}

type tokenClaims struct {
	Email string     `json:"email,omitempty"`
	Role  model.Role `json:"role,omitempty"`
	Type  string     `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies session tokens. Access tokens are stateless
// and stay valid until they expire, even after RevokeAll. Refresh tokens are
// valid only while listed on an active principal.
type AuthService struct {
	store        PrincipalStore
	jwtSecret    []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	passwordCost int
	now          func() time.Time
	observer     AuthFailureObserver
	bus          event.Bus

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(store PrincipalStore, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		store:        store,
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		passwordCost: defaultPasswordCost,
		now:          time.Now,
		bus:          event.Discard{},
	}
}

func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) SetPasswordCost(cost int) {
	s.passwordCost = cost
}

func (s *AuthService) SetFailureObserver(observer AuthFailureObserver) {
	s.observer = observer
}

func (s *AuthService) SetEventBus(bus event.Bus) {
	s.bus = bus
}

// Authenticate verifies email and secret against an active principal and
// records a new refresh token on it.
func (s *AuthService) Authenticate(ctx context.Context, email string, secret string) (model.TokenPair, error) {
	email = normalizeEmail(email)

	principal, err := s.store.FindByEmail(ctx, email, true)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.TokenPair{}, fmt.Errorf("find principal: %w", err)
		}
		s.compareDummy(secret)
		s.fail("unknown_principal", "authentication failed", "email", email)
		return model.TokenPair{}, errInvalidCredentials()
	}

	if !principal.Active {
		s.compareDummy(secret)
		s.fail("inactive_principal", "authentication failed", "email", email)
		return model.TokenPair{}, errInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(secret)); err != nil {
		s.fail("bad_secret", "authentication failed", "email", email)
		return model.TokenPair{}, errInvalidCredentials()
	}

	now := s.now().UTC()
	accessToken, err := s.signAccess(principal, now)
	if err != nil {
		return model.TokenPair{}, err
	}
	refreshToken, err := s.signRefresh(principal, now)
	if err != nil {
		return model.TokenPair{}, err
	}

	cutoff := now.Add(-s.refreshTTL)
	patch := model.PrincipalPatch{
		PruneRefreshTokensBefore: &cutoff,
		AddRefreshToken:          &model.RefreshTokenEntry{Token: refreshToken, IssuedAt: now},
		LastLogin:                &now,
	}
	if err := s.store.Update(ctx, principal.ID, patch); err != nil {
		return model.TokenPair{}, fmt.Errorf("record refresh token: %w", err)
	}
	principal.LastLogin = &now

	slog.Info("principal authenticated", "principal_id", principal.ID, "role", principal.Role)
	s.bus.Publish(event.New(event.TypePrincipalLogin, principal.ID, map[string]string{"email": principal.Email}))

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         principal.Public(),
	}, nil
}

// Refresh mints a new access token. The refresh token is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.AccessGrant, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return model.AccessGrant{}, err
	}

	principal, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.fail("unknown_principal", "refresh rejected", "principal_id", claims.Subject)
			return model.AccessGrant{}, errInvalidToken("principal not found")
		}
		return model.AccessGrant{}, fmt.Errorf("find principal: %w", err)
	}

	if !principal.Active {
		s.fail("inactive_principal", "refresh rejected", "principal_id", principal.ID, "email", principal.Email)
		return model.AccessGrant{}, errInvalidToken("principal is inactive")
	}
	if !principal.HasRefreshToken(refreshToken) {
		s.fail("revoked_token", "refresh rejected", "principal_id", principal.ID, "email", principal.Email)
		return model.AccessGrant{}, errInvalidToken("refresh token has been revoked")
	}

	accessToken, err := s.signAccess(principal, s.now().UTC())
	if err != nil {
		return model.AccessGrant{}, err
	}

	return model.AccessGrant{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

// Revoke removes a single refresh token from the principal.
func (s *AuthService) Revoke(ctx context.Context, principalID string, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "refresh_token is required", "", http.StatusBadRequest)
	}

	if err := s.store.Update(ctx, principalID, model.PrincipalPatch{RemoveRefreshToken: refreshToken}); err != nil {
		return err
	}

	slog.Info("refresh token revoked", "principal_id", principalID)
	return nil
}

// RevokeAll clears every refresh token of the principal. Access tokens already
// issued remain valid until they expire.
func (s *AuthService) RevokeAll(ctx context.Context, principalID string) error {
	if err := s.store.Update(ctx, principalID, model.PrincipalPatch{ClearRefreshTokens: true}); err != nil {
		return err
	}

	slog.Info("all refresh tokens revoked", "principal_id", principalID)
	return nil
}

// Authorize reports whether claims carry one of allowed. An empty allow-set
// admits any authenticated role. Roles do not imply one another.
func Authorize(claims *model.AuthClaims, allowed ...model.Role) bool {
	if claims == nil {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, role := range allowed {
		if claims.Role == role {
			return true
		}
	}
	return false
}

// RequireRole is Authorize as an error: nil when admitted, otherwise an
// INSUFFICIENT_PERMISSIONS error matching model.ErrInsufficientPermissions.
func RequireRole(claims *model.AuthClaims, allowed ...model.Role) error {
	if Authorize(claims, allowed...) {
		return nil
	}
	return apierror.Wrap(model.ErrInsufficientPermissions, "INSUFFICIENT_PERMISSIONS", "insufficient permissions", "", http.StatusForbidden)
}

func (s *AuthService) ValidateAccessToken(token string) (*model.AuthClaims, error) {
	claims, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	return &model.AuthClaims{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Type:        claims.Type,
		TokenID:     claims.ID,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error) {
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return model.AuthUser{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "a valid email is required", req.Email, http.StatusBadRequest)
	}
	if err := validatePassword(req.Password); err != nil {
		return model.AuthUser{}, err
	}

	role := model.RoleEmployee
	if strings.TrimSpace(req.Role) != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return model.AuthUser{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid role", req.Role, http.StatusBadRequest)
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	principal := model.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, principal); err != nil {
		return model.AuthUser{}, err
	}

	slog.Info("principal registered", "principal_id", principal.ID, "email", email, "role", role)
	s.bus.Publish(event.New(event.TypePrincipalRegistered, "", principal.Public()))
	return principal.Public(), nil
}

func (s *AuthService) GetPrincipal(ctx context.Context, id string) (model.AuthUser, error) {
	principal, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.AuthUser{}, err
	}
	return principal.Public(), nil
}

func (s *AuthService) ListPrincipals(ctx context.Context) ([]model.AuthUser, error) {
	principals, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}

	users := make([]model.AuthUser, 0, len(principals))
	for _, p := range principals {
		users = append(users, p.Public())
	}
	return users, nil
}

// UpdatePrincipal changes role and active flag. Deactivating a principal
// also revokes all of its refresh tokens.
func (s *AuthService) UpdatePrincipal(ctx context.Context, id string, req model.UpdateUserRequest) (model.AuthUser, error) {
	var patch model.PrincipalPatch

	if req.Role != nil {
		role, ok := model.ParseRole(*req.Role)
		if !ok {
			return model.AuthUser{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid role", *req.Role, http.StatusBadRequest)
		}
		patch.Role = &role
	}
	if req.Active != nil {
		active := *req.Active
		patch.Active = &active
		patch.ClearRefreshTokens = !active
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return model.AuthUser{}, err
	}
	if patch.ClearRefreshTokens {
		slog.Info("principal deactivated", "principal_id", id)
	}

	user, err := s.GetPrincipal(ctx, id)
	if err != nil {
		return model.AuthUser{}, err
	}
	s.bus.Publish(event.New(event.TypePrincipalUpdated, "", user))
	return user, nil
}

// Deactivate is the soft delete used by the users API. A principal cannot
// deactivate itself.
func (s *AuthService) Deactivate(ctx context.Context, actorID string, id string) error {
	if actorID == id {
		return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "cannot deactivate your own account", "", http.StatusBadRequest)
	}

	inactive := false
	_, err := s.UpdatePrincipal(ctx, id, model.UpdateUserRequest{Active: &inactive})
	return err
}

// ChangePassword replaces the principal's secret and ends all of its sessions.
func (s *AuthService) ChangePassword(ctx context.Context, id string, current string, next string) error {
	principal, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(current)); err != nil {
		s.fail("bad_secret", "password change rejected", "principal_id", id, "email", principal.Email)
		return errInvalidCredentials()
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	encoded := string(hash)

	if err := s.store.Update(ctx, id, model.PrincipalPatch{PasswordHash: &encoded, ClearRefreshTokens: true}); err != nil {
		return err
	}

	slog.Info("password changed", "principal_id", id)
	return nil
}

// EnsureDefaultAdmin seeds an admin when the store holds no principals.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context, email string, secret string) (bool, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count principals: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if strings.TrimSpace(email) == "" || secret == "" {
		slog.Warn("no principals exist and no admin seed is configured")
		return false, nil
	}

	if _, err := s.Register(ctx, model.RegisterRequest{Email: email, Password: secret, Role: string(model.RoleAdmin)}); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

func (s *AuthService) parse(token string, expectedType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.fail("token_expired", "token rejected", "type", expectedType)
			return nil, apierror.Wrap(model.ErrTokenExpired, "TOKEN_EXPIRED", "token has expired", "", http.StatusUnauthorized)
		}
		s.fail("invalid_token", "token rejected", "type", expectedType)
		return nil, errInvalidToken("")
	}
	if !parsed.Valid || claims.Subject == "" {
		s.fail("invalid_token", "token rejected", "type", expectedType)
		return nil, errInvalidToken("invalid token subject")
	}
	if claims.Type != expectedType {
		s.fail("wrong_token_type", "token rejected", "type", expectedType)
		return nil, errInvalidToken("invalid token type")
	}
	return claims, nil
}

func (s *AuthService) signAccess(p model.Principal, now time.Time) (string, error) {
	return s.sign(tokenClaims{
		Email: p.Email,
		Role:  p.Role,
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
}

func (s *AuthService) signRefresh(p model.Principal, now time.Time) (string, error) {
	return s.sign(tokenClaims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	})
}

func (s *AuthService) sign(claims tokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

// compareDummy spends one bcrypt comparison so unknown emails take as long as
// wrong secrets.
func (s *AuthService) compareDummy(secret string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.passwordCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
}

func (s *AuthService) fail(reason string, msg string, args ...any) {
	slog.Warn(msg, append([]any{"reason", reason}, args...)...)
	if s.observer != nil {
		s.observer.ObserveAuthFailure(reason)
	}
}

func errInvalidCredentials() error {
	return apierror.Wrap(model.ErrInvalidCredentials, "INVALID_CREDENTIALS", "invalid email or password", "", http.StatusUnauthorized)
}

func errInvalidToken(details string) error {
	return apierror.Wrap(model.ErrInvalidToken, "INVALID_TOKEN", "invalid token", details, http.StatusUnauthorized)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", fmt.Sprintf("password must be at least %d characters", minPasswordLength), "", http.StatusBadRequest)
	}
	if len(password) > 72 {
		return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "password must be at most 72 bytes", "", http.StatusBadRequest)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
