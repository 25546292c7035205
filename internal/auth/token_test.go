package auth

import (
	"account_service/internal/models"
	"account_service/internal/storage"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyRegistry struct {
	inner      storage.RevocationRegistry
	err        error
	revokes    int
	lookups    int
	lastRevoke time.Duration
}

func (s *spyRegistry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.revokes++
	s.lastRevoke = ttl
	if s.err != nil {
		return s.err
	}
	return s.inner.Revoke(ctx, jti, ttl)
}

func (s *spyRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.lookups++
	if s.err != nil {
		return false, s.err
	}
	return s.inner.IsRevoked(ctx, jti)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestTokenService(t *testing.T) (*TokenService, *spyRegistry, *fakeClock) {
	t.Helper()

	registry := &spyRegistry{inner: storage.NewMemoryRevocationRegistry()}
	svc, err := NewTokenService(TokenConfig{
		Secret:     []byte("test-secret"),
		Issuer:     "account_service",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
	}, registry)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	svc.now = clock.Now

	return svc, registry, clock
}

func testAccount() models.Account {
	return models.Account{ID: uuid.Must(uuid.NewV4()), Email: "a@x.com", IsActive: true}
}

func TestNewTokenServiceValidatesConfig(t *testing.T) {
	registry := storage.NewMemoryRevocationRegistry()

	_, err := NewTokenService(TokenConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour}, registry)
	assert.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: []byte("s"), RefreshTTL: time.Hour}, registry)
	assert.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: []byte("s"), AccessTTL: time.Minute, RefreshTTL: time.Hour}, nil)
	assert.Error(t, err)
}

func TestTokenService_IssueBindsSubjectAndType(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	account := testAccount()

	pair, err := svc.Issue(account)
	require.NoError(t, err)

	access, err := svc.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), access.Subject)
	assert.Equal(t, AccessToken, access.TokenType)
	assert.Equal(t, clock.now.Add(5*time.Minute).Unix(), access.ExpiresAt.Unix())
	assert.NotEmpty(t, access.ID)

	refresh, err := svc.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), refresh.Subject)
	assert.Equal(t, RefreshToken, refresh.TokenType)
	assert.NotEqual(t, access.ID, refresh.ID)

	_, err = svc.ParseAccess(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not pass as access token")

	_, err = svc.ParseRefresh(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must not pass as refresh token")
}

func TestTokenService_IssueDoesNotInvalidateEarlierPairs(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	account := testAccount()

	first, err := svc.Issue(account)
	require.NoError(t, err)
	second, err := svc.Issue(account)
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	_, err = svc.Refresh(context.Background(), first.Refresh)
	assert.NoError(t, err)
	_, err = svc.Refresh(context.Background(), second.Refresh)
	assert.NoError(t, err)
}

func TestTokenService_Refresh(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	account := testAccount()

	pair, err := svc.Issue(account)
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)

	claims, err := svc.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.Subject)
}

func TestTokenService_RevokeThenRefreshFails(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(testAccount())
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.Refresh))

	// still well-formed and unexpired
	_, err = svc.ParseRefresh(pair.Refresh)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	err = svc.Revoke(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestTokenService_RevokeUsesRemainingLifetime(t *testing.T) {
	svc, registry, clock := newTestTokenService(t)

	pair, err := svc.Issue(testAccount())
	require.NoError(t, err)

	clock.now = clock.now.Add(20 * time.Minute)
	require.NoError(t, svc.Revoke(context.Background(), pair.Refresh))
	assert.Equal(t, 40*time.Minute, registry.lastRevoke)
}

func TestTokenService_ExpiredTokenNeverReachesRegistry(t *testing.T) {
	svc, registry, clock := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(testAccount())
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Hour)

	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)

	err = svc.Revoke(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = svc.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	assert.Zero(t, registry.lookups)
	assert.Zero(t, registry.revokes)
}

func TestTokenService_RejectsMalformedTokens(t *testing.T) {
	svc, registry, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(testAccount())
	require.NoError(t, err)

	parts := strings.Split(pair.Refresh, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		TokenType: RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "someone",
			Issuer:    "account_service",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		TokenType: RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "someone",
			Issuer:    "account_service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tokens := map[string]string{
		"empty":             "",
		"garbage":           "not-a-token",
		"tampered":          tampered,
		"foreign secret":    foreign,
		"alg none":          unsigned,
		"access as refresh": pair.Access,
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Refresh(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)

			err = svc.Revoke(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	assert.Zero(t, registry.lookups)
	assert.Zero(t, registry.revokes)
}

func TestTokenService_RegistryFailureIsNotInvalidToken(t *testing.T) {
	svc, registry, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(testAccount())
	require.NoError(t, err)

	registry.err = errors.New("connection refused")

	err = svc.Revoke(ctx, pair.Refresh)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.Refresh(ctx, pair.Refresh)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}
