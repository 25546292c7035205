package auth

import (
	"account_service/internal/models"
	"account_service/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// Claims binds a token to an account (subject) and to its purpose. The jti
// is what the revocation registry keys on.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenService struct {
	cfg      TokenConfig
	registry storage.RevocationRegistry
	now      func() time.Time
}

func NewTokenService(cfg TokenConfig, registry storage.RevocationRegistry) (*TokenService, error) {
	const op = "auth.NewTokenService"

	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%s: empty signing secret", op)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: token ttls must be positive", op)
	}
	if registry == nil {
		return nil, fmt.Errorf("%s: revocation registry required", op)
	}

	return &TokenService{
		cfg:      cfg,
		registry: registry,
		now:      time.Now,
	}, nil
}

// Issue always mints a fresh pair; earlier pairs for the account stay valid.
func (s *TokenService) Issue(account models.Account) (models.TokenPair, error) {
	const op = "auth.TokenService.Issue"

	subject := account.ID.String()

	access, err := s.sign(subject, AccessToken, s.cfg.AccessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.sign(subject, RefreshToken, s.cfg.RefreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token.
// Signature and expiry are checked before the registry is consulted.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.TokenService.Refresh"

	claims, err := s.ParseRefresh(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return "", fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	access, err := s.sign(claims.Subject, AccessToken, s.cfg.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return access, nil
}

// Revoke blacklists a refresh token until it would have expired anyway.
// A second revoke of the same token fails with ErrTokenRevoked.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	const op = "auth.TokenService.Revoke"

	claims, err := s.ParseRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ttl := claims.ExpiresAt.Sub(s.now())

	if err := s.registry.Revoke(ctx, claims.ID, ttl); err != nil {
		if errors.Is(err, storage.ErrAlreadyRevoked) {
			return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *TokenService) ParseAccess(tokenStr string) (*Claims, error) {
	return s.parse(tokenStr, AccessToken)
}

func (s *TokenService) ParseRefresh(tokenStr string) (*Claims, error) {
	return s.parse(tokenStr, RefreshToken)
}

func (s *TokenService) parse(tokenStr string, want TokenType) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, want, claims.TokenType)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrInvalidToken)
	}

	return claims, nil
}

func (s *TokenService) sign(subject string, tokenType TokenType, ttl time.Duration) (string, error) {
	now := s.now()

	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.Secret)
}
