package service

import (
	"account_service/internal/auth"
	"account_service/internal/models"
	"account_service/internal/policy"
	"account_service/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Service is the account use-case surface. Every call that needs an
// identity takes the principal explicitly; nil means anonymous.
type Service interface {
	Register(ctx context.Context, draft models.AccountDraft) (models.Account, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, principal *models.Account, refreshToken string) error
	ResolvePrincipal(ctx context.Context, accessToken string) (*models.Account, error)

	GetProfile(ctx context.Context, principal *models.Account) (models.Account, error)
	UpdateProfile(ctx context.Context, principal *models.Account, patch models.AccountPatch) (models.Account, error)

	ListAccounts(ctx context.Context, principal *models.Account) ([]models.Account, error)
	GetAccount(ctx context.Context, principal *models.Account, id uuid.UUID) (models.Account, error)
	UpdateAccount(ctx context.Context, principal *models.Account, id uuid.UUID, patch models.AccountPatch) (models.Account, error)
	DeleteAccount(ctx context.Context, principal *models.Account, id uuid.UUID) error
}

type LoginResult struct {
	Tokens  models.TokenPair
	Account models.Account
}

type Accounts struct {
	storage    storage.Storage
	verifier   *auth.CredentialVerifier
	tokens     *auth.TokenService
	bcryptCost int
	log        *slog.Logger
	now        func() time.Time
}

var _ Service = (*Accounts)(nil)

func NewService(st storage.Storage, tokens *auth.TokenService, bcryptCost int, lgr *slog.Logger) (*Accounts, error) {
	const op = "service.NewService"

	verifier, err := auth.NewCredentialVerifier(st, bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Accounts{
		storage:    st,
		verifier:   verifier,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        lgr,
		now:        time.Now,
	}, nil
}

func (s *Accounts) Register(ctx context.Context, draft models.AccountDraft) (models.Account, error) {
	const op = "service.Register"

	if err := policy.Authorize(nil, policy.OpRegister, ""); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	draft.Email = models.NormalizeEmail(draft.Email)
	draft.Username = strings.TrimSpace(draft.Username)
	draft.Phone = strings.TrimSpace(draft.Phone)

	if err := draft.Validate(); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	// The unique index decides races; this only gives the common case a clean error.
	if err := s.ensureEmailFree(ctx, draft.Email, uuid.Nil); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := auth.HashPassword(draft.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return models.Account{}, fmt.Errorf("%s: %w", op, newValidationError(fmt.Errorf("password: %w", err)))
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.storage.CreateAccount(ctx, models.Account{
		ID:           id,
		Email:        draft.Email,
		Username:     draft.Username,
		PasswordHash: passwordHash,
		Phone:        draft.Phone,
		DateJoined:   s.now().UTC(),
		IsActive:     true,
	})
	if err != nil {
		return models.Account{}, storageError(op, err)
	}

	s.log.Info("account registered", slog.String("op", op), slog.String("account_id", created.ID.String()))

	return created, nil
}

func (s *Accounts) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "service.Login"

	if err := policy.Authorize(nil, policy.OpLogin, ""); err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if strings.TrimSpace(email) == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%s: %w", op, newValidationError(errors.New("email and password are required")))
	}

	account, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.tokens.Issue(account)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("account logged in", slog.String("op", op), slog.String("account_id", account.ID.String()))

	return LoginResult{Tokens: pair, Account: account}, nil
}

func (s *Accounts) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "service.Refresh"

	if err := policy.Authorize(nil, policy.OpRefresh, ""); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return access, nil
}

// Logout revokes one of the principal's own refresh tokens.
func (s *Accounts) Logout(ctx context.Context, principal *models.Account, refreshToken string) error {
	const op = "service.Logout"

	if err := policy.Authorize(principal, policy.OpLogout, principalID(principal)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := policy.Authorize(principal, policy.OpLogout, claims.Subject); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("refresh token revoked", slog.String("op", op), slog.String("account_id", principal.ID.String()))

	return nil
}

// ResolvePrincipal turns a bearer access token into the account it names.
// Deleted or deactivated accounts resolve to policy.ErrUnauthenticated.
func (s *Accounts) ResolvePrincipal(ctx context.Context, accessToken string) (*models.Account, error) {
	const op = "service.ResolvePrincipal"

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, auth.ErrInvalidToken)
	}

	account, err := s.storage.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, policy.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !account.IsActive {
		return nil, fmt.Errorf("%s: %w", op, policy.ErrUnauthenticated)
	}

	return &account, nil
}

func (s *Accounts) GetProfile(_ context.Context, principal *models.Account) (models.Account, error) {
	const op = "service.GetProfile"

	if err := policy.Authorize(principal, policy.OpReadSelf, principalID(principal)); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return *principal, nil
}

// UpdateProfile applies only email, username and phone; admin and active
// flags in the patch are dropped.
func (s *Accounts) UpdateProfile(ctx context.Context, principal *models.Account, patch models.AccountPatch) (models.Account, error) {
	const op = "service.UpdateProfile"

	if err := policy.Authorize(principal, policy.OpUpdateSelf, principalID(principal)); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.update(ctx, op, principal.ID, patch.SelfService())
}

func (s *Accounts) ListAccounts(ctx context.Context, principal *models.Account) ([]models.Account, error) {
	const op = "service.ListAccounts"

	if err := policy.Authorize(principal, policy.OpListAccounts, ""); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, storageError(op, err)
	}

	return accounts, nil
}

func (s *Accounts) GetAccount(ctx context.Context, principal *models.Account, id uuid.UUID) (models.Account, error) {
	const op = "service.GetAccount"

	if err := policy.Authorize(principal, policy.OpReadAccount, id.String()); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.GetAccountByID(ctx, id)
	if err != nil {
		return models.Account{}, storageError(op, err)
	}

	return account, nil
}

func (s *Accounts) UpdateAccount(ctx context.Context, principal *models.Account, id uuid.UUID, patch models.AccountPatch) (models.Account, error) {
	const op = "service.UpdateAccount"

	if err := policy.Authorize(principal, policy.OpUpdateAccount, id.String()); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.update(ctx, op, id, patch)
}

func (s *Accounts) DeleteAccount(ctx context.Context, principal *models.Account, id uuid.UUID) error {
	const op = "service.DeleteAccount"

	if err := policy.Authorize(principal, policy.OpDeleteAccount, id.String()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteAccount(ctx, id); err != nil {
		return storageError(op, err)
	}

	s.log.Info("account deleted",
		slog.String("op", op),
		slog.String("account_id", id.String()),
		slog.String("by", principal.ID.String()),
	)

	return nil
}

func (s *Accounts) update(ctx context.Context, op string, id uuid.UUID, patch models.AccountPatch) (models.Account, error) {
	if patch.Email != nil {
		email := models.NormalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		patch.Username = &username
	}
	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		patch.Phone = &phone
	}

	if err := patch.Validate(); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	if patch.Email != nil {
		if err := s.ensureEmailFree(ctx, *patch.Email, id); err != nil {
			return models.Account{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	updated, err := s.storage.UpdateAccount(ctx, id, patch)
	if err != nil {
		return models.Account{}, storageError(op, err)
	}

	return updated, nil
}

// ensureEmailFree fails with ErrDuplicateEmail when email belongs to an
// account other than owner.
func (s *Accounts) ensureEmailFree(ctx context.Context, email string, owner uuid.UUID) error {
	existing, err := s.storage.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != owner:
		return ErrDuplicateEmail
	}

	return nil
}

func principalID(principal *models.Account) string {
	if principal == nil {
		return ""
	}
	return principal.ID.String()
}
