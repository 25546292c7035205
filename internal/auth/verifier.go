package auth

import (
	"account_service/internal/models"
	"account_service/internal/storage"
	"context"
	"errors"
	"fmt"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

type AccountFinder interface {
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
}

// CredentialVerifier answers every failed login the same way: unknown
// email, inactive account and wrong password all yield ErrInvalidCredentials.
type CredentialVerifier struct {
	accounts AccountFinder
	// compared against when no account matches so both paths cost one bcrypt run
	dummyHash string
}

func NewCredentialVerifier(accounts AccountFinder, bcryptCost int) (*CredentialVerifier, error) {
	const op = "auth.NewCredentialVerifier"

	dummy, err := HashPassword("account-does-not-exist", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &CredentialVerifier{
		accounts:  accounts,
		dummyHash: dummy,
	}, nil
}

func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (models.Account, error) {
	const op = "auth.CredentialVerifier.Verify"

	account, err := v.accounts.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			CheckPasswordHash(v.dummyHash, password)
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if !CheckPasswordHash(account.PasswordHash, password) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !account.IsActive {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return account, nil
}
