package storage

import (
	"account_service/internal/models"
	"context"
	"errors"

	"github.com/gofrs/uuid"
)

const (
	accountsTable = "accounts"
)

var (
	ErrNotFound       = errors.New("storage: not found")
	ErrDuplicateEmail = errors.New("storage: email already registered")
)

// Storage persists accounts. Implementations enforce email uniqueness
// atomically at write time; emails are expected to be normalized already.
type Storage interface {
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, patch models.AccountPatch) (models.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ListAccounts(ctx context.Context) ([]models.Account, error)

	Close()
}
