package storage

import (
	"account_service/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
)

// MemoryStorage keeps accounts in process. All writes run under one lock so
// the email uniqueness check and the insert are a single atomic step.
type MemoryStorage struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
	emails   map[string]uuid.UUID
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[uuid.UUID]models.Account),
		emails:   make(map[string]uuid.UUID),
	}
}

func (m *MemoryStorage) CreateAccount(_ context.Context, account models.Account) (models.Account, error) {
	const op = "storage.CreateAccount"

	key := models.NormalizeEmail(account.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.emails[key]; ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}
	if _, ok := m.accounts[account.ID]; ok {
		return models.Account{}, fmt.Errorf("%s: id %s already exists", op, account.ID)
	}

	m.accounts[account.ID] = account
	m.emails[key] = account.ID

	return account, nil
}

func (m *MemoryStorage) GetAccountByID(_ context.Context, id uuid.UUID) (models.Account, error) {
	const op = "storage.GetAccountByID"

	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return account, nil
}

func (m *MemoryStorage) GetAccountByEmail(_ context.Context, email string) (models.Account, error) {
	const op = "storage.GetAccountByEmail"

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[models.NormalizeEmail(email)]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return m.accounts[id], nil
}

func (m *MemoryStorage) UpdateAccount(_ context.Context, id uuid.UUID, patch models.AccountPatch) (models.Account, error) {
	const op = "storage.UpdateAccount"

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	oldKey := models.NormalizeEmail(account.Email)
	newKey := oldKey
	if patch.Email != nil {
		newKey = models.NormalizeEmail(*patch.Email)
		if owner, taken := m.emails[newKey]; taken && owner != id {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		account.Email = *patch.Email
	}
	if patch.Username != nil {
		account.Username = *patch.Username
	}
	if patch.Phone != nil {
		account.Phone = *patch.Phone
	}
	if patch.IsActive != nil {
		account.IsActive = *patch.IsActive
	}
	if patch.IsAdmin != nil {
		account.IsAdmin = *patch.IsAdmin
	}

	if newKey != oldKey {
		delete(m.emails, oldKey)
		m.emails[newKey] = id
	}
	m.accounts[id] = account

	return account, nil
}

func (m *MemoryStorage) DeleteAccount(_ context.Context, id uuid.UUID) error {
	const op = "storage.DeleteAccount"

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	delete(m.emails, models.NormalizeEmail(account.Email))
	delete(m.accounts, id)

	return nil
}

func (m *MemoryStorage) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.RLock()
	accounts := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, account)
	}
	m.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].DateJoined.Equal(accounts[j].DateJoined) {
			return accounts[i].ID.String() < accounts[j].ID.String()
		}
		return accounts[i].DateJoined.Before(accounts[j].DateJoined)
	})

	return accounts, nil
}

func (m *MemoryStorage) Close() {}
