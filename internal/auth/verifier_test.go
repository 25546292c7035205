package auth

import (
	"account_service/internal/models"
	"account_service/internal/storage"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingFinder struct{}

func (failingFinder) GetAccountByEmail(context.Context, string) (models.Account, error) {
	return models.Account{}, errors.New("database is down")
}

func seedAccount(t *testing.T, st *storage.MemoryStorage, email, password string, active bool) models.Account {
	t.Helper()

	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)

	account, err := st.CreateAccount(context.Background(), models.Account{
		ID:           uuid.Must(uuid.NewV4()),
		Email:        email,
		Username:     "user",
		PasswordHash: hash,
		DateJoined:   time.Now().UTC(),
		IsActive:     active,
	})
	require.NoError(t, err)

	return account
}

func TestCredentialVerifier_Verify(t *testing.T) {
	st := storage.NewMemoryStorage()
	active := seedAccount(t, st, "a@x.com", "p1", true)
	seedAccount(t, st, "inactive@x.com", "p1", false)

	verifier, err := NewCredentialVerifier(st, bcrypt.MinCost)
	require.NoError(t, err)

	ctx := context.Background()

	got, err := verifier.Verify(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	got, err = verifier.Verify(ctx, "  A@X.COM ", "p1")
	require.NoError(t, err, "lookup must use the same case folding as registration")
	assert.Equal(t, active.ID, got.ID)

	failures := map[string][2]string{
		"wrong password":   {"a@x.com", "p2"},
		"unknown email":    {"nobody@x.com", "p1"},
		"inactive account": {"inactive@x.com", "p1"},
		"empty password":   {"a@x.com", ""},
	}

	var messages []string
	for name, creds := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, creds[0], creds[1])
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.NotErrorIs(t, err, storage.ErrNotFound)
			messages = append(messages, err.Error())
		})
	}

	for _, msg := range messages {
		assert.Equal(t, messages[0], msg, "failures must be indistinguishable")
	}
}

func TestCredentialVerifier_StorageFailureIsNotMasked(t *testing.T) {
	verifier, err := NewCredentialVerifier(failingFinder{}, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), "a@x.com", "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
