// Package policy decides which principals may run which account operations.
// It is evaluated before any operation touches storage.
package policy

import (
	"account_service/internal/models"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("policy: authentication required")
	ErrForbidden       = errors.New("policy: forbidden")
)

type Operation string

const (
	OpRegister      Operation = "register"
	OpLogin         Operation = "login"
	OpRefresh       Operation = "refresh"
	OpLogout        Operation = "logout"
	OpReadSelf      Operation = "read_self"
	OpUpdateSelf    Operation = "update_self"
	OpListAccounts  Operation = "list_accounts"
	OpReadAccount   Operation = "read_account"
	OpUpdateAccount Operation = "update_account"
	OpDeleteAccount Operation = "delete_account"
)

type capability int

const (
	anonymous capability = iota
	// authenticated and acting on a target owned by the principal
	self
	admin
)

var requirements = map[Operation]capability{
	OpRegister:      anonymous,
	OpLogin:         anonymous,
	OpRefresh:       anonymous,
	OpLogout:        self,
	OpReadSelf:      self,
	OpUpdateSelf:    self,
	OpListAccounts:  admin,
	OpReadAccount:   admin,
	OpUpdateAccount: admin,
	OpDeleteAccount: admin,
}

// Authorize checks principal against op. principal is nil for anonymous
// callers. target is the id of the account the operation acts on; for logout
// it is the subject of the refresh token being revoked.
func Authorize(principal *models.Account, op Operation, target string) error {
	required, ok := requirements[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrForbidden, op)
	}

	if required == anonymous {
		return nil
	}

	if principal == nil || !principal.IsActive {
		return ErrUnauthenticated
	}

	switch required {
	case self:
		if target != principal.ID.String() {
			return fmt.Errorf("%w: %s on another account", ErrForbidden, op)
		}
	case admin:
		if !principal.IsAdmin {
			return fmt.Errorf("%w: %s requires admin", ErrForbidden, op)
		}
	}

	return nil
}
