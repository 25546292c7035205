package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofrs/uuid"
)

// emailFormat checks syntax only; is.Email would also resolve the domain.
var emailFormat = validation.NewStringRule(govalidator.IsEmail, "must be a valid email address")

const (
	maxUsernameLength = 150
	maxEmailLength    = 254
	maxPhoneLength    = 15
	// bcrypt ignores input past 72 bytes
	maxPasswordLength = 72
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	DateJoined   time.Time `json:"date_joined"`
	IsActive     bool      `json:"is_active"`
	IsAdmin      bool      `json:"is_admin"`
}

// AccountDraft is a registration request. Password is plaintext and must be
// hashed before it leaves the service layer.
type AccountDraft struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (d AccountDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Email, validation.Required, validation.Length(3, maxEmailLength), emailFormat),
		validation.Field(&d.Username, validation.Required, validation.Length(1, maxUsernameLength)),
		validation.Field(&d.Password, validation.Required, validation.Length(1, maxPasswordLength)),
		validation.Field(&d.Phone, validation.Length(0, maxPhoneLength)),
	)
}

// AccountPatch is a partial update. Nil fields are left untouched.
type AccountPatch struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

func (p AccountPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, maxEmailLength), emailFormat),
		validation.Field(&p.Username, validation.NilOrNotEmpty, validation.Length(1, maxUsernameLength)),
		validation.Field(&p.Phone, validation.Length(0, maxPhoneLength)),
	)
}

func (p AccountPatch) IsEmpty() bool {
	return p.Email == nil && p.Username == nil && p.Phone == nil && p.IsActive == nil && p.IsAdmin == nil
}

// SelfService drops the fields an account may not change on itself.
func (p AccountPatch) SelfService() AccountPatch {
	p.IsActive = nil
	p.IsAdmin = nil
	return p
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// NormalizeEmail is the single case-folding rule for storing and looking up emails.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
