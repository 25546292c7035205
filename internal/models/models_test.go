package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		draft   AccountDraft
		wantErr bool
	}{
		{name: "minimal", draft: AccountDraft{Username: "u1", Email: "a@x.com", Password: "p1"}},
		{name: "with phone", draft: AccountDraft{Username: "u1", Email: "a@x.com", Password: "p1", Phone: "+15551234567"}},
		{name: "missing email", draft: AccountDraft{Username: "u1", Password: "p1"}, wantErr: true},
		{name: "bad email", draft: AccountDraft{Username: "u1", Email: "a-at-x", Password: "p1"}, wantErr: true},
		{name: "missing username", draft: AccountDraft{Email: "a@x.com", Password: "p1"}, wantErr: true},
		{name: "long username", draft: AccountDraft{Username: strings.Repeat("u", 151), Email: "a@x.com", Password: "p1"}, wantErr: true},
		{name: "missing password", draft: AccountDraft{Username: "u1", Email: "a@x.com"}, wantErr: true},
		{name: "long password", draft: AccountDraft{Username: "u1", Email: "a@x.com", Password: strings.Repeat("p", 73)}, wantErr: true},
		{name: "long phone", draft: AccountDraft{Username: "u1", Email: "a@x.com", Password: "p1", Phone: strings.Repeat("1", 16)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAccountPatch_Validate(t *testing.T) {
	empty := ""
	bad := "nope"
	good := "b@x.com"

	assert.NoError(t, AccountPatch{}.Validate())
	assert.NoError(t, AccountPatch{Email: &good}.Validate())
	assert.NoError(t, AccountPatch{Phone: &empty}.Validate())
	assert.Error(t, AccountPatch{Email: &empty}.Validate())
	assert.Error(t, AccountPatch{Email: &bad}.Validate())
	assert.Error(t, AccountPatch{Username: &empty}.Validate())
}

func TestAccountPatch_SelfService(t *testing.T) {
	name := "u2"
	yes := true

	patch := AccountPatch{Username: &name, IsActive: &yes, IsAdmin: &yes}.SelfService()

	assert.Equal(t, &name, patch.Username)
	assert.Nil(t, patch.IsActive)
	assert.Nil(t, patch.IsAdmin)
	assert.False(t, patch.IsEmpty())
	assert.True(t, AccountPatch{IsAdmin: &yes}.SelfService().IsEmpty())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
