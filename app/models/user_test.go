package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("Ada Obi", "ada@example.com", "long-enough-password")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_ACTIVE, u.Status)
	assert.NotEqual(t, "long-enough-password", u.Password)
	assert.True(t, u.CheckPassword("long-enough-password"))
	assert.False(t, u.CheckPassword("wrong-password"))
}

func TestCreateUser_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"Short password", "Ada Obi", "ada@example.com", "short"},
		{"Bad email", "Ada Obi", "not-an-email", "long-enough-password"},
		{"Missing name", "", "ada@example.com", "long-enough-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateUser(tt.userName, tt.email, tt.password)
			assert.Error(t, err)
		})
	}
}

func TestUser_IsActive(t *testing.T) {
	assert.True(t, (&User{Status: STATUS_ACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_DISABLED}).IsActive())
}
