package users

import (
	"context"
	"testing"

	"storefront/internal/stores/postgres/postgrestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(string(hash), "hunter22"))
	assert.ErrorIs(t, CheckPassword(string(hash), "hunter23"), ErrInvalidCredentials)
	assert.Error(t, CheckPassword("not-a-hash", "hunter22"))
}

func TestNewConfRejectsNilDB(t *testing.T) {
	_, err := NewConf(nil)
	assert.Error(t, err)
}

func TestSignupAndLogin(t *testing.T) {
	db := postgrestest.Open(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	nu := NewUser{Email: "Ada@Example.com ", Password: "analytical", Name: "Ada", Surname: "Lovelace"}
	created, err := conf.InsertUser(ctx, nu)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	_, err = conf.InsertUser(ctx, nu)
	assert.ErrorIs(t, err, ErrEmailTaken)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = 'ada@example.com'`).Scan(&count))
	assert.Equal(t, 1, count)

	u, err := conf.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "analytical"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = conf.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "difference"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = conf.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "analytical"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	all, err := conf.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].PasswordHash)
}
