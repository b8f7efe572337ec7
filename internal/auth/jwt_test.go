package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferretex/ferretex-api/internal/auth"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	p := auth.Principal{ID: "u1", Email: "ana@example.com", Role: auth.RoleStaff}

	raw, err := auth.IssueToken(secret, p)
	require.NoError(t, err)

	got, err := auth.VerifyToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	raw, err := auth.IssueToken(secret, auth.Principal{ID: "u1", Role: auth.RoleCustomer})
	require.NoError(t, err)

	_, err = auth.VerifyToken([]byte("other-secret"), raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	_, err := auth.VerifyToken(secret, "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyTokenRejectsUnknownRole(t *testing.T) {
	raw, err := auth.IssueToken(secret, auth.Principal{ID: "u1", Role: "superadmin"})
	require.NoError(t, err)

	_, err = auth.VerifyToken(secret, raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
