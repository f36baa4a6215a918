package authcore_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/authcore"
)

func TestAccountContext(t *testing.T) {
	ctx := context.Background()

	_, ok := authcore.FromContext(ctx)
	assert.False(t, ok)

	account := &authcore.Account{ID: uuid.New(), Email: "ada@example.com"}
	ctx = authcore.WithContext(ctx, account)

	found, ok := authcore.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, account.ID, found.ID)
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()

	_, ok := authcore.ClaimsFromContext(ctx)
	assert.False(t, ok)

	claims := &authcore.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-123"},
	}
	ctx = authcore.WithClaimsContext(ctx, claims)

	found, ok := authcore.ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "account-123", found.AccountID())
}
