package auth

import (
	"context"
	"testing"

	golangjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

func TestAnonymousProvider_AlwaysSucceeds(t *testing.T) {
	t.Parallel()

	id, err := AnonymousProvider{}.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}

func TestLocalProvider_RejectsEmptyAndWrongToken(t *testing.T) {
	t.Parallel()

	p := NewLocalProvider("secret-token")

	_, err := p.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindUnauthenticated, bridgeerrors.Classify(err))

	_, err = p.Authenticate(context.Background(), "wrong")
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindUnauthenticated, bridgeerrors.Classify(err))
}

func TestLocalProvider_AcceptsCorrectToken(t *testing.T) {
	t.Parallel()

	p := NewLocalProvider("secret-token")
	id, err := p.Authenticate(context.Background(), "secret-token")
	require.NoError(t, err)
	assert.Equal(t, "local", id.Subject)
}

func TestIdentityFromClaims(t *testing.T) {
	t.Parallel()

	claims := golangjwt.MapClaims{
		"sub":    "user-1",
		"email":  "user@example.com",
		"name":   "User One",
		"groups": []any{"admin", "viewer"},
	}
	id := identityFromClaims(claims, "raw-token")
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, "user@example.com", id.Email)
	assert.Equal(t, []string{"admin", "viewer"}, id.Groups)
	assert.Equal(t, "raw-token", id.Token)
}
