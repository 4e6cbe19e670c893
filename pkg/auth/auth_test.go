package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/library-service/pkg/auth"
)

var secret = []byte("test-secret")

func TestToken_RoundTrip(t *testing.T) {
	t.Parallel()

	actor := auth.Actor{UserID: 7, Email: "member@library.local", Role: "MEMBER"}
	token, expiresAt, err := auth.NewToken(actor, secret, time.Hour)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	got, err := auth.ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, actor, got)
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()

	token, _, err := auth.NewToken(auth.Actor{UserID: 7}, secret, -time.Minute)
	require.NoError(t, err)

	_, err = auth.ParseToken(token, secret)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := auth.NewToken(auth.Actor{UserID: 7}, secret, time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken(token, []byte("other-secret"))
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := auth.ParseToken("not-a-token", secret)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestAuthContext(t *testing.T) {
	t.Parallel()

	_, ok := auth.FromContext(context.Background())
	require.False(t, ok)

	actor := auth.Actor{UserID: 7, Email: "member@library.local", Role: "MEMBER"}
	ctx := auth.SetAuthContext(context.Background(), actor)
	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, actor, got)
}
