package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/protocol"
)

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestAuthSetAndClearCredential(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	_, ok := a.Credential()
	assert.False(t, ok)

	a.SetCredential("opaque-token")
	cred, ok := a.Credential()
	require.True(t, ok)
	assert.Equal(t, "opaque-token", cred.Token)
	assert.True(t, cred.ExpiresAt.IsZero(), "opaque tokens have no expiry hint")

	a.ClearCredential()
	_, ok = a.Credential()
	assert.False(t, ok)
}

func TestAuthJWTExpiryHint(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	a.SetCredential(signedToken(t, expiry))

	cred, ok := a.Credential()
	require.True(t, ok)
	assert.True(t, cred.ExpiresAt.Equal(expiry), "want %v, got %v", expiry, cred.ExpiresAt)
}

func TestAuthLastWriteWins(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	a.SetCredential("first")
	a.SetCredential("second")

	cred, ok := a.Credential()
	require.True(t, ok)
	assert.Equal(t, "second", cred.Token)
}

func TestAuthDecorate(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())
	a.SetCredential("token-123")

	params := map[string]interface{}{"device": "cam1"}
	decorated, ok := a.Decorate(params)
	require.True(t, ok)
	assert.Equal(t, "token-123", decorated["auth_token"])
	assert.Equal(t, "cam1", decorated["device"])

	// The caller's map is left alone.
	_, tainted := params["auth_token"]
	assert.False(t, tainted)
}

func TestAuthDecorateWithoutCredential(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	_, ok := a.Decorate(map[string]interface{}{"device": "cam1"})
	assert.False(t, ok)
}

func TestAuthFailureClearsCredentialAndNotifies(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())
	a.SetCredential("stale-token")

	fired := 0
	a.OnAuthRequired(func() { fired++ })
	a.OnAuthRequired(func() { panic("handler bug") })
	a.OnAuthRequired(func() { fired++ })

	a.handleAuthFailure()

	assert.Equal(t, 2, fired, "panicking handler must not block the rest")
	_, ok := a.Credential()
	assert.False(t, ok)
}

func TestAuthOnAuthRequiredUnsubscribe(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	fired := 0
	unsubscribe := a.OnAuthRequired(func() { fired++ })
	unsubscribe()

	a.handleAuthFailure()
	assert.Equal(t, 0, fired)

	// Second call is a no-op.
	unsubscribe()
	assert.Equal(t, 0, a.handlerCount())
}

func TestAuthUnsubscribeReleasesSlot(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	// Subscribe/unsubscribe churn must not accumulate dead entries.
	for i := 0; i < 100; i++ {
		unsubscribe := a.OnAuthRequired(func() {})
		unsubscribe()
	}
	assert.Equal(t, 0, a.handlerCount())

	kept := 0
	a.OnAuthRequired(func() { kept++ })
	assert.Equal(t, 1, a.handlerCount())

	a.handleAuthFailure()
	assert.Equal(t, 1, kept)
}

func TestAuthIsAuthError(t *testing.T) {
	a := newAuthState(logx.NewNilLogger())

	authErr := NewServerError("start-recording", &protocol.ErrorPayload{
		Code:    protocol.CodeAuthenticationFailed,
		Message: "token expired",
	})
	permErr := NewServerError("delete-recording", &protocol.ErrorPayload{
		Code:    protocol.CodeInsufficientPermissions,
		Message: "viewer role",
	})

	assert.True(t, a.IsAuthError(authErr))
	assert.False(t, a.IsAuthError(permErr), "permission errors must not clear the credential")
	assert.False(t, a.IsAuthError(ErrNotConnected))
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	_, ok := tokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
