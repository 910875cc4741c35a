package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino_wallet/internal/serviceerrs"
)

var secret = []byte("test-secret")

func TestIssueAndCheck(t *testing.T) {
	token, err := Issue(Principal{UserID: "u-1", Role: RoleAdmin}, secret, time.Now())
	require.NoError(t, err)

	p, err := CheckToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.True(t, p.IsAdmin())
}

func TestCheckToken_DefaultsRole(t *testing.T) {
	token, err := Issue(Principal{UserID: "u-1"}, secret, time.Now())
	require.NoError(t, err)

	p, err := CheckToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, p.Role)
	assert.False(t, p.IsAdmin())
}

func TestCheckToken_Rejects(t *testing.T) {
	valid, err := Issue(Principal{UserID: "u-1"}, secret, time.Now())
	require.NoError(t, err)
	expired, err := Issue(Principal{UserID: "u-1"}, secret, time.Now().Add(-2*TokenExpire))
	require.NoError(t, err)
	noUser, err := Issue(Principal{}, secret, time.Now())
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
	}{
		{name: "garbage", token: "not-a-token", secret: secret},
		{name: "wrong secret", token: valid, secret: []byte("other")},
		{name: "expired", token: expired, secret: secret},
		{name: "no user", token: noUser, secret: secret},
		{name: "unsigned", token: none, secret: secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckToken(tt.token, tt.secret)
			assert.ErrorIs(t, err, serviceerrs.ErrUnauthorized)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u-2", Role: RoleUser})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-2", p.UserID)
}

func TestCookie(t *testing.T) {
	c := Cookie("abc")
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
}
