package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/socialapp/config"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager(&config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenDuration: time.Hour,
	})
}

func TestIssueAndParse(t *testing.T) {
	m := newTestTokenManager()

	token, expiresAt, err := m.Issue("alice@x.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestParseRejects(t *testing.T) {
	m := newTestTokenManager()
	token, _, err := m.Issue("alice@x.com")
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		_, err := m.Parse(token + "x")
		assert.Error(t, err)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewTokenManager(&config.AuthConfig{JWTSecret: "another", TokenDuration: time.Hour})
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		late := newTestTokenManager()
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("no expiry", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			Email:            "alice@x.com",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = m.Parse(unsigned)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "alice@x.com"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Parse(none)
		assert.Error(t, err)
	})

	t.Run("no email", func(t *testing.T) {
		empty, _, err := m.Issue("")
		require.NoError(t, err)
		_, err = m.Parse(empty)
		assert.Error(t, err)
	})
}

func TestSessionCookies(t *testing.T) {
	m := NewTokenManager(&config.AuthConfig{JWTSecret: "s", TokenDuration: time.Hour, CookieSecure: true})

	rec := httptest.NewRecorder()
	require.NoError(t, m.StartSession(rec, "alice@x.com"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	claims, err := m.Parse(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", claims.Email)

	rec = httptest.NewRecorder()
	m.EndSession(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, CookieName, cleared[0].Name)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))

	other, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")
}
