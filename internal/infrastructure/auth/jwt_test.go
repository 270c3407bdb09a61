package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, ju *JWTUtil, uid string, ttl time.Duration) string {
	t.Helper()
	token, err := ju.Sign(&AppTokenClaims{
		UID:            uid,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(ttl).Unix()},
	})
	require.NoError(t, err)
	return token
}

func TestJWTUtil_Validate(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token")
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signed(t, ju, "u1", time.Hour), false},
		{"expired", signed(t, ju, "u1", -time.Hour), true},
		{"no uid", signed(t, ju, "", time.Hour), true},
		{"other secret", signed(t, NewJWTUtil("HS256", "other", "token"), "u1", time.Hour), true},
		{"other method", signed(t, NewJWTUtil("HS512", "secret", "token"), "u1", time.Hour), true},
		{"garbage", "not-a-token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ju.Validate(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UID)
			assert.True(t, claims.TimeRemaining() > 59*time.Minute)
		})
	}
}

func TestJWTUtil_ExtractToken(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token")
	tests := []struct {
		name    string
		header  string
		cookie  string
		want    string
		wantErr bool
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "header wins over cookie", header: "Bearer abc", cookie: "def", want: "abc"},
		{name: "cookie", cookie: "def", want: "def"},
		{name: "other scheme", header: "Basic abc", wantErr: true},
		{name: "nothing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())

			token, err := ju.ExtractToken(c)
			if tt.wantErr {
				assert.Equal(t, ErrNoToken, err)
				return
			}
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestAppTokenClaims_TimeRemaining_expired(t *testing.T) {
	claims := &AppTokenClaims{StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()}}
	assert.Equal(t, time.Duration(0), claims.TimeRemaining())
}
