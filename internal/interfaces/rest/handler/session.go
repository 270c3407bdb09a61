package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// BlacklistKey KV key marking a signed-out token
func BlacklistKey(token string) string {
	return "token:blacklist:" + token
}

type SessionHandler struct {
	jwtUtil *auth.JWTUtil
	kv      driver.KeyValueDB
}

func NewSessionHandler(JWTUtil *auth.JWTUtil, KV driver.KeyValueDB) *SessionHandler {
	return &SessionHandler{JWTUtil, KV}
}

// HandleSignOut blacklist the token until it expires and clear the cookie
func (sh *SessionHandler) HandleSignOut(c echo.Context) error {
	ju := sh.jwtUtil
	tokenStr, err := ju.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	ju.ClearClientToken(c)

	claims, err := ju.Validate(tokenStr)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	ctx := c.Request().Context()
	if ttl := claims.TimeRemaining(); ttl > 0 {
		if err := sh.kv.SetEX(ctx, BlacklistKey(tokenStr), claims.UID, ttl); err != nil {
			return err
		}
	}
	logging.ExtractLoggerFromContext(ctx).Debug("signed out", zap.String("user.id", claims.UID))
	return c.NoContent(http.StatusOK)
}
