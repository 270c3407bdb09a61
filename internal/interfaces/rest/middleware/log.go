package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggingConfig struct {
	// Skipper defines a function to skip middleware.
	Skipper middleware.Skipper
}

// Logging create an access log middleware with zap logger, the level follows the response status
func Logging(base *zap.Logger, options ...*LoggingConfig) echo.MiddlewareFunc {
	cfg := &LoggingConfig{
		Skipper: middleware.DefaultSkipper,
	}
	if len(options) > 0 {
		option := options[0]
		if option.Skipper != nil {
			cfg.Skipper = option.Skipper
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			req := c.Request()
			code := c.Response().Status
			fields := []zap.Field{
				zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("url.path", req.URL.Path),
				zap.String("client.address", c.RealIP()),
				zap.String("http.request.method", req.Method),
				zap.Int("http.response.status_code", code),
				zap.Int64("http.response.body.bytes", c.Response().Size),
				zap.Duration("event.duration", time.Since(start)),
			}
			if len(c.ParamNames()) > 0 {
				fields = append(fields,
					zap.Strings("route.params.name", c.ParamNames()),
					zap.Strings("route.params.value", c.ParamValues()),
				)
			}
			if ce := base.Check(statusLevel(code), http.StatusText(code)); ce != nil {
				ce.Write(fields...)
			}
			return err
		}
	}
}

func statusLevel(code int) zapcore.Level {
	switch {
	case code >= 500:
		return zapcore.ErrorLevel
	case code >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

// SetTraceLogger set logger binding with trace ID into context
func SetTraceLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			logger := base.With(zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)))
			c.SetRequest(r.WithContext(logging.SetLoggerInContext(r.Context(), logger)))
			return next(c)
		}
	}
}
