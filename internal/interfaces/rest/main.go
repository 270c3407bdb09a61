package rest

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/interfaces/rest/handler"
	"github.com/pot-code/course-progress/internal/interfaces/rest/middleware"
	"github.com/pot-code/course-progress/internal/progress"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// NewServer create the http transport, conn is nil unless the sql completion store is used
func NewServer(
	conn driver.ITransactionalDB,
	kv driver.KeyValueDB,
	option *infra.AppConfig,
	ProgressUseCase progress.ProgressUseCase,
	logger *zap.Logger,
) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator()
		websocket = infra.NewWebsocket()
		requestID = uuid.NewNanoIDGenerator(option.Security.IDLength)
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: func(ctx context.Context, token string) (bool, error) {
				return kv.Exists(ctx, handler.BlacklistKey(token))
			},
		})
		isWebsocket = func(c echo.Context) bool {
			return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
		}
	)
	app.HideBanner = true

	registerLivenessProbe(app, conn, kv)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}
	app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(http.StatusInternalServerError,
					handler.NewRESTStandardError(http.StatusInternalServerError, "").SetTraceID(traceID),
				)
				logger.Error(err.Error(), zap.String("trace.id", traceID))
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Skipper: isWebsocket,
		Timeout: option.RequestTimeout,
	}))

	var (
		ProgressHandler = handler.NewProgressHandler(ProgressUseCase, jwtUtil, validator)
		FeedHandler     = handler.NewProgressFeedHandler(ProgressUseCase, jwtUtil, websocket)
		SessionHandler  = handler.NewSessionHandler(jwtUtil, kv)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion: "api/v1",
			middlewares: []echo.MiddlewareFunc{
				echo_middleware.RequestIDWithConfig(echo_middleware.RequestIDConfig{
					Generator: func() string {
						id, err := requestID.Generate()
						if err != nil {
							return fmt.Sprintf("%d", time.Now().UnixNano())
						}
						return id
					},
				}),
				middleware.SetTraceLogger(logger),
			},
			groups: []*apiGroup{
				{
					prefix: "/session",
					routes: []*route{
						{"PUT", "/sign-out", SessionHandler.HandleSignOut, nil},
					},
				},
				{
					prefix:      "/courses/:course_id",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/progress", ProgressHandler.HandleGetProgress, nil},
						{"GET", "/outline", ProgressHandler.HandleGetOutline, nil},
						{"GET", "/access", ProgressHandler.HandleCanAccess, nil},
						{"POST", "/lessons/:lesson_id/complete", ProgressHandler.HandleCompleteLesson, nil},
						{"POST", "/advance", ProgressHandler.HandleAdvance, nil},
						{"POST", "/retreat", ProgressHandler.HandleRetreat, nil},
						{"POST", "/sync", ProgressHandler.HandleSync, nil},
					},
				},
				{
					prefix:      "/ws",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/progress/:course_id", websocket.WithHeartbeat(FeedHandler.HandleProgressFeed), nil},
					},
				},
			},
		})
	return app
}

// Serve start the server and block until it stops
func Serve(app *echo.Echo, option *infra.AppConfig, logger *zap.Logger) error {
	printRoutes(app, logger)
	err := app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port))
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, kv driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		healthy := kv.Ping(ctx) == nil
		if healthy && db != nil {
			healthy = db.Ping(ctx) == nil
		}
		if healthy {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
