package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/catalog"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/interfaces/rest"
	"github.com/pot-code/course-progress/internal/progress"
	"github.com/pot-code/course-progress/internal/remote"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	kv := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
	defer kv.Close()

	var (
		dbConn driver.ITransactionalDB
		store  progress.CompletionStore
	)
	switch option.Progress.Store {
	case infra.StoreSQL:
		dbConn, err = driver.GetDBConnection(&driver.DBConfig{
			User:     option.Database.User,
			Password: option.Database.Password,
			MaxConn:  option.Database.MaxConn,
			Protocol: option.Database.Protocol,
			Driver:   option.Database.Driver,
			Host:     option.Database.Host,
			Port:     option.Database.Port,
			Query:    option.Database.Query,
			Schema:   option.Database.Schema,
		})
		if err != nil {
			log.Fatalf("Failed to create DB connection: %s\n", err)
		}
		defer dbConn.Close(context.Background())
		logger.Debug("Create db connection instance", zap.String("db.driver", option.Database.Driver),
			zap.String("db.schema", option.Database.Schema),
			zap.String("db.host", option.Database.Host),
		)
		store = progress.NewSQLCompletionStore(dbConn)
	default:
		store = progress.NewRedisCompletionStore(kv)
	}

	platform := remote.NewClient(remote.Config{
		BaseURL:   option.Platform.BaseURL,
		Timeout:   option.Platform.Timeout,
		QuizScale: option.Progress.QuizScale,
	}, validate.NewValidator())
	courses := catalog.NewCachedCatalog(platform, kv, option.Catalog.CacheTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := progress.NewRegistry(option.Progress.SessionIdle)
	go registry.Run(ctx, option.Progress.SessionIdle/2)

	ProgressUseCase := progress.NewProgressUseCase(
		courses,
		platform,
		platform,
		store,
		progress.NewSynchronizer(platform),
		registry,
		progress.NewFeed(uuid.NewNanoIDGenerator(option.Security.IDLength)),
		option.Progress.PassingThreshold,
	)

	app := rest.NewServer(dbConn, kv, option, ProgressUseCase, logger)
	go shutdownOnSignal(app, logger)
	if err := rest.Serve(app, option, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func shutdownOnSignal(app *echo.Echo, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down")
	if err := app.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown gracefully", zap.Error(err))
	}
}
