// Package app initializes and runs the sitegate service.
// It configures logging, storage, authentication and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/sitegate/internal/auth"
	"github.com/patric-chuzhbe/sitegate/internal/config"
	"github.com/patric-chuzhbe/sitegate/internal/db/jsondb"
	"github.com/patric-chuzhbe/sitegate/internal/db/memorystorage"
	"github.com/patric-chuzhbe/sitegate/internal/db/mongodb"
	"github.com/patric-chuzhbe/sitegate/internal/db/postgresdb"
	"github.com/patric-chuzhbe/sitegate/internal/db/storage"
	"github.com/patric-chuzhbe/sitegate/internal/logger"
	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/router"
	"github.com/patric-chuzhbe/sitegate/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, HTTP handler and storage backend
// needed to run the service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - seeding the first superadmin, if configured
// - setting up the router and middleware
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `config.New()` calling: %w", err)
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `logger.Init()` calling: %w", err)
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `getStorageByType()` calling: %w", err)
	}

	signingKey, err := base64.URLEncoding.DecodeString(app.cfg.AuthSigningKey)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("in internal/app/app.go/New(): error while decoding the signing key: %w", err),
			app.db.Close(),
		)
	}

	theAuth := auth.New(app.cfg.AuthCookieName, signingKey, app.cfg.AuthTokenTTL)
	svc := service.New(app.db, theAuth)

	created, err := svc.EnsureSuperAdmin(
		context.Background(),
		app.cfg.SuperAdminEmail,
		app.cfg.SuperAdminPassword,
		app.cfg.SuperAdminName,
	)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("in internal/app/app.go/New(): error while `svc.EnsureSuperAdmin()` calling: %w", err),
			app.db.Close(),
		)
	}
	if created {
		logger.Log.Infow("superadmin seeded", "email", app.cfg.SuperAdminEmail)
	}

	app.httpHandler = router.New(svc, theAuth)

	return app, nil
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(fmt.Errorf("server shutdown error: %w", err), a.db.Close())
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return errors.Join(fmt.Errorf("server error: %w", err), a.db.Close())
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.MongoURI != "" {
		return models.StorageTypeMongo
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		logger.Log.Infow("using storage", "type", "postgresql")
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeMongo:
		logger.Log.Infow("using storage", "type", "mongo", "database", cfg.MongoDatabase)
		return mongodb.New(
			context.Background(),
			cfg.MongoURI,
			cfg.MongoDatabase,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		logger.Log.Infow("using storage", "type", "file", "path", cfg.DBFileName)
		return jsondb.New(cfg.DBFileName)
	}

	logger.Log.Infow("using storage", "type", "memory")
	return memorystorage.New()
}
