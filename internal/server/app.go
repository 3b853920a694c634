// Package server initializes and runs the reference drive host.
// It selects the file repository and payload store backends, runs schema
// migrations, handles graceful shutdown and starts the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/config"
	"github.com/dmitrijs2005/drivekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/drivekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/drivekeeper/internal/server/payloads"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler *httpapi.Handler
}

// seams for tests
var (
	openPostgres   = repomanager.OpenPostgres
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newS3Store     = func(ctx context.Context, c payloads.S3Config) (payloads.Store, error) {
		return payloads.NewS3Store(ctx, c)
	}
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat)

	storageKey, err := c.StorageKeyBytes()
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	repo, err := app.initRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := app.initStore(ctx)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("payload store init error: %w", err)
	}

	ss := services.NewSessionService(c.Identity, []byte(c.SecretKey), storageKey, c.AccessTokenValidityDuration)
	ds := services.NewDriveService(repo, store, storageKey, c.Identity, logger.With("module", "drive_service"))
	app.handler = httpapi.NewHandler(ss, ds, metrics.New(), logger)

	return app, nil
}

func (app *App) initRepository(ctx context.Context) (files.Repository, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "No database configured, files are kept in memory")
		return files.NewMemoryRepository(), nil
	}

	db, err := openPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app.db = db
	return rm.Files(db), nil
}

func (app *App) initStore(ctx context.Context) (payloads.Store, error) {
	if app.config.S3BaseEndpoint == "" {
		app.logger.Warn(ctx, "No object storage configured, payloads are kept in memory")
		return payloads.NewMemoryStore(), nil
	}

	return newS3Store(ctx, payloads.S3Config{
		RootUser:     app.config.S3RootUser,
		RootPassword: app.config.S3RootPassword,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
}

func (app *App) close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.handler, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "identity", app.config.Identity)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
}
