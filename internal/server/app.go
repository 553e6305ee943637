// Package server initializes and runs the parcelsync reference backend: the
// REST API over chi, Postgres-backed users, refresh tokens and records,
// presigned S3 uploads, and a gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/logging"
	"github.com/dmitrijs2005/parcelsync/internal/server/config"
	"github.com/dmitrijs2005/parcelsync/internal/server/health"
	"github.com/dmitrijs2005/parcelsync/internal/server/httpapi"
	"github.com/dmitrijs2005/parcelsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/parcelsync/internal/server/services"
	"github.com/dmitrijs2005/parcelsync/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *http.Server
	health *health.Server
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, rm, c)
	if c.BootstrapEmail != "" && c.BootstrapPassword != "" {
		if _, err := us.EnsureUser(ctx, c.BootstrapEmail, c.BootstrapPassword); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap user: %w", err)
		}
		logger.Info(ctx, "bootstrap user ready", "email", c.BootstrapEmail)
	}

	st, err := storage.NewS3Storage(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rs := services.NewRecordService(db, rm, st)

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		http: &http.Server{
			Addr:              c.HTTPAddr,
			Handler:           httpapi.New(us, rs, logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if c.GRPCHealthAddr != "" {
		app.health = health.NewServer(c.GRPCHealthAddr, db.PingContext, logger)
	}
	return app, nil
}

func (app *App) startHTTPServer(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer done()
		_ = app.http.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancel()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancel context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancel()
	}
}

// Run serves until ctx is cancelled or a listener fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancel)
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHealthServer(ctx, cancel)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}
