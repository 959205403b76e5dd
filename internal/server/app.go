// Package server wires the dumpvault server: configuration, the credential
// store, object storage, the optional Redis throttle and the HTTP front door.
// It also handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/auth"
	"github.com/dmitrijs2005/dumpvault/internal/server/blobstore"
	"github.com/dmitrijs2005/dumpvault/internal/server/config"
	"github.com/dmitrijs2005/dumpvault/internal/server/httpapi"
	"github.com/dmitrijs2005/dumpvault/internal/server/password"
	"github.com/dmitrijs2005/dumpvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/dumpvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	repomanager repomanager.RepositoryManager
	httpServer  *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey), auth.DefaultValidity)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	blobs, err := blobstore.NewS3Store(ctx, blobstore.Options{
		Region:    c.S3Region,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		Endpoint:  c.S3BaseEndpoint,
		Bucket:    c.S3Bucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db, repomanager: rm}

	var limiter httpapi.RateLimiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = ratelimit.New(app.redis, c.AuthRateLimit, c.AuthRateWindow)
	}

	hasher := password.NewHasher(password.DefaultCost, c.HashWorkers)
	authService := services.NewAuthService(db, rm, codec, hasher, logger)
	fileService := services.NewFileService(db, rm, blobs, logger)

	app.httpServer = httpapi.NewServer(httpapi.Options{
		Address:      c.HTTPAddr,
		SecureCookie: c.IsProduction(),
		Limiter:      limiter,
	}, authService, fileService, logger)

	return app, nil
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
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run applies migrations, serves until a signal arrives and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return nil
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
