package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/crease/internal/adapters/http/api"
	"github.com/okian/crease/internal/adapters/http/live"
	"github.com/okian/crease/internal/adapters/http/swagger"
	"github.com/okian/crease/internal/adapters/lock"
	"github.com/okian/crease/internal/adapters/repository"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/config"
	"github.com/okian/crease/internal/domain/weights"
	"github.com/okian/crease/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	redisPingTimeout  = 3 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("crease: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	w, err := weights.Load(cfg.WeightsPath)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer closeLocker()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := live.NewHub(cfg.AllowedOrigins())
	go hub.Run(hubCtx)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithLocker(locker),
		service.WithWeights(w),
		service.WithPublisher(hub),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.DBPath != "" {
		// stat rows may lag the ledger after a crash
		go func() {
			n, err := svc.RebuildStats(ctx)
			if err != nil {
				log.Error(ctx, "rebuild stats", logger.Error(err))
				return
			}
			log.Info(ctx, "stats rebuilt", logger.Int("matches", n))
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler mounts every route. The websocket endpoint skips the metrics
// middleware, whose response wrapper would hold the hijacked connection.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service, hub *live.Hub) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc,
		api.WithMaxBallPage(cfg.MaxBallPage),
		api.WithLogger(logger.Named("api")),
		api.WithStats(hub),
	).Register(ctx, mux)
	mux.HandleFunc("GET /live", hub.HandleWS)
	return api.CORS(cfg.AllowedOrigins(), mux)
}

// openStore opens SQLite when a path is configured, memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DBPath == "" {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.NewSQLiteStore(ctx, cfg.DBPath, repository.WithLogger(logger.Named("sqlite")))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// openLocker uses Redis when an address is configured so several instances
// can share one store; otherwise the lock is in-process.
func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	wait := time.Duration(cfg.LockWaitMS) * time.Millisecond
	if cfg.RedisAddr == "" {
		return lock.NewLocal(wait), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	ttl := time.Duration(cfg.LockTTLMS) * time.Millisecond
	return lock.NewRedis(rdb, ttl, wait), func() { _ = rdb.Close() }, nil
}
