package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"task-tracker/internal/cache"
	"task-tracker/internal/config"
	"task-tracker/internal/database"

	"gorm.io/gorm/logger"
)

// OpenDatabase connects using cfg and applies migrations when auto-migrate is on.
func OpenDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := pool.Migrate(); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}

// BuildCache returns nil when caching is disabled. An unreachable Redis is logged and
// left to the circuit breaker rather than failing startup.
func BuildCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		log.Println("ℹ️ Query cache disabled")
		return nil
	}

	var l2 *cache.RedisCache
	if cfg.Cache.RedisEnabled {
		l2 = cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := l2.Health(ctx); err != nil {
			log.Printf("⚠️ Redis at %s is not reachable: %v", cfg.GetRedisAddr(), err)
		} else {
			log.Printf("✅ Connected to Redis at %s", cfg.GetRedisAddr())
		}
	}

	return cache.NewMultiLevelCache(l2, &cache.CircuitBreakerConfig{
		MaxFailures:      cfg.Cache.MaxL2Failures,
		Timeout:          cfg.Cache.L2RetryAfter,
		HalfOpenMaxCalls: 1,
	}).WithL1TTL(cfg.Cache.L1TTL)
}

// Serve runs handler until ctx is cancelled, then drains in-flight requests for up to
// the configured shutdown timeout.
func Serve(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Listening on %s (%s)", srv.Addr, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Println("✅ Server stopped")
	return nil
}
