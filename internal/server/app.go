package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kanban-board/internal/cache"
	"kanban-board/internal/config"
	"kanban-board/internal/database"
	"kanban-board/internal/middleware"
	"kanban-board/internal/monitoring"
	"kanban-board/internal/realtime"
	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// App owns every long-lived server resource.
type App struct {
	Router *gin.Engine

	config  *config.Config
	pool    *database.DatabasePool
	cache   *cache.MultiLevelCache
	hub     *realtime.Hub
	limiter *middleware.RateLimiter
	warmer  *cache.Warmer
	stop    chan struct{}
}

func poolConfig(cfg *config.Config) *database.PoolConfig {
	pc := database.DefaultPoolConfig()
	pc.Driver = cfg.Database.Driver
	pc.DSN = cfg.GetDatabaseDSN()
	pc.MaxOpenConns = cfg.Database.MaxOpenConns
	pc.MaxIdleConns = cfg.Database.MaxIdleConns
	pc.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	pc.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	if cfg.IsProduction() {
		pc.LogLevel = logger.Warn
	}
	return pc
}

func redisConfig(cfg *config.Config) *cache.CacheConfig {
	rc := cache.DefaultCacheConfig()
	rc.Addr = cfg.GetRedisAddr()
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.MaxRetries = cfg.Redis.MaxRetries
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// NewApp opens the database and cache and builds the router.
func NewApp(cfg *config.Config) (*App, error) {
	pool, err := database.NewDatabasePool(poolConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(pool.DB); err != nil {
		pool.Close()
		return nil, err
	}

	var l2 cache.Cache
	if cfg.Redis.Enabled {
		redis := cache.NewRedisCache(redisConfig(cfg))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		if err := redis.Health(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable at startup, relying on the circuit breaker")
		}
		cancel()
		l2 = redis
	}
	store := cache.NewMultiLevelCache(l2, cache.NewCircuitBreaker(cache.DefaultCircuitBreakerConfig()))

	board := services.NewBoardCache(store, cfg.Cache.BoardTTL)
	auth := services.NewAuthService(cfg.Auth, cache.NewTokenDenylist(store))
	hub := realtime.NewHub()

	monitor := monitoring.New()
	monitor.RegisterHealthCheck("database", pool.Health)
	monitor.RegisterHealthCheck("cache", store.Health)
	monitor.RegisterGauge("websocket_connections", "Open realtime connections.", func() float64 {
		return float64(hub.Total())
	})
	monitor.RegisterGauge("board_cache_hit_rate", "Board cache hit rate since start.", func() float64 {
		metrics := store.Metrics()
		return metrics.HitRate()
	})

	app := &App{
		config: cfg,
		pool:   pool,
		cache:  store,
		hub:    hub,
		stop:   make(chan struct{}),
	}

	columns := services.NewColumnService()
	var onLogin func(uint)
	if cfg.Cache.WarmOnLogin {
		warmCfg := cache.DefaultWarmerConfig()
		warmCfg.Workers = cfg.Cache.WarmupWorkers
		app.warmer = cache.NewWarmer(store, warmCfg)
		app.warmer.Start(context.Background())
		onLogin = func(userID uint) {
			app.warmer.Enqueue(board.WarmJob(pool.DB, columns, userID))
		}
		monitor.RegisterGauge("board_cache_warmups", "Board cache entries filled after login since start.", func() float64 {
			return float64(app.warmer.Stats().Warmed)
		})
	}
	if cfg.RateLimit.Enabled {
		app.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
		go app.limiter.Run(app.stop)
	}

	middleware.RegisterJSONFieldNames()
	app.Router = NewRouter(Dependencies{
		Config:      cfg,
		DB:          pool.DB,
		Auth:        auth,
		Columns:     services.NewCachedColumnService(columns, board),
		Cards:       services.NewCachedCardService(services.NewCardService(), board),
		Hub:         hub,
		Monitor:     monitor,
		RateLimiter: app.limiter,
		OnLogin:     onLogin,
	})

	return app, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.Router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting kanban server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func (a *App) Close() error {
	close(a.stop)
	if a.warmer != nil {
		a.warmer.Stop()
	}
	a.hub.Close()
	if err := a.cache.Close(); err != nil {
		log.WithError(err).Warn("failed to close cache")
	}
	return a.pool.Close()
}
