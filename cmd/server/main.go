/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the retail core HTTP server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment (config.LoadEnv), apply flag overrides
  2. Build zap logger
  3. Open SQL store (SQLite or MySQL) and migrate
  4. Connect Redis when REDIS_ADDR is set; otherwise in-process cache, no lock
  5. Construct domain services and the HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (HTTP_PORT, default 8080)
  -db      Database DSN or SQLite path (DB_DSN, default retail.db)
           Use ":memory:" for an in-memory SQLite database
  -driver  sqlite3 | mysql (DB_DRIVER)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT, 30s)
  3. Close Redis and database connections
  4. Flush logger

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/api"
	"github.com/warp/retail-ledger/cache"
	"github.com/warp/retail-ledger/config"
	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/logging"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
	"github.com/warp/retail-ledger/stock"
	"github.com/warp/retail-ledger/store/sqlstore"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.LoadEnv()

	// Flags
	port := flag.Int("port", cfg.Server.HTTPPort, "HTTP server port")
	dsn := flag.String("db", cfg.Database.DSN, "database DSN (SQLite path or MySQL DSN)")
	driver := flag.String("driver", cfg.Database.Driver, "database driver: sqlite3 | mysql")
	flag.Parse()

	appLogger, err := logging.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	if err := run(cfg, *port, *driver, *dsn, appLogger); err != nil {
		appLogger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, port int, driver, dsn string, appLogger *zap.Logger) error {
	// Initialize store
	store, err := sqlstore.Open(sqlstore.Config{
		Driver:          sqlstore.Dialect(driver),
		DSN:             dsn,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()
	appLogger.Info("Connected to database", zap.String("driver", string(store.Dialect())))

	checks := []api.HealthCheck{{Name: "database", Ping: store.Ping}}

	// Cache and lock
	var (
		appCache ledger.Cache = cache.NewMemory()
		locker   inventory.Locker
	)
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer closeRedis(rdb, appLogger)

		redisCache := cache.NewRedis(rdb, "")
		appCache = redisCache
		locker = cache.NewLocker(rdb, cfg.Redis.LockTTL, appLogger)
		checks = append(checks, api.HealthCheck{Name: "redis", Ping: redisCache.Ping})
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		appLogger.Warn("REDIS_ADDR not set; using in-process cache and no inventory lock")
	}

	policy, err := sales.ParseLineTotalPolicy(cfg.Sales.LineTotalPolicy)
	if err != nil {
		return err
	}

	// Services
	stockLedger := stock.NewLedger(store)
	svc := api.Services{
		Products: products.NewService(store, store, appLogger),
		Sales: sales.NewProcessor(store, store, stockLedger, appLogger,
			sales.WithLineTotalPolicy(policy),
			sales.WithCache(appCache, cfg.Cache.TTL)),
		CustomerDebts: debts.NewLedger(debts.KindCustomer, store, store, appLogger,
			debts.WithCache(appCache, cfg.Cache.TTL),
			debts.WithPhoneRegion(cfg.Debts.PhoneRegion)),
		SupplierDebts: debts.NewLedger(debts.KindSupplier, store, store, appLogger,
			debts.WithCache(appCache, cfg.Cache.TTL)),
		Inventory: inventory.NewService(store, store, stockLedger, locker, appLogger),
	}

	handler := api.NewHandler(svc, appLogger, checks...)
	router := api.NewRouter(handler, api.NewAuthenticator(cfg.JWT.SecretKey), api.RouterOptions{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		EnableDevRoutes: cfg.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("Server starting",
			zap.Int("port", port),
			zap.String("env", cfg.Server.AppEnv),
			zap.String("line_total_policy", string(policy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	case <-quit:
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	appLogger.Info("Server stopped")
	return nil
}

func closeRedis(rdb *redis.Client, log *zap.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("failed to close redis", zap.Error(err))
	}
}
