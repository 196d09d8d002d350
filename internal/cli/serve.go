package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/smartcart-io/cartd/internal/adapter/handler"
	"github.com/smartcart-io/cartd/internal/adapter/storage"
	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/core/service"
	"github.com/smartcart-io/cartd/internal/hub"
	"github.com/smartcart-io/cartd/internal/obs"
	"github.com/smartcart-io/cartd/internal/port"
)

const eventQueueSize = 1024

// NewServeCommand creates the serve command: the relay HTTP/WebSocket
// server that carts, adapters and UIs talk to.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cart relay server",
		Long: `Run the cart relay server.

The relay accepts hardware-adapter ingestion POSTs, applies them to the
per-session cart state and fans the resulting frames out to every
WebSocket subscriber of the session. Backends (catalog, dedup) are
selected via environment variables; see .env.example.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	cfg, err := config.Load(opts.TuningFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, cleanupCatalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupCatalog()

	deduper, cleanupDeduper, err := openDeduper(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupDeduper()

	frameHub := hub.New()
	defer frameHub.Close()

	cartService := service.NewCartService(cfg.Tuning, deduper, catalog, frameHub, eventQueueSize)
	defer cartService.Close()

	router := handler.NewRouter(handler.NewHTTPHandler(cartService), handler.NewWSHandler(cartService, frameHub))
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		obs.Logger.Info("relay listening", "addr", cfg.HTTPAddr,
			"catalog", cfg.CatalogBackend, "dedup", cfg.DedupBackend)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		obs.Logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	obs.Logger.Info("relay stopped")
	return nil
}

// openCatalog selects the catalog backend from configuration.
func openCatalog(ctx context.Context, cfg config.Config) (port.CatalogRepository, func(), error) {
	switch cfg.CatalogBackend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		obs.Logger.Info("connected to mysql")
		return storage.NewMySQLCatalog(db), func() { db.Close() }, nil
	case "memory", "":
		return storage.NewMemoryCatalog(storage.DemoCatalog()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

// openDeduper selects the dedup backend from configuration.
func openDeduper(ctx context.Context, cfg config.Config) (port.ScanDeduper, func(), error) {
	switch cfg.DedupBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		obs.Logger.Info("connected to redis")
		return storage.NewRedisDeduper(rdb, cfg.Tuning.ScanCooldown()), func() { rdb.Close() }, nil
	case "memory", "":
		d := storage.NewMemoryDeduper(cfg.Tuning.ScanCooldown())
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown dedup backend %q", cfg.DedupBackend)
	}
}
