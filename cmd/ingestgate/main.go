package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/ingestgate/internal/adapter/driven/gateway"
	"github.com/ericfisherdev/ingestgate/internal/adapter/driven/postgres"
	"github.com/ericfisherdev/ingestgate/internal/adapter/driven/redisevents"
	sqliteadapter "github.com/ericfisherdev/ingestgate/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/ingestgate/internal/adapter/driving/http"
	"github.com/ericfisherdev/ingestgate/internal/application"
	"github.com/ericfisherdev/ingestgate/internal/config"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
	"github.com/ericfisherdev/ingestgate/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid settings).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"admin_addr", cfg.AdminAddr,
		"hook_addr", cfg.HookAddr,
		"store_driver", cfg.StoreDriver,
		"ingest_base_url", cfg.IngestBaseURL,
		"lookup_timeout", cfg.LookupTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the credential store and migrate its schema.
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. Wire gateway adapters.
	var terminator driven.SessionTerminator = gateway.Noop{}
	if cfg.HasGatewayAPI() {
		terminator = gateway.NewClient(cfg.GatewayAPIURL, cfg.GatewayAPIToken, logging.WithComponent(logger, "gateway"))
		logger.Info("gateway session termination enabled", "api", cfg.GatewayAPIURL)
	} else {
		logger.Info("no gateway api configured, rejected sessions are refused by hook response only")
	}

	var publisher driven.EventPublisher
	if cfg.HasRedis() {
		pub, err := redisevents.New(redisevents.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, events will be dropped until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		publisher = pub
		logger.Info("lifecycle events published to redis", "addr", cfg.RedisAddr, "channel", pub.Channel())
	}

	// 5. Create application services.
	urls := application.NewURLDeriver(cfg.IngestBaseURL)
	issuer := application.NewCredentialIssuer(store, urls, logging.WithComponent(logger, "issuer"))
	authorizer := application.NewPublishAuthorizer(store, terminator, cfg.LookupTimeout, logging.WithComponent(logger, "authorizer"),
		application.WithIngestURLCheck(urls))
	hooks := application.NewHookService(authorizer, publisher, logging.WithComponent(logger, "hooks"))
	defer hooks.Wait()

	// 6. Create HTTP servers.
	adminSrv := newServer(cfg.AdminAddr,
		httphandler.NewServeMux(httphandler.NewHandler(issuer, cfg.AdminToken, logger), logger))
	hookSrv := newServer(cfg.HookAddr,
		httphandler.NewHookServeMux(httphandler.NewHookHandler(hooks, cfg.HookToken, logger), logger))

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range map[string]*http.Server{"admin": adminSrv, "hook": hookSrv} {
		g.Go(func() error {
			logger.Info("http server starting", "server", name, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}

	// 7. Wait for shutdown signal or a listener failure, then drain both
	// servers with a 10s timeout.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return errors.Join(adminSrv.Shutdown(shutdownCtx), hookSrv.Shutdown(shutdownCtx))
	})

	logger.Info("ingestgate started")

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// openStore opens the configured credential store and applies migrations.
// The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.CredentialStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithTimeout(cfg.LookupTimeout))
		if err != nil {
			return nil, nil, err
		}
		version, err := store.Migrate()
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("postgres store ready", "schema_version", version)
		return store, store.Close, nil

	default:
		// Dual reader/writer with WAL mode.
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		version, err := sqliteadapter.RunMigrations(db.Writer)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("sqlite store ready", "path", db.Path(), "schema_version", version)
		closeFn := func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}
		return sqliteadapter.NewCredentialRepo(db), closeFn, nil
	}
}
