// Package server wires the Keepr server: the gRPC directory and sign-in
// endpoint, the notification dispatcher and the Prometheus endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/notify"
	"github.com/dmitrijs2005/keepr/internal/server/config"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keepr/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/keepr/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	registry   prometheus.Gatherer
	grpc       *gs.GRPCServer
	auth       *services.AuthService
	dispatcher *notify.Dispatcher
	closers    []func()
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	app := &App{config: cfg, logger: logger}

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, func() { _ = db.Close() })

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	ledger, closeLedger, err := chain.Connect(ctx, chain.ConnectConfig{
		Backend:  cfg.ChainBackend,
		RPCURL:   cfg.ChainRPCURL,
		Contract: cfg.ContractAddress,
		ChainID:  cfg.ChainID,
	}, nil, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("chain: %w", err)
	}
	app.closers = append(app.closers, closeLedger)

	// the in-process ledger never sees client keeps, so it cannot vouch for
	// contact registrations
	var contactRegistry chain.Registry
	if cfg.ChainBackend == chain.BackendEthereum {
		contactRegistry = ledger
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.registry = reg

	var (
		jobs     notify.JobStore
		notifier notify.Notifier
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			app.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		jobs = notify.NewRedisJobStore(rdb, 0)
		notifier = notify.NewRedisNotifier(rdb, cfg.NotifyChannel)
	} else {
		jobs = notify.NewMemoryJobStore()
		notifier = notify.NewLogNotifier(logger.With("module", "notify"))
	}

	app.auth = services.NewAuthService(db, rm, cfg)
	directory := services.NewDirectoryService(db, rm)
	contacts := services.NewContactService(db, rm, contactRegistry)

	app.dispatcher = notify.NewDispatcher(ledger, contacts, jobs, notifier, logger,
		notify.WithMaxAttempts(cfg.MaxNotifyAttempts),
		notify.WithMetrics(notify.NewMetrics(reg)))

	app.grpc = gs.NewGRPCServer(cfg.EndpointAddrGRPC, logger, app.auth, directory, contacts, cfg.SecretKey)

	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runHousekeeping purges expired login challenges.
func (app *App) runHousekeeping(ctx context.Context) {
	ticker := time.NewTicker(app.config.ChallengeValidityDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.auth.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "challenge purge failed", "error", err)
			} else if n > 0 {
				app.logger.Debug(ctx, "expired challenges purged", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = app.dispatcher.Run(ctx, app.config.NotifyInterval)
	}()

	if app.config.ChallengeValidityDuration > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runHousekeeping(ctx)
		}()
	}

	wg.Wait()
	app.logger.Info(ctx, "Stopped")
}
