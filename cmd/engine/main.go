package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudassure/engine/internal/app/assurance"
	appdiscovery "github.com/cloudassure/engine/internal/app/discovery"
	"github.com/cloudassure/engine/internal/app/ruleload"
	"github.com/cloudassure/engine/internal/config"
	"github.com/cloudassure/engine/internal/infra/postgres"
	"github.com/cloudassure/engine/internal/infra/redis"
	"github.com/cloudassure/engine/internal/infra/rulesource"
	"github.com/cloudassure/engine/internal/infra/scanstatic"
	"github.com/cloudassure/engine/internal/pubsub"
	"github.com/cloudassure/engine/internal/tracing"
	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/rule"
	"github.com/cloudassure/engine/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(logger.DefaultConfig())
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("starting engine", "app", cfg.App.Name, "env", cfg.App.Env)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App.Name)
	if err != nil {
		log.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to shut down tracing", "error", err)
		}
	}()

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	var scanRepo discovery.Repository
	var resultRepo rule.ResultRepository
	if cfg.Database.Enabled {
		db, err := postgres.New(&cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			return 1
		}
		defer closeWithLog(db, "database", log)
		log.Info("database connected")

		scanRepo = postgres.NewScanRepository(db)
		resultRepo = postgres.NewEvaluationRepository(db, postgres.NewRuleRepository(db))
	}

	var resultCache appdiscovery.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
		resultCache = redis.NewResultCache(redisClient)
	}

	// ==========================================================================
	// Rules
	// ==========================================================================
	source, cleanupSource, err := buildRuleSource(cfg)
	if err != nil {
		log.Error("failed to set up rule source", "error", err)
		return 1
	}
	if cleanupSource != nil {
		defer cleanupSource()
	}

	loaded, err := ruleload.New(source, log).Load(ctx)
	if err != nil {
		log.Error("failed to load rule packs", "error", err)
		return 1
	}

	// ==========================================================================
	// Services
	// ==========================================================================
	bus := pubsub.New(log, cfg.Discovery.SubscriberBacklog)
	defer bus.Close()

	engine := assurance.NewService(resultRepo, log)
	engine.Configure(loaded.Rules, loaded.Certifications)
	if err := bus.Subscribe(engine); err != nil {
		log.Error("failed to subscribe rule engine", "error", err)
		return 1
	}

	registry := discovery.NewRegistry()
	if cfg.Discovery.AssetsDir != "" {
		n, err := scanstatic.RegisterAll(registry, cfg.Discovery.AssetsDir)
		if err != nil {
			log.Error("failed to register static scanners", "error", err)
			return 1
		}
		log.Info("static scanners registered", "count", n, "dir", cfg.Discovery.AssetsDir)
	}

	scheduler := appdiscovery.NewService(cfg.Discovery, registry, bus, scanRepo, resultCache, log)
	if err := scheduler.Init(ctx); err != nil {
		log.Error("failed to initialize discovery", "error", err)
		return 1
	}
	defer scheduler.Stop()

	for _, scan := range scheduler.GetScans() {
		if err := scheduler.EnableScan(ctx, scan.ID()); err != nil {
			log.Error("failed to enable scan", "scan_id", scan.ID(), "error", err)
			return 1
		}
	}

	// ==========================================================================
	// Metrics & health endpoint
	// ==========================================================================
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics.Addr)
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	// ==========================================================================
	// Shutdown
	// ==========================================================================
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("shutting down", "signal", sig.String())

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to shut down metrics endpoint", "error", err)
		}
	}

	return 0
}

// buildRuleSource picks the git source when configured, the local
// directory otherwise.
func buildRuleSource(cfg *config.Config) (ruleload.Source, func(), error) {
	if cfg.Rules.GitURL != "" {
		git := rulesource.NewGitSource(rulesource.GitConfig{
			URL:    cfg.Rules.GitURL,
			Branch: cfg.Rules.GitBranch,
			Path:   cfg.Rules.GitPath,
			Token:  cfg.Rules.GitToken,
		})
		return git, func() { _ = git.Close() }, nil
	}
	return rulesource.NewFSSource(cfg.Rules.Dir), nil, nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func closeWithLog(c io.Closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+name, "error", err)
	}
}
