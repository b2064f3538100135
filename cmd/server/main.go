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

	"flight-status-sim/internal/api"
	"flight-status-sim/internal/config"
	"flight-status-sim/internal/metrics"
	"flight-status-sim/internal/simulation"
	"flight-status-sim/internal/status"
	"flight-status-sim/internal/store"
	"flight-status-sim/internal/templates"
	"flight-status-sim/pkg/logger"
	"flight-status-sim/pkg/rand"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithFile(cfg.Logging.Level, logger.FileOptions{
		Filename:   cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer appLogger.Close()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("%v", err)
		appLogger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	loc := cfg.Location()
	m := metrics.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, src, closeStore, err := openStorage(ctx, cfg, loc, appLogger, m)
	if err != nil {
		return err
	}
	defer closeStore()

	cached := templates.NewCache(src, cfg.Templates.CacheSize, cfg.Templates.CacheTTL, m)

	// SIGHUP drops cached templates so timetable edits apply on the next cycle.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				cached.Purge()
				appLogger.Info("Template cache purged")
			}
		}
	}()

	sim := simulation.NewSimulator(st, cached, rand.New(cfg.Simulation.Seed), simulation.Options{
		Location:  loc,
		BatchSize: cfg.Sync.BatchSize,
		Probabilities: status.Probabilities{
			Cancel:       cfg.Simulation.CancelProbability,
			Delay:        cfg.Simulation.DelayProbability,
			AdverseDelay: cfg.Simulation.AdverseDelayProbability,
		},
	}, appLogger, m)

	sched := simulation.NewScheduler(sim, simulation.SchedulerOptions{
		Interval:     cfg.Sync.Interval,
		Location:     loc,
		CycleTimeout: cfg.Sync.CycleTimeout,
		HistorySize:  cfg.Sync.HistorySize,
	}, appLogger, m)

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize, cfg.RateLimit.ClientTTL, m)
	apiServer := api.NewServer(sched, sim, limiter, loc, appLogger, m)
	httpServer := newHTTPServer(cfg.Server, apiServer.Router())

	bgDone := make(chan struct{})
	if cfg.Sync.Background {
		go func() {
			defer close(bgDone)
			appLogger.Info("Background sync every %v, pre-generating %d day(s)", cfg.Sync.Interval, cfg.Sync.PregenerateDays)
			sched.Run(ctx, cfg.Sync.PregenerateDays)
		}()
	} else {
		close(bgDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server on %s (timezone %s)", httpServer.Addr, loc)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			stop()
			<-bgDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown error: %v", err)
	}
	<-bgDone

	snap := m.GetSnapshot()
	appLogger.Info("Final metrics - Cycles: %d, Failures: %d, Generated: %d, Status writes: %d",
		snap.SyncCycles, snap.SyncFailures, snap.OccurrencesGenerated, snap.StatusWrites)
	appLogger.Info("Shutdown complete")
	return nil
}

// openStorage picks the occurrence store and the template source from cfg.
func openStorage(ctx context.Context, cfg *config.Config, loc *time.Location, appLogger *logger.Logger, m *metrics.Metrics) (store.Store, templates.Source, func(), error) {
	var (
		st      store.Store
		pg      *store.Postgres
		closeFn = func() {}
	)

	switch cfg.Database.Driver {
	case "postgres":
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		var err error
		pg, err = store.OpenPostgres(openCtx, store.PostgresConfig{
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}, loc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		appLogger.Info("Connected to PostgreSQL")
		st = pg
		closeFn = func() {
			if err := pg.Close(); err != nil {
				appLogger.Error("Failed to close database: %v", err)
			}
		}
	default:
		appLogger.Info("Using in-memory occurrence store")
		st = store.NewMemory()
	}

	var src templates.Source
	switch cfg.Templates.Source {
	case "http":
		appLogger.Info("Reading templates from %s", cfg.Templates.BaseURL)
		src = templates.NewHTTPSource(cfg.Templates.BaseURL, cfg.Templates.RequestTimeout,
			cfg.Templates.Username, cfg.Templates.Password, appLogger, m)
	case "database":
		if cfg.Templates.SeedFile != "" {
			seed, err := templates.NewFileSource(cfg.Templates.SeedFile).Templates(ctx)
			if err != nil {
				closeFn()
				return nil, nil, nil, fmt.Errorf("read template seed: %w", err)
			}
			if err := pg.SaveTemplates(ctx, seed); err != nil {
				closeFn()
				return nil, nil, nil, fmt.Errorf("seed templates: %w", err)
			}
			appLogger.Info("Seeded %d templates from %s", len(seed), cfg.Templates.SeedFile)
		}
		src = pg
	default:
		appLogger.Info("Reading templates from %s", cfg.Templates.Path)
		src = templates.NewFileSource(cfg.Templates.Path)
	}

	return st, src, closeFn, nil
}
