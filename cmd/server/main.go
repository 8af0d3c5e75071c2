/*
main.go - Custody engine entry point

PURPOSE:
  Wires the fetch coordinator, the custody engine, the scheduler and the
  HTTP API, then runs until SIGINT/SIGTERM.

STARTUP SEQUENCE:
  1. Parse command-line flags, load .env and config
  2. Initialize logger
  3. Build HTTP port -> coordinator -> engine
  4. Initial sync of the configured month range
  5. Start scheduler (cutovers, 60s tick, lifecycle events)
  6. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config   YAML config path (default: custody.yaml, optional)
  -listen   Override the listen address
  -backend  Override the backend base URL

ENVIRONMENT:
  CUSTODY_* variables override the config file; see config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)

SEE ALSO:
  - api/server.go: Router configuration
  - custody/engine.go: Engine
  - fetch/coordinator.go: Retry and de-duplication
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/custody-engine/api"
	"github.com/warp/custody-engine/config"
	"github.com/warp/custody-engine/custody"
	"github.com/warp/custody-engine/fetch"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
	"github.com/warp/custody-engine/scheduler"
)

func main() {
	// Flags
	configPath := flag.String("config", "custody.yaml", "YAML config path")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	backendURL := flag.String("backend", "", "Backend base URL (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get().Fatal().Err(err).Str("config_path", *configPath).Msg("failed to load config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "custody-engine"})
	log := logger.Named("main")

	loc := cfg.Location()
	clock := generic.SystemClock{Location: loc}

	// Transport -> coordinator -> engine
	port := fetch.NewHTTPPort(cfg.BackendURL, cfg.HTTPTimeout)
	coord := fetch.NewCoordinator(port,
		fetch.WithLogger(logger.Named("fetch")),
		fetch.WithConcurrency(cfg.FetchConcurrency),
	)
	engine := custody.NewEngine(cfg.Family, coord,
		custody.WithClock(clock),
		custody.WithEngineLogger(logger.Named("custody")),
	)
	coord.Observe(engine.ObserveFetch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A 401 anywhere ends the session; Logout runs off the publisher's goroutine.
	sessionLost := make(chan struct{}, 1)
	engine.Subscribe(func(ev custody.Event) {
		logEvent(log, ev)
		if ev.Kind == custody.EventSessionInvalid {
			select {
			case sessionLost <- struct{}{}:
			default:
			}
		}
	})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sessionLost:
				engine.Logout()
			}
		}
	}()

	// Initial sync; failures leave the affected windows empty.
	period := cfg.SyncPeriod(generic.Today(clock))
	if err := engine.SyncPeriod(ctx, period); err != nil {
		log.Warn().Err(err).Str("period", period.String()).Msg("initial sync incomplete")
	} else {
		log.Info().Str("period", period.String()).Int("records", engine.Records().Len()).Msg("initial sync complete")
	}
	engine.Tick()

	// Triggers
	lifecycle := make(chan scheduler.LifecycleEvent, 4)
	sched := scheduler.New(engine,
		scheduler.WithLocation(loc),
		scheduler.WithLogger(logger.Named("scheduler")),
	)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	go sched.Watch(ctx, lifecycle)

	// HTTP
	handler := api.NewHandler(engine,
		api.WithClock(clock),
		api.WithLogger(logger.Named("api")),
		api.WithLifecycle(lifecycle),
	)
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // toggles and syncs can sit in backoff
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("listen", cfg.Listen).Str("backend", cfg.BackendURL).Str("timezone", loc.String()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func logEvent(log logger.Logger, ev custody.Event) {
	e := log.Debug()
	switch ev.Kind {
	case custody.EventFetchRetrying, custody.EventMutationDropped:
		e = log.Info()
	case custody.EventFetchFailed, custody.EventSessionInvalid:
		e = log.Warn()
	}
	e.Str("event", string(ev.Kind)).
		Str("target", ev.Target).
		Int("attempt", ev.Attempt).
		Dur("delay", ev.Delay).
		Int("streak", ev.Streak.Length).
		AnErr("cause", ev.Err).
		Msg("engine event")
}
