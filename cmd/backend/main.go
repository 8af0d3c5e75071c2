// Command backend runs the reference custody-records server over SQLite.
//
//	./backend -listen=:8081 -db=./data/custody.db -seed=alternating-weekends
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

	"github.com/warp/custody-engine/backend"
	"github.com/warp/custody-engine/config"
	"github.com/warp/custody-engine/generic"
	"github.com/warp/custody-engine/logger"
	"github.com/warp/custody-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "custody.yaml", "YAML config path")
	listen := flag.String("listen", ":8081", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path (overrides config; \":memory:\" for in-memory)")
	seed := flag.String("seed", "", "Demo scenario to load on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get().Fatal().Err(err).Str("config_path", *configPath).Msg("failed to load config")
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "custody-backend"})
	log := logger.Named("backend")

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DatabasePath).Msg("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveFamily(ctx, cfg.Family); err != nil {
		log.Fatal().Err(err).Msg("failed to save custodians")
	}

	if *seed != "" {
		today := generic.Today(generic.SystemClock{Location: cfg.Location()})
		n, err := backend.LoadScenario(ctx, store, *seed, today)
		if err != nil {
			log.Fatal().Err(err).Str("scenario", *seed).Msg("failed to seed")
		}
		log.Info().Str("scenario", *seed).Int("records", n).Msg("seeded")
	}

	server := &http.Server{
		Addr:         *listen,
		Handler:      backend.NewRouter(backend.NewHandler(store, log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("listen", *listen).Str("db", cfg.DatabasePath).Msg("backend starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("backend stopped")
}
