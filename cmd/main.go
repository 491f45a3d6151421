package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"extruder_hmi/internal/backend"
	"extruder_hmi/internal/handlers"
	"extruder_hmi/internal/logger"
	"extruder_hmi/internal/metrics"
	"extruder_hmi/internal/repository"
	"extruder_hmi/internal/repository/db"
	"extruder_hmi/internal/server"
	"extruder_hmi/internal/service"
	"extruder_hmi/internal/store"
)

const (
	defaultRecorderTick = 1 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

func main() {
	// load config.yml first so the log level comes from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalw("failed to register metrics", "err", err)
	}

	// wire dependencies
	st := store.New()
	client := backend.NewHTTPClient(viper.GetString("backend.base_url"), defaultFetchTimeout)
	streams := func(notify backend.StatusFunc) service.DeltaSource {
		return backend.NewDeltaStream(viper.GetString("backend.ws_url"), notify)
	}
	repos := repository.NewRepository(db)
	services := service.NewService(st, client, streams, repos, log, serviceOptions())
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// warm the recorder with persisted history, then start its ticker
	seedHistory(ctx, repos, services, log)
	go services.History.Run(ctx, recorderTick())

	// start acquiring in the configured mode
	mode := service.AcquisitionMode(viper.GetString("acquisition.mode"))
	if mode == "" {
		mode = service.ModePoll
	}
	if err := services.SetMode(mode); err != nil {
		log.Fatalw("invalid acquisition mode in config", "mode", mode, "err", err)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func serviceOptions() service.Options {
	return service.Options{
		PollInterval:   viper.GetDuration("acquisition.poll_interval"),
		Retention:      viper.GetDuration("history.retention"),
		PhaseTolerance: viper.GetFloat64("analytics.setpoint_tolerance"),
		JWTSigningKey:  viper.GetString("auth.signing_key"),
		JWTTokenTTL:    viper.GetDuration("auth.token_ttl"),
	}
}

func recorderTick() time.Duration {
	if d := viper.GetDuration("history.tick"); d > 0 {
		return d
	}
	return defaultRecorderTick
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// seedHistory loads the still-retained entries from sqlite so charts
// survive a restart. A load failure only costs the old entries.
func seedHistory(ctx context.Context, repos *repository.Repository, services *service.Service, log *logger.Logger) {
	retention := viper.GetDuration("history.retention")
	if retention <= 0 {
		retention = service.DefaultRetention
	}
	entries, err := repos.History.LoadSince(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Warnw("history_seed_failed", "err", err)
		return
	}
	services.History.Seed(entries)
	log.Infow("history_seeded", "entries", len(entries))
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop the acquisition strategy and the recorder
	services.Acquisition.Stop()
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
