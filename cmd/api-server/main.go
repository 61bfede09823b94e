package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayesh20/Clinic-backend/internal/api"
	"github.com/ayesh20/Clinic-backend/internal/appointment"
	"github.com/ayesh20/Clinic-backend/internal/auth"
	"github.com/ayesh20/Clinic-backend/internal/availability"
	"github.com/ayesh20/Clinic-backend/internal/config"
	"github.com/ayesh20/Clinic-backend/internal/db"
	"github.com/ayesh20/Clinic-backend/internal/observability/metrics"
	redisclient "github.com/ayesh20/Clinic-backend/internal/redis"
	"github.com/ayesh20/Clinic-backend/pkg/logging"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Redis is an optimization for the public availability view; the server
	// runs without it.
	var cache *redisclient.AvailabilityCache
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, availability cache disabled", "error", err)
		rdb = nil
	} else {
		cache = redisclient.NewAvailabilityCache(rdb, cfg.CacheTTL)
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		logger.Info("connected to Redis")
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	availRepo := availability.NewPgRepository(pgPool)
	availStore := availability.NewStore(availRepo, cache, logger)
	reservations := availability.NewReservations(availRepo, cache, logger)

	apptRepo := appointment.NewPgRepository(pgPool)
	apptService := appointment.NewService(apptRepo, reservations, availStore, logger, bookingMetrics)

	router := api.NewRouter(api.RouterConfig{
		Availability: availStore,
		Appointments: apptService,
		Verifier:     auth.NewVerifier(cfg.JWTSecret),
		Logger:       logger,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
