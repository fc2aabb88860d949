package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/piotrusio02/reservation-system-api/internal/booking"
	"github.com/piotrusio02/reservation-system-api/internal/cache"
	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/config"
	"github.com/piotrusio02/reservation-system-api/internal/events"
	"github.com/piotrusio02/reservation-system-api/internal/logging"
	"github.com/piotrusio02/reservation-system-api/internal/metrics"
	"github.com/piotrusio02/reservation-system-api/internal/storage/postgres"
	transporthttp "github.com/piotrusio02/reservation-system-api/internal/transport/http"
	"github.com/piotrusio02/reservation-system-api/migrations"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "reservation-api",
	Short: "Booking and reservation scheduling service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the lifecycle sweep",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single lifecycle sweep pass and exit",
	RunE:  runSweep,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE:  runMigrate,
}

func main() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	pool         *pgxpool.Pool
	publisher    events.Publisher
	metrics      *metrics.Metrics
	availability *booking.AvailabilityService
	reservations *booking.ReservationService
	catalog      *booking.CatalogService
	sweep        *booking.SweepService
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(string(cfg.App.Env))

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.Enabled {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to amqp: %w", err)
		}
		publisher = amqpPub
	}

	var availabilityCache *cache.Availability
	if cfg.Cache.Enabled {
		availabilityCache, err = cache.New(cfg.Cache.Size, cfg.Cache.TTL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
	}

	m := metrics.New()
	clk := clock.NewSystem()

	slotRepo := postgres.NewSlotRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	return &app{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		publisher:    publisher,
		metrics:      m,
		availability: booking.NewAvailabilityService(slotRepo, availabilityCache, clk, publisher, m, logger),
		reservations: booking.NewReservationService(reservationRepo, slotRepo, availabilityCache, clk, publisher, m, logger),
		catalog:      booking.NewCatalogService(catalogRepo, clk, cfg.DefaultPolicy()),
		sweep:        booking.NewSweepService(reservationRepo, slotRepo, clk, publisher, m, logger, cfg.Sweep.BatchSize),
	}, nil
}

func (a *app) close() {
	_ = a.publisher.Close()
	a.pool.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a, err := buildApp(startupCtx)
	if err != nil {
		return err
	}
	defer a.close()

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Catalog:        a.catalog,
		Availability:   a.availability,
		Reservations:   a.reservations,
		MetricsHandler: a.metrics.Handler(),
		CORSOrigins:    a.cfg.HTTP.CORSOrigins,
		Logger:         a.logger,
	})

	server := &http.Server{
		Addr:    a.cfg.HTTP.Host + ":" + a.cfg.HTTP.Port,
		Handler: router,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sweep.Run(stopCtx, a.cfg.Sweep.Interval)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()
	a.logger.Info().Str("addr", server.Addr).Msg("api listening")

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		a.logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error().Err(err).Msg("server shutdown error")
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.sweep.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	a.logger.Info().
		Int("fulfilled", report.Fulfilled).
		Int("expired", report.Expired).
		Int64("slots_retired", report.SlotsRetired).
		Msg("sweep complete")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	a.close()
	a.logger.Info().Msg("migrations applied")
	return nil
}
