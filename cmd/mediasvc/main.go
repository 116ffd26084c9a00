package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	medialib "github.com/shoraid/go-medialib"
	"github.com/shoraid/go-medialib/drivers/imageconv"
	"github.com/shoraid/go-medialib/drivers/postgres"
	s3driver "github.com/shoraid/go-medialib/drivers/s3"
	"github.com/shoraid/go-medialib/httpapi"
	"github.com/shoraid/go-medialib/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "mediasvc").Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("media service stopped with error")
	}
	logger.Info().Msg("media service exited")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info().Msg("database migrated")
	}

	storage, err := s3driver.NewObjectStorage(cfg.ObjectStorage())
	if err != nil {
		return err
	}
	disks, err := medialib.NewManager(cfg.S3.Disk, map[string]medialib.StorageDriver{cfg.S3.Disk: storage})
	if err != nil {
		return err
	}

	svc, err := medialib.New(cfg.Pipeline(), postgres.NewMediaStore(db), disks,
		medialib.WithLogger(logger),
		medialib.WithConverter(imageconv.New(imageconv.WithJPEGQuality(cfg.Media.JPEGQuality))),
	)
	if err != nil {
		return err
	}

	var reconciler *medialib.Reconciler
	if cfg.Reconciler.Enabled {
		schedules := cfg.Schedules()
		schedules.Registerer = prometheus.DefaultRegisterer
		reconciler, err = medialib.NewReconciler(svc, schedules)
		if err != nil {
			return err
		}
		if err := reconciler.Start(ctx); err != nil {
			return err
		}
	}

	router := httpapi.NewRouter(httpapi.NewHandler(svc), logger, httpapi.RouterConfig{
		RequestsPerMinute: cfg.HTTP.RateLimit,
		Gatherer:          prometheus.DefaultGatherer,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server forced to shut down")
	}
	if reconciler != nil {
		reconciler.Stop(shutdownCtx)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background conversions did not finish")
	}
	return runErr
}
