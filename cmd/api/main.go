package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labsched/internal/api"
	"labsched/internal/auth"
	"labsched/internal/config"
	"labsched/internal/database"
	"labsched/internal/domain"
	"labsched/internal/events"
	"labsched/internal/google"
	"labsched/internal/logging"
	"labsched/internal/metrics"
	"labsched/internal/reports"
	"labsched/internal/repository"
	"labsched/internal/service"
	"labsched/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedCatalog(ctx, cfg, db, &logger); err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := buildScheduleCache(redisClient, &logger)

	bus := events.NewEventBus()
	subscribeEventLog(bus, &logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	notifications := service.NewNotificationService(db, &logger)

	syncWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	reservations := service.NewReservationService(
		db, cache, bus, notifications, syncWorker,
		cfg.Reservations.MaxReservationDays, cfg.Reservations.ScheduleCacheTTL, &logger,
	)
	users := service.NewUserService(db, tokens, &logger)
	catalog := service.NewCatalogService(db, &logger)
	reportsSvc := reports.NewService(db, &logger)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(*cfg, db, tokens, users, reservations, notifications, catalog, reportsSvc, cache, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownSec := cfg.Server.ShutdownSec
	if shutdownSec <= 0 {
		shutdownSec = 10
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// seedCatalog upserts the labs and courses declared in the config so a fresh
// database starts with a usable catalog.
func seedCatalog(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	for i := range cfg.Labs {
		if err := db.UpsertLab(ctx, &cfg.Labs[i]); err != nil {
			return fmt.Errorf("seed lab %q: %w", cfg.Labs[i].Name, err)
		}
	}
	for i := range cfg.Courses {
		if err := db.UpsertCourse(ctx, &cfg.Courses[i]); err != nil {
			return fmt.Errorf("seed course %q: %w", cfg.Courses[i].Code, err)
		}
	}
	if len(cfg.Labs) > 0 || len(cfg.Courses) > 0 {
		logger.Info().Int("labs", len(cfg.Labs)).Int("courses", len(cfg.Courses)).Msg("catalog seeded")
	}
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func buildScheduleCache(redisClient *redis.Client, logger *zerolog.Logger) domain.ScheduleCache {
	memory := repository.NewMemoryScheduleCache()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverScheduleCache(
		repository.NewRedisScheduleCache(redisClient),
		memory,
		logger,
	)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		logger.Debug().
			Str("event_type", event.Type).
			RawJSON("payload", event.Payload).
			Msg("reservation event")
		return nil
	}
	for _, eventType := range []string{
		events.EventReservationCreated,
		events.EventReservationApproved,
		events.EventReservationDeclined,
		events.EventReservationCancelled,
	} {
		bus.Subscribe(eventType, handler)
	}
}

// initSheetsWorker starts the spreadsheet sync pipeline when Google access is
// configured. It returns nil when disabled so the reservation service skips
// enqueueing.
func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.Enabled {
		return nil
	}

	sheets, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.ScheduleSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets sync")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets sync")
		return nil
	}

	w := worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicy{}, logger)
	go w.Start(ctx)

	// Rebuild the schedule sheet so it reflects the database after downtime.
	go func() {
		from := time.Now().UTC()
		to := from.AddDate(0, 1, 0)
		reservations, err := db.GetReservationsByDateRange(ctx, from, to)
		if err != nil {
			logger.Error().Err(err).Msg("load reservations for sheet rebuild")
			return
		}
		labs, err := db.GetActiveLabs(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("load labs for sheet rebuild")
			return
		}
		if err := sheets.ReplaceScheduleSheet(ctx, reservations, labs); err != nil {
			logger.Error().Err(err).Msg("schedule sheet rebuild failed")
			return
		}
		logger.Info().Int("reservations", len(reservations)).Msg("schedule sheet rebuilt")
	}()

	logger.Info().Msg("google sheets sync enabled")
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
