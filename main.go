package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/config"
	"github.com/vitalog-inc/vitalog-engine/pkg/database"
	"github.com/vitalog-inc/vitalog-engine/pkg/handlers"
	"github.com/vitalog-inc/vitalog-engine/pkg/logging"
	"github.com/vitalog-inc/vitalog-engine/pkg/middleware"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
	"github.com/vitalog-inc/vitalog-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""))

	ctx := context.Background()

	connStr := cfg.Database.ConnectionString()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// golang-migrate needs a database/sql connection.
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, timeline cache disabled", zap.Error(err))
		redisClient = nil
	}

	// Repositories
	variableRepo := repositories.NewVariableRepository(db)
	userVariableRepo := repositories.NewUserVariableRepository(db)
	measurementRepo := repositories.NewMeasurementRepository(db)
	reminderRepo := repositories.NewReminderRepository(db)

	// Services
	timelineService := services.NewTimelineService(measurementRepo, reminderRepo, userVariableRepo, logger)
	var invalidator services.TimelineInvalidator
	if redisClient != nil {
		cached := services.NewCachedTimelineService(timelineService, redisClient,
			time.Duration(cfg.Timeline.CacheTTLSeconds)*time.Second, logger)
		timelineService = cached
		invalidator = cached
		logger.Info("Timeline cache enabled",
			zap.Int("ttl_seconds", cfg.Timeline.CacheTTLSeconds))
	}

	binder := services.NewUserVariableBinder(userVariableRepo, variableRepo, logger)
	measurementService := services.NewMeasurementService(measurementRepo, reminderRepo, binder, invalidator, logger)
	reminderService := services.NewReminderService(reminderRepo, invalidator, logger)

	// HTTP surface
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewMeasurementsHandler(measurementService, logger).RegisterRoutes(mux)
	handlers.NewTimelineHandler(timelineService, logger).RegisterRoutes(mux)
	handlers.NewOccurrencesHandler(reminderService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting vitalog-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger builds the process logger: console output for local work,
// JSON in deployed environments.
func newLogger(env string) *zap.Logger {
	var zapCfg zap.Config
	switch env {
	case "prod", "production", "staging":
		zapCfg = zap.NewProductionConfig()
	default:
		zapCfg = zap.NewDevelopmentConfig()
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}
