package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/avatair-api/internal/config"
	"github.com/noah-isme/avatair-api/internal/database"
	"github.com/noah-isme/avatair-api/internal/handler"
	"github.com/noah-isme/avatair-api/internal/middleware"
	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/internal/router"
	"github.com/noah-isme/avatair-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	db, err := database.OpenSQL(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db, cfg.ArtifactBackend == config.ArtifactBackendSQL); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	artifacts, err := buildArtifactStore(ctx, cfg, db, probes, &closers)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise artifact store")
	}

	generator, err := buildGenerator(ctx, cfg, logger, probes, &closers)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise generative backend")
	}

	publisher, err := buildPublisher(cfg, logger, &closers)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise event publisher")
	}

	storage, err := buildArchiveStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise archive storage")
	}

	adminPolicy, err := middleware.NewAdminPolicy(cfg.AdminEnabled, cfg.AdminPasswordHash)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid admin configuration")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	surveys := repository.NewSurveyRepository(db)

	responseService := service.NewResponseService(artifacts, surveys, generator, publisher, cfg.MaxPatternLength, logger)
	surveyService := service.NewSurveyService(surveys, artifacts, validate, logger)
	exportService := service.NewExportService(surveys, artifacts, storage, publisher, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    16 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowedOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ResponseHandler: handler.NewResponseHandler(responseService, validate, logger),
		AvatarHandler:   handler.NewAvatarHandler(responseService, validate, logger),
		SurveyHandler:   handler.NewSurveyHandler(surveyService, exportService, validate, logger),
		AdminHandler:    handler.NewAdminHandler(surveyService, logger),
		Guards: handler.Guards{
			Required:  middleware.JWTProtected(cfg.JWTSecret),
			Optional:  middleware.OptionalJWT(cfg.JWTSecret),
			Admin:     middleware.RequireAdmin(adminPolicy),
			Privilege: middleware.MarkPrivileged(adminPolicy),
			RateLimit: middleware.RateLimit("participant", cfg.RateLimitMax, cfg.RateLimitWindow),
		},
		HealthProbes: probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("generator", cfg.Generator).
		Str("artifacts", cfg.ArtifactBackend).
		Str("archive", cfg.ArchiveBackend).
		Msg("avatair api started")

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
