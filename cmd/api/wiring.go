package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/avatair-api/internal/config"
	"github.com/noah-isme/avatair-api/internal/database"
	"github.com/noah-isme/avatair-api/internal/events"
	"github.com/noah-isme/avatair-api/internal/handler"
	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
	cloud "github.com/noah-isme/avatair-api/pkg/cloudinary"
	"github.com/noah-isme/avatair-api/pkg/s3store"
)

func buildArtifactStore(ctx context.Context, cfg config.Config, db *gorm.DB, probes map[string]handler.HealthProbe, closers *[]func()) (repository.ArtifactStore, error) {
	if cfg.ArtifactBackend != config.ArtifactBackendMongo {
		return repository.NewResponseRepository(db), nil
	}

	client, mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = client.Disconnect(context.Background()) })

	if err := repository.EnsureResponseIndexes(ctx, mongoDB); err != nil {
		return nil, err
	}
	probes["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	return repository.NewMongoResponseRepository(mongoDB), nil
}

func buildGenerator(ctx context.Context, cfg config.Config, logger zerolog.Logger, probes map[string]handler.HealthProbe, closers *[]func()) (avatarai.Generator, error) {
	if cfg.Generator != config.GeneratorOpenAI {
		return avatarai.NewClient(avatarai.ClientConfig{
			BaseURL:    cfg.AvatarBaseURL,
			MinLatency: cfg.AvatarMinLatency,
			Timeout:    cfg.AvatarTimeout,
			Logger:     logger,
		})
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = redisClient.Close() })
	probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	return avatarai.NewOpenAIGenerator(avatarai.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.OpenAIChatModel,
		ImageModel: cfg.OpenAIImageModel,
		MinLatency: cfg.AvatarMinLatency,
		Sessions:   avatarai.NewRedisSessionStore(redisClient, cfg.SessionTTL),
		Logger:     logger,
	})
}

func buildPublisher(cfg config.Config, logger zerolog.Logger, closers *[]func()) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}, nil
	}

	conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = conn.Drain() })

	return events.NewNATSPublisher(conn, cfg.NATSSubject, logger), nil
}

// buildArchiveStorage returns nil when publishing is switched off; the export
// service then rejects publish requests.
func buildArchiveStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveCloudinary:
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	case config.ArchiveS3:
		return s3store.New(ctx, s3store.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
			Prefix:          cfg.S3Prefix,
			URLExpiry:       cfg.S3URLExpiry,
		}, logger)
	case config.ArchiveNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.ArchiveBackend)
	}
}
