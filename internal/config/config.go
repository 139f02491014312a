package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends selectable through configuration.
const (
	ArtifactBackendSQL   = "sql"
	ArtifactBackendMongo = "mongo"

	GeneratorRemote = "remote"
	GeneratorOpenAI = "openai"

	ArchiveNone       = "none"
	ArchiveCloudinary = "cloudinary"
	ArchiveS3         = "s3"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	DatabaseDriver  string
	DatabaseURL     string
	ArtifactBackend string
	MongoURL        string
	MongoDatabase   string
	RedisURL        string
	NATSURL         string
	NATSSubject     string

	JWTSecret         string
	AdminEnabled      bool
	AdminPasswordHash string

	Generator          string
	AvatarBaseURL      string
	AvatarMinLatency   time.Duration
	AvatarTimeout      time.Duration
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIChatModel    string
	OpenAIImageModel   string
	SessionTTL         time.Duration
	MaxPatternLength   int
	RateLimitMax       int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins string

	ArchiveBackend         string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	S3Region               string
	S3Bucket               string
	S3Endpoint             string
	S3AccessKeyID          string
	S3SecretAccessKey      string
	S3PathStyle            bool
	S3Prefix               string
	S3URLExpiry            time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AVATAIR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Avatair API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("artifacts.backend", ArtifactBackendSQL)
	v.SetDefault("mongo.url", "")
	v.SetDefault("mongo.database", "avatair")
	v.SetDefault("redis.url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "avatair")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("generator", GeneratorRemote)
	v.SetDefault("avatar.base_url", "http://localhost:5000")
	v.SetDefault("avatar.min_latency", "400ms")
	v.SetDefault("avatar.timeout", "60s")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.chat_model", "")
	v.SetDefault("openai.image_model", "")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("patterns.max_length", 256)
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.api_key", "")
	v.SetDefault("cloudinary.api_secret", "")
	v.SetDefault("cloudinary.folder", "avatair/exports")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.path_style", false)
	v.SetDefault("s3.prefix", "exports")
	v.SetDefault("s3.url_expiry", "24h")

	durations := map[string]time.Duration{}
	for _, key := range []string{"avatar.min_latency", "avatar.timeout", "session.ttl", "rate_limit.window", "s3.url_expiry"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = d
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		ArtifactBackend:        strings.ToLower(v.GetString("artifacts.backend")),
		MongoURL:               v.GetString("mongo.url"),
		MongoDatabase:          v.GetString("mongo.database"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		AdminEnabled:           v.GetBool("admin.enabled"),
		AdminPasswordHash:      v.GetString("admin.password_hash"),
		Generator:              strings.ToLower(v.GetString("generator")),
		AvatarBaseURL:          v.GetString("avatar.base_url"),
		AvatarMinLatency:       durations["avatar.min_latency"],
		AvatarTimeout:          durations["avatar.timeout"],
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		OpenAIChatModel:        v.GetString("openai.chat_model"),
		OpenAIImageModel:       v.GetString("openai.image_model"),
		SessionTTL:             durations["session.ttl"],
		MaxPatternLength:       v.GetInt("patterns.max_length"),
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        durations["rate_limit.window"],
		CORSAllowedOrigins:     v.GetString("cors.allowed_origins"),
		ArchiveBackend:         strings.ToLower(v.GetString("archive.backend")),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		S3Region:               v.GetString("s3.region"),
		S3Bucket:               v.GetString("s3.bucket"),
		S3Endpoint:             v.GetString("s3.endpoint"),
		S3AccessKeyID:          v.GetString("s3.access_key_id"),
		S3SecretAccessKey:      v.GetString("s3.secret_access_key"),
		S3PathStyle:            v.GetBool("s3.path_style"),
		S3Prefix:               v.GetString("s3.prefix"),
		S3URLExpiry:            durations["s3.url_expiry"],
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}

	switch c.ArtifactBackend {
	case ArtifactBackendSQL:
	case ArtifactBackendMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("mongo url must be provided for the mongo artifact backend")
		}
	default:
		return fmt.Errorf("unsupported artifact backend %q", c.ArtifactBackend)
	}

	switch c.Generator {
	case GeneratorRemote:
		if c.AvatarBaseURL == "" {
			return fmt.Errorf("avatar base url must be provided")
		}
	case GeneratorOpenAI:
		if c.OpenAIAPIKey == "" || c.RedisURL == "" {
			return fmt.Errorf("openai generator requires an api key and a redis url")
		}
	default:
		return fmt.Errorf("unsupported generator %q", c.Generator)
	}

	switch c.ArchiveBackend {
	case ArchiveNone, ArchiveCloudinary:
	case ArchiveS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 bucket must be provided")
		}
	default:
		return fmt.Errorf("unsupported archive backend %q", c.ArchiveBackend)
	}

	if c.AdminEnabled && c.AdminPasswordHash == "" {
		return fmt.Errorf("admin password hash must be provided when admin access is enabled")
	}

	return nil
}
