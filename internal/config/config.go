package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	BlobDriver      string   `mapstructure:"BLOB_DRIVER"`
	BlobS3Bucket    string   `mapstructure:"BLOB_S3_BUCKET"`
	BlobS3Region    string   `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint  string   `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle bool     `mapstructure:"BLOB_S3_PATH_STYLE"`
	ImageHostURL    string   `mapstructure:"IMAGEHOST_URL"`
	ImageHostKey    string   `mapstructure:"IMAGEHOST_KEY"`
	KafkaBrokers    []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string   `mapstructure:"KAFKA_TOPIC"`
	OTELEndpoint    string   `mapstructure:"OTEL_ENDPOINT"`
	OTELSampleRate  float64  `mapstructure:"OTEL_SAMPLE_RATE"`
	NotifyDBPath    string   `mapstructure:"NOTIFY_DB_PATH"`
	LabName         string   `mapstructure:"LAB_NAME"`
	TimeZone        string   `mapstructure:"TIME_ZONE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BLOB_DRIVER", "BLOB_S3_BUCKET", "BLOB_S3_REGION", "BLOB_S3_ENDPOINT", "BLOB_S3_PATH_STYLE",
	"IMAGEHOST_URL", "IMAGEHOST_KEY",
	"KAFKA_BROKERS", "KAFKA_TOPIC",
	"OTEL_ENDPOINT", "OTEL_SAMPLE_RATE",
	"NOTIFY_DB_PATH", "LAB_NAME", "TIME_ZONE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BLOB_DRIVER", "memory")
	v.SetDefault("BLOB_S3_REGION", "eu-central-1")
	v.SetDefault("KAFKA_TOPIC", "labdesk.applications")
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)
	v.SetDefault("NOTIFY_DB_PATH", "")
	v.SetDefault("TIME_ZONE", "Europe/Istanbul")

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development, every request is treated as an admin. Do not expose this server.")
	}

	return cfg, nil
}

// splitList trims comma separated env values. The parsed value is used when
// the key has no string form.
func splitList(parsed []string, raw string) []string {
	if raw == "" {
		return parsed
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Location is the zone used for report day boundaries and export dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects configurations that would start the server without
// authentication or with an incomplete storage backend.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set outside development (ENV=%q)", c.Env)
	}

	switch c.BlobDriver {
	case "memory":
	case "s3":
		if c.BlobS3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required when BLOB_DRIVER is \"s3\"")
		}
	case "imagehost":
		if c.ImageHostURL == "" {
			return fmt.Errorf("IMAGEHOST_URL is required when BLOB_DRIVER is \"imagehost\"")
		}
	default:
		return fmt.Errorf("BLOB_DRIVER must be \"memory\", \"s3\" or \"imagehost\", got %q", c.BlobDriver)
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE %q: %w", c.TimeZone, err)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
