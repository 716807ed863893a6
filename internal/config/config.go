package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	ServiceName      string        `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string        `mapstructure:"SERVICE_VERSION"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL      string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	AuditQueueSize   int           `mapstructure:"AUDIT_QUEUE_SIZE"`
	AuditWorkers     int           `mapstructure:"AUDIT_WORKERS"`
	CollectorURL     string        `mapstructure:"COLLECTOR_URL"`
	CollectorAPIKey  string        `mapstructure:"COLLECTOR_API_KEY"`
	ExportInterval   time.Duration `mapstructure:"EXPORT_INTERVAL"`
	ExportBatchSize  int           `mapstructure:"EXPORT_BATCH_SIZE"`
	RetentionDays    int           `mapstructure:"RETENTION_DAYS"`
	OpsRetentionDays int           `mapstructure:"OPS_RETENTION_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVICE_NAME", "radsig-server")
	v.SetDefault("SERVICE_VERSION", "0.1.0")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUDIT_QUEUE_SIZE", 1024)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("EXPORT_INTERVAL", "1h")
	v.SetDefault("EXPORT_BATCH_SIZE", 500)
	v.SetDefault("RETENTION_DAYS", 2555)
	v.SetDefault("OPS_RETENTION_DAYS", 365)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("SERVICE_NAME")
	v.BindEnv("SERVICE_VERSION")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUDIT_QUEUE_SIZE")
	v.BindEnv("AUDIT_WORKERS")
	v.BindEnv("COLLECTOR_URL")
	v.BindEnv("COLLECTOR_API_KEY")
	v.BindEnv("EXPORT_INTERVAL")
	v.BindEnv("EXPORT_BATCH_SIZE")
	v.BindEnv("RETENTION_DAYS")
	v.BindEnv("OPS_RETENTION_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production,
// signer authentication (AUTH_ISSUER) and collector credentials must be
// configured, and retention horizons must stay within compliance bounds.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf(
			"AUTH_ISSUER or AUTH_JWKS_URL must be set in production. " +
				"Refusing to start a signing service without signer authentication")
	}

	if c.IsProduction() && c.CollectorURL != "" && c.CollectorAPIKey == "" {
		return fmt.Errorf("COLLECTOR_API_KEY is required when COLLECTOR_URL is set in production")
	}

	// Audit logs bound to PHI must be kept at least 7 years (2555 days).
	if c.RetentionDays < 2555 {
		return fmt.Errorf("RETENTION_DAYS must be at least 2555 (7 years) for compliance logs, got %d", c.RetentionDays)
	}
	if c.OpsRetentionDays < 1 {
		return fmt.Errorf("OPS_RETENTION_DAYS must be positive, got %d", c.OpsRetentionDays)
	}

	if c.ExportBatchSize < 1 {
		return fmt.Errorf("EXPORT_BATCH_SIZE must be positive, got %d", c.ExportBatchSize)
	}
	if c.ExportInterval < time.Minute {
		return fmt.Errorf("EXPORT_INTERVAL must be at least 1m, got %s", c.ExportInterval)
	}

	if c.AuditQueueSize < 1 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE must be positive, got %d", c.AuditQueueSize)
	}
	if c.AuditWorkers < 1 {
		return fmt.Errorf("AUDIT_WORKERS must be positive, got %d", c.AuditWorkers)
	}

	return nil
}
