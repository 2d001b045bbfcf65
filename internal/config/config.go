package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string   `mapstructure:"PORT"`
	Env                     string   `mapstructure:"ENV"`
	DatabaseURL             string   `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret               string   `mapstructure:"JWT_SECRET"`
	TokenTTLHours           int      `mapstructure:"TOKEN_TTL_HOURS"`
	UploadDir               string   `mapstructure:"UPLOAD_DIR"`
	DetectorURL             string   `mapstructure:"DETECTOR_URL"`
	ClassifierURL           string   `mapstructure:"CLASSIFIER_URL"`
	LLMURL                  string   `mapstructure:"LLM_URL"`
	InferenceTimeoutSeconds int      `mapstructure:"INFERENCE_TIMEOUT_SECONDS"`
	InferenceMaxRetries     int      `mapstructure:"INFERENCE_MAX_RETRIES"`
	CORSOrigins             []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("DETECTOR_URL", "http://localhost:8001/detect")
	v.SetDefault("CLASSIFIER_URL", "http://localhost:8002/classify")
	v.SetDefault("LLM_URL", "http://localhost:8003/generate")
	v.SetDefault("INFERENCE_TIMEOUT_SECONDS", 30)
	v.SetDefault("INFERENCE_MAX_RETRIES", 3)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("UPLOAD_DIR")
	v.BindEnv("DETECTOR_URL")
	v.BindEnv("CLASSIFIER_URL")
	v.BindEnv("LLM_URL")
	v.BindEnv("INFERENCE_TIMEOUT_SECONDS")
	v.BindEnv("INFERENCE_MAX_RETRIES")
	v.BindEnv("CORS_ORIGINS")

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

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside of
// development a JWT secret must be set so issued tokens cannot be forged.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is not development")
	}
	if c.InferenceMaxRetries < 1 {
		return fmt.Errorf("INFERENCE_MAX_RETRIES must be at least 1, got %d", c.InferenceMaxRetries)
	}
	if c.InferenceTimeoutSeconds < 1 {
		return fmt.Errorf("INFERENCE_TIMEOUT_SECONDS must be at least 1, got %d", c.InferenceTimeoutSeconds)
	}
	return nil
}

// InferenceTimeout returns the per-attempt inference timeout as a duration.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

// TokenTTL returns the access-token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}
