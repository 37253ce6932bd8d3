package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string     `json:"environment"`
	Server      Server     `json:"server"`
	MongoDB     MongoDB    `json:"mongodb"`
	Frontend    Frontend   `json:"frontend"`
	JWT         JWT        `json:"jwt"`
	Log         Log        `json:"log"`
	Signal      Signal     `json:"signal"`
	Projection  Projection `json:"projection"`
	Payments    Payments   `json:"payments"`
}

type Server struct {
	Host string `json:"host" env:"DISPUTE_HOST"`
	Port int    `json:"port" env:"DISPUTE_PORT"`
}

type MongoDB struct {
	URI      string `json:"uri" env:"DISPUTE_MONGO_URI"`
	Database string `json:"database" env:"DISPUTE_MONGO_DATABASE"`
}

type Frontend struct {
	URL string `json:"url" env:"DISPUTE_FRONTEND_URL"`
}

type JWT struct {
	AccessSecret string `json:"accessSecret" env:"DISPUTE_JWT_SECRET"`
	AccessTTL    int    `json:"accessTtl" env:"DISPUTE_JWT_TTL"` // in minutes
}

type Log struct {
	Level       string `json:"level" env:"DISPUTE_LOG_LEVEL"`
	Encoding    string `json:"encoding" env:"DISPUTE_LOG_ENCODING"` // json or console
	Development bool   `json:"development" env:"DISPUTE_LOG_DEVELOPMENT"`
}

// Signal configures delivery of completed-match outcomes to the truth indexer.
type Signal struct {
	Enabled        bool   `json:"enabled" env:"DISPUTE_SIGNAL_ENABLED"`
	IndexerURL     string `json:"indexerUrl" env:"DISPUTE_SIGNAL_INDEXER_URL"`
	TimeoutSeconds int    `json:"timeoutSeconds" env:"DISPUTE_SIGNAL_TIMEOUT_SECONDS"`
	QueueSize      int    `json:"queueSize" env:"DISPUTE_SIGNAL_QUEUE_SIZE"`
}

func (s Signal) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Projection configures the replay of leaderboard projections that did not
// land with their completion.
type Projection struct {
	ReplayIntervalSeconds int `json:"replayIntervalSeconds" env:"DISPUTE_PROJECTION_REPLAY_INTERVAL_SECONDS"`
	StaleAfterSeconds     int `json:"staleAfterSeconds" env:"DISPUTE_PROJECTION_STALE_AFTER_SECONDS"`
	BatchSize             int `json:"batchSize" env:"DISPUTE_PROJECTION_BATCH_SIZE"`
}

func (p Projection) ReplayInterval() time.Duration {
	return time.Duration(p.ReplayIntervalSeconds) * time.Second
}

func (p Projection) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// Payments authenticates the payment collaborator's payout callbacks.
type Payments struct {
	CallbackToken string `json:"callbackToken" env:"DISPUTE_PAYMENT_CALLBACK_TOKEN"`
}

func Load(env string) (*Config, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		// Default to configs directory relative to working directory
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Replace environment variables in the config
	configStr := expandEnvVars(string(data))

	cfg := defaults()
	if err := json.Unmarshal([]byte(configStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Explicit DISPUTE_* variables win over the file.
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.Environment = env
	return &cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func defaults() Config {
	return Config{
		Server:  Server{Host: "0.0.0.0", Port: 8080},
		MongoDB: MongoDB{URI: "mongodb://localhost:27017", Database: "dispute_arena"},
		JWT:     JWT{AccessTTL: 60},
		Log:     Log{Level: "info", Encoding: "json"},
		Signal:  Signal{TimeoutSeconds: 5, QueueSize: 256},
		Projection: Projection{
			ReplayIntervalSeconds: 60,
			StaleAfterSeconds:     30,
			BatchSize:             100,
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("DISPUTE_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
