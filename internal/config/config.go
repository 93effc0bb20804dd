package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Detection DetectionConfig
	History   HistoryConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"3000"`
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	StaticDir    string        `envconfig:"SERVER_STATIC_DIR" default:"web/static"`
}

type DetectionConfig struct {
	// BaseURL points at the voice detection service. The API key has no
	// default: the user supplies it per session or via VOICE_API_KEY.
	BaseURL         string        `envconfig:"VOICE_API_URL" default:"http://localhost:8000"`
	APIKey          string        `envconfig:"VOICE_API_KEY"`
	Timeout         time.Duration `envconfig:"VOICE_API_TIMEOUT" default:"30s"`
	DefaultLanguage string        `envconfig:"VOICE_DEFAULT_LANGUAGE" default:"English"`
}

type HistoryConfig struct {
	DBPath string `envconfig:"HISTORY_DB_PATH" default:"truthspectrogram.db"`
}

func LoadConfig() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
