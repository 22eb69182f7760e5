package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type ServerConfig struct {
	Address    string `yaml:"address" env:"SERVER_ADDRESS" env-default:":8008"`
	DBPath     string `yaml:"db_path" env:"DB_PATH" env-default:"tasks-management.db"`
	CORSOrigin string `yaml:"cors_origin" env:"CORS_ORIGIN" env-default:"*"`
	// OverdueScan runs the overdue notifier every interval; 0 disables it.
	OverdueScan time.Duration `yaml:"overdue_scan" env:"OVERDUE_SCAN" env-default:"0s"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"development-insecure-secret-change-me"`
	Issuer    string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"task-board-sync"`
	Audience  string        `yaml:"audience" env:"JWT_AUDIENCE" env-default:"task-board-clients"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"24h"`
}

type RedisConfig struct {
	// URL empty keeps dedupe records in the database.
	URL       string        `yaml:"url" env:"REDIS_URL"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl" env:"DEDUPE_TTL" env-default:"720h"`
}

type ClientConfig struct {
	BaseURL           string        `yaml:"base_url" env:"BOARD_API_URL" env-default:"http://localhost:8008"`
	Token             string        `yaml:"token" env:"BOARD_TOKEN"`
	TokenFile         string        `yaml:"token_file" env:"BOARD_TOKEN_FILE" env-default:".boardctl-token"`
	NotifyConcurrency int           `yaml:"notify_concurrency" env:"NOTIFY_CONCURRENCY" env-default:"8"`
	CacheSize         int           `yaml:"cache_size" env:"CACHE_SIZE" env-default:"256"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"0s"`
}

type Config struct {
	LogLevel string       `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Server   ServerConfig `yaml:"server"`
	Auth     AuthConfig   `yaml:"auth"`
	Redis    RedisConfig  `yaml:"redis"`
	Client   ClientConfig `yaml:"client"`
}

// Load reads configPath, falling back to the environment alone when the path
// is empty or the file does not exist.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				return Config{}, fmt.Errorf("cannot read env: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("cannot read config %q: %w", configPath, err)
	}
	return cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad(configPath string) Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	return cfg
}
