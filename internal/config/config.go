// Package config loads pickup settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvPath names the environment variable that points at the YAML config file.
const EnvPath = "PICKUP_CONFIG_PATH"

// Feed kinds.
const (
	FeedSQLite = "sqlite"
	FeedRedis  = "redis"
	FeedKafka  = "kafka"
)

// ErrMissingSecret is returned when no token secret is configured.
var ErrMissingSecret = errors.New("config: token secret is required (set PICKUP_TOKEN_SECRET)")

type Config struct {
	Token   Token   `yaml:"token"`
	Store   Store   `yaml:"store"`
	Feed    Feed    `yaml:"feed"`
	Monitor Monitor `yaml:"monitor"`
	HTTP    HTTP    `yaml:"http"`
	Log     Log     `yaml:"log"`
}

type Token struct {
	Secret string `yaml:"secret" env:"PICKUP_TOKEN_SECRET"`
}

type Store struct {
	Path string `yaml:"path" env:"PICKUP_STORE_PATH" env-default:"pickup.db"`
}

type Feed struct {
	Kind  string `yaml:"kind" env:"PICKUP_FEED" env-default:"sqlite"`
	Redis Redis  `yaml:"redis"`
	Kafka Kafka  `yaml:"kafka"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"PICKUP_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"PICKUP_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"PICKUP_REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"PICKUP_KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"PICKUP_KAFKA_TOPIC" env-default:"pickup.orders"`
	GroupID string   `yaml:"group_id" env:"PICKUP_KAFKA_GROUP" env-default:"pickup"`
}

type Monitor struct {
	CheckInterval time.Duration `yaml:"check_interval" env:"PICKUP_MONITOR_CHECK_INTERVAL" env-default:"1s"`
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"PICKUP_MONITOR_SLOW_THRESHOLD" env-default:"3s"`
}

type HTTP struct {
	Addr string `yaml:"addr" env:"PICKUP_HTTP_ADDR" env-default:":8080"`
}

type Log struct {
	Level string `yaml:"level" env:"PICKUP_LOG_LEVEL" env-default:"info"`
}

// Load reads configuration. path may be empty, in which case PICKUP_CONFIG_PATH
// is consulted and, failing that, only the environment is used. A .env file in
// the working directory is loaded first if present; it never overrides
// variables already set in the process.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPath)
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token.Secret) == "" {
		return ErrMissingSecret
	}
	switch c.Feed.Kind {
	case FeedSQLite, FeedRedis, FeedKafka:
	default:
		return fmt.Errorf("config: unknown feed kind %q (want sqlite, redis or kafka)", c.Feed.Kind)
	}
	if c.Feed.Kind == FeedKafka && (len(c.Feed.Kafka.Brokers) == 0 || c.Feed.Kafka.Topic == "") {
		return fmt.Errorf("config: kafka feed needs brokers and a topic")
	}
	if c.Monitor.CheckInterval <= 0 || c.Monitor.SlowThreshold <= 0 {
		return fmt.Errorf("config: monitor intervals must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", s, err)
	}
	return lvl, nil
}
