package sink

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment. ARCADE_EVENTS_SINK selects
// redis|kafka|noop (default).
type Config struct {
	Kind string `env:"ARCADE_EVENTS_SINK" envDefault:"noop"`

	RedisURL          string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisStream       string `env:"ARCADE_EVENTS_REDIS_STREAM" envDefault:"arcade:events"`
	RedisMaxLen       int64  `env:"ARCADE_EVENTS_REDIS_MAXLEN" envDefault:"100000"`
	RedisMaxLenApprox bool   `env:"ARCADE_EVENTS_REDIS_MAXLEN_APPROX" envDefault:"true"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"ARCADE_EVENTS_KAFKA_TOPIC" envDefault:"arcade.events"`
}

// ConfigFromEnv parses Config from the process environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse event sink env: %w", err)
	}
	return cfg, nil
}

// New builds the sink cfg selects. Unknown kinds fall back to noop.
func New(cfg Config, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "redis":
		s, err := NewRedis(cfg.RedisURL, cfg.RedisStream, cfg.RedisMaxLen, cfg.RedisMaxLenApprox)
		if err != nil {
			return nil, err
		}
		logger.Info("event sink enabled", "kind", "redis", "stream", cfg.RedisStream)
		return s, nil
	case "kafka":
		s, err := NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		logger.Info("event sink enabled", "kind", "kafka", "brokers", strings.Join(cfg.KafkaBrokers, ","), "topic", cfg.KafkaTopic)
		return s, nil
	case "", "noop", "none":
		return NewNoop(), nil
	default:
		logger.Warn("unsupported event sink; using noop", "kind", cfg.Kind)
		return NewNoop(), nil
	}
}
