package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FeedSourceRedis = "redis"
	FeedSourceHTTP  = "http"

	DeliveryHistory   = "history"
	DeliveryIncrement = "increment"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Feed      FeedConfig      `mapstructure:"feed"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
	Development bool   `mapstructure:"development"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type GeneratorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	BasePrice      float64       `mapstructure:"base_price"`
	Spread         float64       `mapstructure:"spread"`
	EmptySideRatio float64       `mapstructure:"empty_side_ratio"`
}

// DefaultMaxHistory caps the history handed over in history mode.
const DefaultMaxHistory = 1000

// FeedConfig drives the graph service's quote feed and ticker whitelist.
type FeedConfig struct {
	Source     string        `mapstructure:"source"`   // "redis" or "http"
	Delivery   string        `mapstructure:"delivery"` // "history" or "increment"
	URL        string        `mapstructure:"url"`
	Interval   time.Duration `mapstructure:"interval"`
	Tickers    []string      `mapstructure:"tickers"`
	MaxHistory int           `mapstructure:"max_history"` // 0 keeps everything
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults
	setDefaults(v)

	// 3. Map dot-notation to underscores (e.g., "feed.url" -> "FEED_URL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars so Unmarshal sees flat vars for nested structs
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "generator.interval", "generator.base_price", "generator.spread", "generator.empty_side_ratio")
	bindEnv(v, "feed.source", "feed.delivery", "feed.url", "feed.interval", "feed.tickers", "feed.max_history")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_quotes")
	v.SetDefault("kafka.group_id", "quote-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("generator.interval", 100*time.Millisecond)
	v.SetDefault("generator.base_price", 120.0)
	v.SetDefault("generator.spread", 0.5)
	v.SetDefault("generator.empty_side_ratio", 0.0)

	v.SetDefault("feed.source", FeedSourceRedis)
	v.SetDefault("feed.delivery", DeliveryIncrement)
	v.SetDefault("feed.url", "http://localhost:8085/query?id=1")
	v.SetDefault("feed.interval", 100*time.Millisecond)
	v.SetDefault("feed.tickers", []string{"ABC", "DEF"})
	v.SetDefault("feed.max_history", DefaultMaxHistory)
}

// Validate rejects settings no service can start with.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("processor.num_workers must be positive, got %d", c.Processor.NumWorkers)
	}
	if len(c.Feed.Tickers) == 0 {
		return fmt.Errorf("feed tickers cannot be empty")
	}
	if c.Feed.Interval <= 0 || c.Generator.Interval <= 0 {
		return fmt.Errorf("feed.interval and generator.interval must be positive")
	}
	if c.Generator.Spread < 0 || c.Generator.EmptySideRatio < 0 || c.Generator.EmptySideRatio > 1 {
		return fmt.Errorf("generator.spread must be >= 0 and generator.empty_side_ratio within [0,1]")
	}
	switch c.Feed.Source {
	case FeedSourceRedis, FeedSourceHTTP:
	default:
		return fmt.Errorf("unknown feed.source %q", c.Feed.Source)
	}
	switch c.Feed.Delivery {
	case DeliveryHistory, DeliveryIncrement:
	default:
		return fmt.Errorf("unknown feed.delivery %q", c.Feed.Delivery)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
