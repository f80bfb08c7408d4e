// Package config loads and validates application configuration from YAML or
// TOML files with environment-variable overrides. It provides typed structs
// for every subsystem (Corpus, Indexer, Search, Server, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig selects where document records come from.
type CorpusConfig struct {
	Source   string   `yaml:"source"`
	Dir      string   `yaml:"dir"`
	Input    string   `yaml:"input"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
	Table    string   `yaml:"table"`
}

// IndexerConfig controls tokenization and index construction.
type IndexerConfig struct {
	Output         string   `yaml:"output"`
	Workers        int      `yaml:"workers"`
	MinTokenLength int      `yaml:"minTokenLength"`
	StopWords      []string `yaml:"stopWords"`
	Publish        bool     `yaml:"publish"`
}

// SearchConfig controls query execution, scoring weights and result limits.
type SearchConfig struct {
	IndexPath      string        `yaml:"indexPath"`
	Mode           string        `yaml:"mode"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	TitleWeight    float64       `yaml:"titleWeight"`
	BodyWeight     float64       `yaml:"bodyWeight"`
	WatchIndex     bool          `yaml:"watchIndex"`
	SphinxEnv      []int         `yaml:"sphinxEnv"`
	RateLimit      float64       `yaml:"rateLimit"`
	RateBurst      int           `yaml:"rateBurst"`
	ReloadDebounce time.Duration `yaml:"reloadDebounce"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters for the database
// corpus source.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexPublished string `yaml:"indexPublished"`
	SearchEvents   string `yaml:"searchEvents"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML or TOML config file (if provided) and applies
// environment-variable overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals data into cfg. TOML documents are first decoded into a
// generic map and re-encoded as YAML so both formats share the yaml tags and
// duration parsing.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(converted, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Default returns a Config with defaults suitable for local use.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Source:   "fs",
			Dir:      ".",
			Includes: []string{"**/*.md", "**/*.rst", "**/*.txt", "**/*.html"},
			Excludes: []string{"**/.git/**", "**/_build/**", "**/node_modules/**"},
			Workers:  4,
			Table:    "documents",
		},
		Indexer: IndexerConfig{
			Output:         "searchindex.js",
			Workers:        4,
			MinTokenLength: 3,
		},
		Search: SearchConfig{
			IndexPath:      "searchindex.js",
			Mode:           "and_fallback_or",
			DefaultLimit:   10,
			MaxResults:     100,
			TitleWeight:    15,
			BodyWeight:     5,
			SphinxEnv:      []int{56},
			RateLimit:      50,
			RateBurst:      100,
			ReloadDebounce: 250 * time.Millisecond,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "docsearch",
			Topics: KafkaTopics{
				IndexPublished: "index.published",
				SearchEvents:   "search.events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "fs", "jsonl", "postgres":
	default:
		return fmt.Errorf("corpus.source %q must be one of fs, jsonl, postgres", c.Corpus.Source)
	}
	switch c.Search.Mode {
	case "and", "or", "and_fallback_or":
	default:
		return fmt.Errorf("search.mode %q must be one of and, or, and_fallback_or", c.Search.Mode)
	}
	if c.Indexer.MinTokenLength < 1 {
		return fmt.Errorf("indexer.minTokenLength must be at least 1, got %d", c.Indexer.MinTokenLength)
	}
	if c.Search.TitleWeight < 0 || c.Search.BodyWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	if c.Search.DefaultLimit < 0 || c.Search.MaxResults < 0 {
		return fmt.Errorf("search limits must not be negative")
	}
	return nil
}

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("DS_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("DS_INDEXER_OUTPUT"); v != "" {
		cfg.Indexer.Output = v
	}
	if v := os.Getenv("DS_INDEXER_MIN_TOKEN_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.MinTokenLength = n
		}
	}
	if v := os.Getenv("DS_SEARCH_INDEX_PATH"); v != "" {
		cfg.Search.IndexPath = v
	}
	if v := os.Getenv("DS_SEARCH_MODE"); v != "" {
		cfg.Search.Mode = v
	}
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
