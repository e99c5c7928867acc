package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		ClassifierTTL   time.Duration `yaml:"classifier_ttl" default:"1h"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend" default:"file" validate:"oneof=file redis clickhouse"`
		Dir     string `yaml:"dir" default:"data"`
	} `yaml:"store"`
	Fetch struct {
		Disabled   bool          `yaml:"disabled"`
		OnlyCache  bool          `yaml:"only_cache"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		BuildLock  time.Duration `yaml:"build_lock_ttl" default:"2m"`
		RatePerSec float64       `yaml:"rate_per_sec" default:"1"`
		Burst      float64       `yaml:"burst" default:"3"`
		Breaker    struct {
			MaxFailures uint32        `yaml:"max_failures" default:"3"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"1m"`
		} `yaml:"breaker"`
	} `yaml:"fetch"`
	Providers struct {
		AlternativeURL string `yaml:"alternative_url" default:"https://api.alternative.me/fng/" validate:"url"`
		NasdaqURL      string `yaml:"nasdaq_url" default:"https://data.nasdaq.com/api/v3/datasets/BCHAIN/MKPRU/data.json" validate:"url"`
		NasdaqAPIKey   string `yaml:"nasdaq_api_key"`
		BinanceWSURL   string `yaml:"binance_ws_url" default:"wss://stream.binance.com:9443/ws"`
		Symbol         string `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	} `yaml:"providers"`
	Bands struct {
		StartDate       string  `yaml:"start_date"`
		CurveMultiplier float64 `yaml:"curve_multiplier" default:"0.455" validate:"gt=0"`
		Fibonacci       bool    `yaml:"fibonacci"`
	} `yaml:"bands"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Lock     bool   `yaml:"lock"`
		Prefix   string `yaml:"prefix" default:"bandpilot"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"bandpilot"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"bandpilot.decisions"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		AutoCreate   bool          `yaml:"auto_create_topic" default:"true"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults to a YAML document and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("defaults config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a validated config with every default applied.
func Default() *Config {
	c, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	if v, ok := envBool("DISABLE_FETCH"); ok {
		c.Fetch.Disabled = v
	}
	if v, ok := envBool("ONLY_CACHE"); ok {
		c.Fetch.OnlyCache = v
	}
	if v := os.Getenv("NASDAQ_API_KEY"); v != "" {
		c.Providers.NasdaqAPIKey = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Bands.StartDate != "" {
		if _, err := time.Parse("2006-01-02", c.Bands.StartDate); err != nil {
			return fmt.Errorf("bands.start_date must be YYYY-MM-DD, got '%s'", c.Bands.StartDate)
		}
	}
	return nil
}

// StartDate returns the configured series start, or the zero time.
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse("2006-01-02", c.Bands.StartDate)
	return t
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
