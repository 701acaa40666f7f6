package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		// AggregateTopic enables deduplicated error-log publishing to Kafka.
		AggregateTopic string        `yaml:"aggregate_topic"`
		FlushInterval  time.Duration `yaml:"flush_interval"`
		CountThreshold int           `yaml:"count_threshold"`
	} `yaml:"logging"`
	Backend struct {
		Type string `yaml:"type"` // kafka | clickhouse | both
	} `yaml:"backend"`
	Ingest struct {
		Source     string `yaml:"source"` // websocket | kafka
		MaxRPS     int    `yaml:"max_rps"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"ingest"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		Topic         string   `yaml:"topic"`          // output records
		FeaturesTopic string   `yaml:"features_topic"` // input rows
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		RecordsTable     string        `yaml:"records_table"`
		FeaturesTable    string        `yaml:"features_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	FeatureFeed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feature_feed"`
	Classifier struct {
		WindowSize    int      `yaml:"window_size"`
		MinHistory    int      `yaml:"min_history"`
		Epsilon       float64  `yaml:"epsilon"`
		SigmoidA      float64  `yaml:"sigmoid_a"`
		SigmoidB      float64  `yaml:"sigmoid_b"`
		ClampMin      float64  `yaml:"clamp_min"`
		ClampMax      float64  `yaml:"clamp_max"`
		ProbEnter     float64  `yaml:"prob_enter"`
		ProbExit      float64  `yaml:"prob_exit"`
		ConfirmTicks  int      `yaml:"confirm_ticks"`
		Critical      []string `yaml:"critical"`
		EnableRV      bool     `yaml:"enable_rv"`
		StaleZ        bool     `yaml:"stale_z"`
		SnapshotEvery int      `yaml:"snapshot_every"`

		FallbackRegime      string  `yaml:"fallback_regime"`
		FallbackProbability float64 `yaml:"fallback_probability"`
	} `yaml:"classifier"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		StateKey  string        `yaml:"state_key"`
		LatestTTL time.Duration `yaml:"latest_ttl"`
	} `yaml:"redis"`
	Alerts struct {
		WebhookURL string        `yaml:"webhook_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
		Backoff    time.Duration `yaml:"backoff"`
		UseQueue   bool          `yaml:"use_queue"`
	} `yaml:"alerts"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("FEATURE_FEED_API_KEY"); v != "" {
		c.FeatureFeed.APIKey = v
	}
	if v := os.Getenv("FEATURE_CHANNELS"); v != "" {
		c.FeatureFeed.Channels = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("INGEST_SOURCE"); v != "" {
		c.Ingest.Source = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.WebhookURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid. Classifier parameters get a
// second, stricter validation when the engine is constructed; the checks here
// reject configurations that cannot possibly start.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse", "both":
	case "":
		return fmt.Errorf("backend.type is required")
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'both', got '%s'", c.Backend.Type)
	}
	switch c.Ingest.Source {
	case "websocket", "kafka", "":
	default:
		return fmt.Errorf("ingest.source must be 'websocket' or 'kafka', got '%s'", c.Ingest.Source)
	}
	if c.Ingest.Source == "websocket" {
		if c.FeatureFeed.WebSocketURL == "" {
			return fmt.Errorf("feature_feed.websocket_url is required")
		}
		if len(c.FeatureFeed.Channels) == 0 {
			return fmt.Errorf("feature_feed.channels cannot be empty")
		}
	}
	if c.Classifier.WindowSize < 0 || c.Classifier.MinHistory < 0 {
		return fmt.Errorf("classifier window_size and min_history must be non-negative")
	}
	if c.Classifier.Epsilon < 0 {
		return fmt.Errorf("classifier.epsilon must be non-negative")
	}
	return nil
}
