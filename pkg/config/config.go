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
	Pipeline struct {
		SLAMs          float64       `yaml:"sla_ms"`
		IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
		SweepInterval  time.Duration `yaml:"sweep_interval"`
		RateRPS        float64       `yaml:"rate_rps"`
		RateBurst      int           `yaml:"rate_burst"`
	} `yaml:"pipeline"`
	Trap struct {
		ZThreshold float64       `yaml:"z_threshold"`
		WindowSize int           `yaml:"window_size"`
		MinSamples int           `yaml:"min_samples"`
		CoolOff    time.Duration `yaml:"cooloff"`
	} `yaml:"trap"`
	Calibrator struct {
		PiMinBps        float64       `yaml:"pi_min_bps"`
		Epsilon         float64       `yaml:"epsilon"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"calibrator"`
	SPRT struct {
		Alpha    float64 `yaml:"alpha"`
		Beta     float64 `yaml:"beta"`
		P0       float64 `yaml:"p0"`
		P1       float64 `yaml:"p1"`
		Blocking bool    `yaml:"blocking"`
	} `yaml:"sprt"`
	Risk struct {
		KellyScaler   float64 `yaml:"kelly_scaler"`
		ClipMin       float64 `yaml:"clip_min"`
		ClipMax       float64 `yaml:"clip_max"`
		MinNotional   float64 `yaml:"min_notional"`
		MaxNotional   float64 `yaml:"max_notional"`
		LeverageMax   float64 `yaml:"leverage_max"`
		DDDayPct      float64 `yaml:"dd_day_pct"`
		CVaRCap       float64 `yaml:"cvar_cap"`
		MaxConcurrent int     `yaml:"max_concurrent"`
		SizeScale     float64 `yaml:"size_scale"`
		BaseEquity    float64 `yaml:"base_equity"`
	} `yaml:"risk"`
	Router struct {
		MinPFill        float64 `yaml:"min_p_fill"`
		PTakerThreshold float64 `yaml:"p_taker_threshold"`
	} `yaml:"router"`
	Guards struct {
		SlippageMaxBps float64 `yaml:"slippage_max_bps"`
		SpreadMaxBps   float64 `yaml:"spread_max_bps"`
	} `yaml:"guards"`
	Governance struct {
		SpreadBpsLimit      float64       `yaml:"spread_bps_limit"`
		LatencyMsLimit      float64       `yaml:"latency_ms_limit"`
		VolatilityLimit     float64       `yaml:"volatility_limit"`
		MaxOpenPerSymbol    int           `yaml:"max_open_per_symbol"`
		MaxSnapshotAge      time.Duration `yaml:"max_snapshot_age"`
		ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
		FailureRate         float64       `yaml:"failure_rate"`
		MinRequests         uint32        `yaml:"min_requests"`
		BreakerInterval     time.Duration `yaml:"breaker_interval"`
		BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
	} `yaml:"governance"`
	Health struct {
		WarnP95Ms      float64       `yaml:"warn_p95_ms"`
		HaltP95Ms      float64       `yaml:"halt_p95_ms"`
		WarnPersist    time.Duration `yaml:"warn_persist"`
		CoolOffDur     time.Duration `yaml:"cooloff_duration"`
		RecoveryWindow time.Duration `yaml:"recovery_window"`
		WindowSize     int           `yaml:"window_size"`
	} `yaml:"health"`
	Instruments []struct {
		Symbol   string  `yaml:"symbol"`
		QtyStep  float64 `yaml:"qty_step"`
		MinQty   float64 `yaml:"min_qty"`
		MinNotal float64 `yaml:"min_notional"`
	} `yaml:"instruments"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventTopic   string   `yaml:"event_topic"`
		OutcomeTopic string   `yaml:"outcome_topic"`
		LogTopic     string   `yaml:"log_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
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
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		Token          string        `yaml:"token"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
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

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENT_TOPIC"); v != "" {
		c.Kafka.EventTopic = v
	}
	if v := os.Getenv("KAFKA_OUTCOME_TOPIC"); v != "" {
		c.Kafka.OutcomeTopic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("FEED_SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Pipeline.SLAMs < 0 {
		return fmt.Errorf("pipeline.sla_ms must be non-negative")
	}
	if c.SPRT.Alpha < 0 || c.SPRT.Alpha >= 1 {
		return fmt.Errorf("sprt.alpha must be in [0, 1)")
	}
	if c.SPRT.Beta < 0 || c.SPRT.Beta >= 1 {
		return fmt.Errorf("sprt.beta must be in [0, 1)")
	}
	if c.Risk.ClipMin < 0 || (c.Risk.ClipMax > 0 && c.Risk.ClipMin > c.Risk.ClipMax) {
		return fmt.Errorf("risk.clip_min must be non-negative and at most risk.clip_max")
	}
	if c.Health.WarnP95Ms > 0 && c.Health.HaltP95Ms > 0 && c.Health.WarnP95Ms > c.Health.HaltP95Ms {
		return fmt.Errorf("health.warn_p95_ms must not exceed health.halt_p95_ms")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.EventTopic == "" {
		return fmt.Errorf("kafka.event_topic is required when brokers are set")
	}
	if c.Feed.Enabled {
		if c.Feed.WebSocketURL == "" {
			return fmt.Errorf("feed.websocket_url is required when the feed is enabled")
		}
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed.symbols cannot be empty when the feed is enabled")
		}
	}
	return nil
}
