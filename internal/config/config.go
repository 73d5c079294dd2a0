package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Engine   EngineConfig   `yaml:"engine"`
	AI       AIConfig       `yaml:"ai"`
	Chain    ChainConfig    `yaml:"chain"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	EventsTopic    string        `yaml:"events_topic"`
	ActionsTopic   string        `yaml:"actions_topic"`
	GroupID        string        `yaml:"group_id"`
	FlushFrequency time.Duration `yaml:"flush_frequency"`
}

// EngineConfig holds game engine configuration
type EngineConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	AutoStartDelay    time.Duration `yaml:"auto_start_delay"`
	AIBackfillPercent int           `yaml:"ai_backfill_percent"`
	AdvisorTimeout    time.Duration `yaml:"advisor_timeout"`
	SettleTimeout     time.Duration `yaml:"settle_timeout"`
	RewardBaseURI     string        `yaml:"reward_base_uri"`
}

// ProviderConfig describes one AI provider in fallback order
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	HourlyLimit int     `yaml:"hourly_limit"`
	CostPer1K   float64 `yaml:"cost_per_1k"`
}

// AIConfig holds AI service manager configuration
type AIConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Providers   []ProviderConfig `yaml:"providers"`
	Window      time.Duration    `yaml:"window"`
	CacheTTL    time.Duration    `yaml:"cache_ttl"`
	MaxTokens   int64            `yaml:"max_tokens"`
	Temperature float64          `yaml:"temperature"`
}

// ChainConfig holds blockchain gateway configuration
type ChainConfig struct {
	Enabled         bool          `yaml:"enabled"`
	GatewayURL      string        `yaml:"gateway_url"`
	ChainID         string        `yaml:"chain_id"`
	SenderAddress   string        `yaml:"sender_address"`
	ContractAddress string        `yaml:"contract_address"`
	GasPrice        uint64        `yaml:"gas_price"`
	GasLimit        uint64        `yaml:"gas_limit"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// WorkerConfig holds totals sync worker configuration
type WorkerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (API keys, passwords)
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "game-events"
	}
	if c.Kafka.ActionsTopic == "" {
		c.Kafka.ActionsTopic = "game-actions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "gamehub-engine"
	}
	if c.Kafka.FlushFrequency == 0 {
		c.Kafka.FlushFrequency = 100 * time.Millisecond
	}

	// Engine defaults
	if c.Engine.TickInterval == 0 {
		c.Engine.TickInterval = 1 * time.Second
	}
	if c.Engine.AutoStartDelay == 0 {
		c.Engine.AutoStartDelay = 5 * time.Second
	}
	if c.Engine.AIBackfillPercent == 0 {
		c.Engine.AIBackfillPercent = 30
	}
	if c.Engine.AdvisorTimeout == 0 {
		c.Engine.AdvisorTimeout = 10 * time.Second
	}
	if c.Engine.SettleTimeout == 0 {
		c.Engine.SettleTimeout = 30 * time.Second
	}
	if c.Engine.RewardBaseURI == "" {
		c.Engine.RewardBaseURI = "https://meta.gamehub.example/rewards"
	}

	// AI defaults
	if c.AI.Window == 0 {
		c.AI.Window = 1 * time.Hour
	}
	if c.AI.CacheTTL == 0 {
		c.AI.CacheTTL = 10 * time.Minute
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 500
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.7
	}
	for i := range c.AI.Providers {
		if c.AI.Providers[i].HourlyLimit == 0 {
			c.AI.Providers[i].HourlyLimit = 100
		}
	}

	// Chain defaults
	if c.Chain.GatewayURL == "" {
		c.Chain.GatewayURL = "https://devnet-gateway.multiversx.com"
	}
	if c.Chain.ChainID == "" {
		c.Chain.ChainID = "D"
	}
	if c.Chain.GasPrice == 0 {
		c.Chain.GasPrice = 1000000000
	}
	if c.Chain.GasLimit == 0 {
		c.Chain.GasLimit = 10000000
	}
	if c.Chain.RequestTimeout == 0 {
		c.Chain.RequestTimeout = 10 * time.Second
	}

	// Worker defaults
	if c.Worker.Interval == 0 {
		c.Worker.Interval = 5 * time.Minute
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 1000
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Worker.Enabled = true
	return cfg
}
