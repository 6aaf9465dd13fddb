package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Job dispatchers
const (
	DispatcherLocal    = "local"
	DispatcherRabbitMQ = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Relay    RelayConfig    `yaml:"relay"`
	Jobs     JobsConfig     `yaml:"jobs"`
	PDF      PDFConfig      `yaml:"pdf"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration.
// WriteTimeout stays zero by default so long SSE responses are not cut off.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// StorageConfig selects the key-value store backend
type StorageConfig struct {
	Driver    string       `yaml:"driver"`
	KeyPrefix string       `yaml:"key_prefix"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig holds the local database file settings
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// GeminiConfig holds the generation provider settings
type GeminiConfig struct {
	APIKey        string `yaml:"api_key"`
	ChatModel     string `yaml:"chat_model"`
	ImageModel    string `yaml:"image_model"`
	ResearchModel string `yaml:"research_model"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// PromptsConfig points at an optional prompt file overriding the built-in set
type PromptsConfig struct {
	Path string `yaml:"path"`
}

// RelayConfig sizes the pool that drains provider streams
type RelayConfig struct {
	PoolSize    int `yaml:"pool_size"`
	QueueSize   int `yaml:"queue_size"`
	ChunkBuffer int `yaml:"chunk_buffer"`
}

// JobsConfig controls how learning-plan jobs are executed
type JobsConfig struct {
	Dispatcher    string        `yaml:"dispatcher"`
	Concurrency   int           `yaml:"concurrency"`
	QueueSize     int           `yaml:"queue_size"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// PDFConfig holds upload bookkeeping settings
type PDFConfig struct {
	UploadDir    string        `yaml:"upload_dir"`
	IndexWait    time.Duration `yaml:"index_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AnnotateConfig maps aspect-ratio buckets to provider labels
type AnnotateConfig struct {
	AspectRatios AspectRatioLabels `yaml:"aspect_ratios"`
}

// AspectRatioLabels holds one label per bucket
type AspectRatioLabels struct {
	Widescreen string `yaml:"widescreen"`
	Wide       string `yaml:"wide"`
	Square     string `yaml:"square"`
	Tall       string `yaml:"tall"`
	Portrait   string `yaml:"portrait"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file, then fills defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills zero values with the service defaults
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "rabbit-hole-api"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 64 << 20
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/rabbit-hole.db"
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Gemini.ChatModel == "" {
		c.Gemini.ChatModel = "gemini-3-flash-preview"
	}
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = "gemini-3-pro-image-preview"
	}
	if c.Gemini.ResearchModel == "" {
		c.Gemini.ResearchModel = c.Gemini.ChatModel
	}
	if c.Gemini.MaxConcurrent == 0 {
		c.Gemini.MaxConcurrent = 8
	}
	if c.Relay.PoolSize == 0 {
		c.Relay.PoolSize = 32
	}
	if c.Relay.QueueSize == 0 {
		c.Relay.QueueSize = 64
	}
	if c.Relay.ChunkBuffer == 0 {
		c.Relay.ChunkBuffer = 16
	}
	if c.Jobs.Dispatcher == "" {
		c.Jobs.Dispatcher = DispatcherLocal
	}
	if c.Jobs.Concurrency == 0 {
		c.Jobs.Concurrency = 4
	}
	if c.Jobs.QueueSize == 0 {
		c.Jobs.QueueSize = 100
	}
	if c.Jobs.RetryAttempts == 0 {
		c.Jobs.RetryAttempts = 3
	}
	if c.Jobs.RetryInterval == 0 {
		c.Jobs.RetryInterval = 200 * time.Millisecond
	}
	if c.PDF.UploadDir == "" {
		c.PDF.UploadDir = os.TempDir() + "/rabbit-hole"
	}
	if c.PDF.IndexWait == 0 {
		c.PDF.IndexWait = 30 * time.Second
	}
	if c.PDF.PollInterval == 0 {
		c.PDF.PollInterval = 2 * time.Second
	}

	labels := &c.Annotate.AspectRatios
	if labels.Widescreen == "" {
		labels.Widescreen = "16:9"
	}
	if labels.Wide == "" {
		labels.Wide = "4:3"
	}
	if labels.Square == "" {
		labels.Square = "1:1"
	}
	if labels.Tall == "" {
		labels.Tall = "3:4"
	}
	if labels.Portrait == "" {
		labels.Portrait = "9:16"
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = c.Jobs.Concurrency
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Relay.PoolSize <= 0 {
		return fmt.Errorf("relay pool_size must be greater than 0")
	}

	if c.Relay.ChunkBuffer < 0 {
		return fmt.Errorf("relay chunk_buffer must not be negative")
	}

	switch c.Jobs.Dispatcher {
	case DispatcherLocal:
		if c.Jobs.Concurrency <= 0 {
			return fmt.Errorf("jobs concurrency must be greater than 0")
		}
	case DispatcherRabbitMQ:
		if c.Storage.Driver == DriverMemory {
			return fmt.Errorf("rabbitmq dispatcher requires a shared storage driver, got %q", c.Storage.Driver)
		}
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown jobs dispatcher: %q", c.Jobs.Dispatcher)
	}

	if c.PDF.PollInterval <= 0 || c.PDF.IndexWait < 0 {
		return fmt.Errorf("pdf poll_interval must be greater than 0 and index_wait must not be negative")
	}

	labels := c.Annotate.AspectRatios
	for name, label := range map[string]string{
		"widescreen": labels.Widescreen,
		"wide":       labels.Wide,
		"square":     labels.Square,
		"tall":       labels.Tall,
		"portrait":   labels.Portrait,
	} {
		if label == "" {
			return fmt.Errorf("annotate aspect ratio label %q is required", name)
		}
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Storage.Driver == DriverMemory {
		return fmt.Errorf("worker requires a shared storage driver, got %q", c.Storage.Driver)
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api_key is required (or set GEMINI_API_KEY)")
	}

	if c.Gemini.MaxConcurrent <= 0 {
		return fmt.Errorf("gemini max_concurrent must be greater than 0")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DriverPostgres:
		if c.Database.URL != "" {
			break
		}
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
