package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultCleanupDelay is how long a delivered archive stays on disk
	DefaultCleanupDelay = 10 * time.Second

	// DefaultCompressionLevel selects deflate's default level. Zero is a valid
	// level (store only), so it is preset before decoding.
	DefaultCompressionLevel = -1
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Worker   WorkerConfig   `yaml:"worker"`
	Storage  StorageConfig  `yaml:"storage"`
	Packager PackagerConfig `yaml:"packager"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Registry RegistryConfig `yaml:"registry"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format"`
	NoColor      bool   `yaml:"no_color"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	QueueSize       int           `yaml:"queue_size"`
	JobTimeout      time.Duration `yaml:"job_timeout"` // 0 disables the per-job timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds filesystem locations
type StorageConfig struct {
	WorkDir     string `yaml:"work_dir"`
	ArtifactDir string `yaml:"artifact_dir"`
}

// PackagerConfig holds archive settings
type PackagerConfig struct {
	CompressionLevel int `yaml:"compression_level"`
}

// CleanupConfig holds artifact cleanup settings
type CleanupConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// RegistryConfig holds job record retention settings
type RegistryConfig struct {
	Retention     time.Duration `yaml:"retention"` // 0 keeps records for the process lifetime
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// FetcherConfig holds the external scraper command
type FetcherConfig struct {
	Command string              `yaml:"command"`
	Args    map[string][]string `yaml:"args"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
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
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// Load reads and parses the configuration file, then fills in defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{Packager: PackagerConfig{CompressionLevel: DefaultCompressionLevel}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero values that have a sensible default
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "archive-service"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = 64
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Storage.WorkDir == "" {
		c.Storage.WorkDir = "data/work"
	}
	if c.Storage.ArtifactDir == "" {
		c.Storage.ArtifactDir = "data/artifacts"
	}
	if c.Cleanup.Delay == 0 {
		c.Cleanup.Delay = DefaultCleanupDelay
	}
	if c.Registry.Retention > 0 && c.Registry.SweepInterval == 0 {
		c.Registry.SweepInterval = time.Minute
	}
	if c.Fetcher.Command == "" {
		c.Fetcher.Command = "vscoscrape"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort))
	}
	if err := c.ValidateWorkerConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.WorkDir == "" {
		errs = append(errs, fmt.Errorf("storage work_dir is required"))
	}
	if c.Storage.ArtifactDir == "" {
		errs = append(errs, fmt.Errorf("storage artifact_dir is required"))
	}
	if c.Packager.CompressionLevel < -2 || c.Packager.CompressionLevel > 9 {
		errs = append(errs, fmt.Errorf("invalid packager compression_level: %d (must be between -2 and 9)", c.Packager.CompressionLevel))
	}
	if c.Cleanup.Delay < 0 {
		errs = append(errs, fmt.Errorf("cleanup delay must not be negative"))
	}
	if c.Registry.Retention < 0 {
		errs = append(errs, fmt.Errorf("registry retention must not be negative"))
	}
	if c.Fetcher.Command == "" {
		errs = append(errs, fmt.Errorf("fetcher command is required"))
	}
	if _, err := c.FetcherArgs(); err != nil {
		errs = append(errs, err)
	}
	if c.RabbitMQ.Enabled {
		if err := c.ValidateRabbitMQConfig(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ValidateWorkerConfig checks the worker pool settings
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.QueueSize < 0 {
		return fmt.Errorf("worker queue_size must not be negative")
	}

	if c.Worker.JobTimeout < 0 {
		return fmt.Errorf("worker job_timeout must not be negative")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

// ValidateRabbitMQConfig checks the event publisher settings
func (c *Config) ValidateRabbitMQConfig() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}

// FetcherArgs converts the configured argument templates to job type keys
func (c *Config) FetcherArgs() (map[domain.JobType][]string, error) {
	args := make(map[domain.JobType][]string, len(c.Fetcher.Args))
	for key, value := range c.Fetcher.Args {
		jobType, err := domain.ParseJobType(key)
		if err != nil || key == "" {
			return nil, fmt.Errorf("invalid fetcher args key %q", key)
		}
		args[jobType] = value
	}
	return args, nil
}
