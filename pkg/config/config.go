package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"time"
)

const (
	DefaultSource         = "go"
	DefaultEnvironment    = "production"
	DefaultBufferCapacity = 20
	DefaultMaxBufferSize  = 1000
	DefaultFlushInterval  = 5 * time.Second
	DefaultSenderWorkers  = 2
	DefaultSendQueueSize  = 16
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second
	DefaultDeviceInfoTTL  = time.Minute
)

// Config is everything the client needs to buffer and deliver telemetry.
type Config struct {
	Endpoint    string `yaml:"endpoint"`
	Secret      string `yaml:"secret"`
	ProjectKey  string `yaml:"project_key"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
	AppVersion  string `yaml:"app_version"`
	BuildNumber string `yaml:"build_number"`
	Source      string `yaml:"source"`

	BufferCapacity int           `yaml:"buffer_capacity"`
	MaxBufferSize  int           `yaml:"max_buffer_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	SenderWorkers  int           `yaml:"sender_workers"`
	SendQueueSize  int           `yaml:"send_queue_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	DeviceInfoTTL  time.Duration `yaml:"device_info_ttl"`
}

func Default() Config {
	return Config{
		Environment:    DefaultEnvironment,
		Source:         DefaultSource,
		BufferCapacity: DefaultBufferCapacity,
		MaxBufferSize:  DefaultMaxBufferSize,
		FlushInterval:  DefaultFlushInterval,
		SenderWorkers:  DefaultSenderWorkers,
		SendQueueSize:  DefaultSendQueueSize,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		DeviceInfoTTL:  DefaultDeviceInfoTTL,
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FLARE_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Endpoint = getEnvOr("FLARE_ENDPOINT", c.Endpoint)
	c.Secret = getEnvOr("FLARE_SECRET", c.Secret)
	c.ProjectKey = getEnvOr("FLARE_PROJECT_KEY", c.ProjectKey)
	c.Environment = getEnvOr("FLARE_ENVIRONMENT", c.Environment)
	c.Release = getEnvOr("FLARE_RELEASE", c.Release)
	if v, ok := os.LookupEnv("FLARE_BUFFER_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FLARE_BUFFER_CAPACITY %q: %w", v, err)
		}
		c.BufferCapacity = n
	}
	if v, ok := os.LookupEnv("FLARE_FLUSH_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FLARE_FLUSH_INTERVAL %q: %w", v, err)
		}
		c.FlushInterval = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Secret == "" {
		return ErrMissingSecret
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, c.BufferCapacity)
	}
	if c.MaxBufferSize < c.BufferCapacity {
		return fmt.Errorf("%w: max_buffer_size %d is below buffer_capacity %d",
			ErrInvalidCapacity, c.MaxBufferSize, c.BufferCapacity)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.FlushInterval)
	}
	if c.SenderWorkers <= 0 || c.SendQueueSize <= 0 {
		return fmt.Errorf("%w: workers=%d queue=%d", ErrInvalidSenderPool, c.SenderWorkers, c.SendQueueSize)
	}
	return nil
}

func getEnvOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

var (
	ErrMissingEndpoint   = errors.New("endpoint is required")
	ErrMissingSecret     = errors.New("secret is required")
	ErrInvalidCapacity   = errors.New("invalid buffer capacity")
	ErrInvalidInterval   = errors.New("flush interval must be positive")
	ErrInvalidSenderPool = errors.New("sender pool needs at least one worker and one queue slot")
)
