package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

var (
	ErrMissingSecret        = errors.New("collector secret is required")
	ErrMissingListenAddress = errors.New("collector listen address is required")
)

type ElasticsearchConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addresses   []string `yaml:"addresses"`
	EventsIndex string   `yaml:"events_index"`
	TracesIndex string   `yaml:"traces_index"`
}

type OTLPConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type Config struct {
	ListenAddress string              `yaml:"listen_address"`
	Secret        string              `yaml:"secret"`
	ProjectKeys   []string            `yaml:"project_keys"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	OTLP          OTLPConfig          `yaml:"otlp"`
}

func Default() Config {
	return Config{
		ListenAddress: ":8090",
		Elasticsearch: ElasticsearchConfig{
			EventsIndex: "flare_events",
			TracesIndex: "flare_traces",
		},
		OTLP: OTLPConfig{
			ServiceName: "flare-collector",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read collector config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse collector config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("FLARE_COLLECTOR_SECRET"); ok {
		c.Secret = v
	}
	if v, ok := os.LookupEnv("FLARE_COLLECTOR_LISTEN_ADDRESS"); ok {
		c.ListenAddress = v
	}
}

func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return ErrMissingListenAddress
	}
	if c.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// AllowsProjectKey reports whether key may submit batches. An empty allow-list accepts any key.
func (c Config) AllowsProjectKey(key string) bool {
	if len(c.ProjectKeys) == 0 {
		return true
	}
	for _, allowed := range c.ProjectKeys {
		if allowed == key {
			return true
		}
	}
	return false
}
