// Package config loads the process configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Outbox OutboxConfig `yaml:"outbox"`
}

type EngineConfig struct {
	// SymbolGroups assigns symbols to shards, one shard per group.
	// The assignment is fixed for the process lifetime.
	SymbolGroups    [][]string `yaml:"symbol_groups"`
	QueueDepth      int        `yaml:"queue_depth"`
	DrainOnShutdown bool       `yaml:"drain_on_shutdown"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TicksTopic   string   `yaml:"ticks_topic"`
	ReportsTopic string   `yaml:"reports_topic"`
}

type OutboxConfig struct {
	Dir            string `yaml:"dir"`
	ScanIntervalMs int    `yaml:"scan_interval_ms"`
	ResendAfterMs  int    `yaml:"resend_after_ms"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			QueueDepth:      1024,
			DrainOnShutdown: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Kafka: KafkaConfig{
			TicksTopic:   "trade-ticks",
			ReportsTopic: "execution-reports",
		},
		Outbox: OutboxConfig{
			Dir:            "./outbox",
			ScanIntervalMs: 250,
			ResendAfterMs:  5000,
		},
	}
}

// Load reads YAML from path over the defaults and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Engine.SymbolGroups) == 0 {
		return errors.New("config: engine.symbol_groups must not be empty")
	}
	for i, group := range c.Engine.SymbolGroups {
		if len(group) == 0 {
			return fmt.Errorf("config: engine.symbol_groups[%d] is empty", i)
		}
	}
	if c.Engine.QueueDepth < 0 {
		return errors.New("config: engine.queue_depth must be >= 0")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka.brokers required when kafka.enabled")
	}
	if c.Outbox.Dir == "" {
		return errors.New("config: outbox.dir must not be empty")
	}
	if c.Outbox.ScanIntervalMs <= 0 || c.Outbox.ResendAfterMs <= 0 {
		return errors.New("config: outbox intervals must be > 0")
	}
	return nil
}
