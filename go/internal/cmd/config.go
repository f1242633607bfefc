package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/events"
	"github.com/mcdev12/gatetimer/go/internal/game"
	"github.com/mcdev12/gatetimer/go/internal/live"
	"github.com/mcdev12/gatetimer/go/internal/race"
	"gopkg.in/yaml.v3"
)

const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

// ServerConfig is the control server's own configuration. Game settings
// live in the settings store, not here.
type ServerConfig struct {
	Port      string `yaml:"port" env:"PORT"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`

	Settings struct {
		Backend string `yaml:"backend" env:"SETTINGS_BACKEND"`
		Path    string `yaml:"path" env:"CONFIG_PATH"`
	} `yaml:"settings"`

	Push struct {
		Timeout   time.Duration `yaml:"timeout" env:"PUSH_TIMEOUT"`
		Workers   int           `yaml:"workers" env:"PUSH_WORKERS"`
		QueueSize int           `yaml:"queue_size" env:"PUSH_QUEUE_SIZE"`
	} `yaml:"push"`

	Live struct {
		Interval time.Duration `yaml:"interval" env:"LIVE_INTERVAL"`
	} `yaml:"live"`

	Race struct {
		MaxLaps int `yaml:"max_laps" env:"MAX_LAPS"`
	} `yaml:"race"`

	Nodes struct {
		StaleAfter time.Duration `yaml:"stale_after" env:"NODE_STALE_AFTER"`
	} `yaml:"nodes"`

	NATS struct {
		URL     string `yaml:"url" env:"NATS_URL"`
		Subject string `yaml:"subject" env:"NATS_SUBJECT"`
	} `yaml:"nats"`
}

func defaultConfig() *ServerConfig {
	push := nodeclient.DefaultDispatcherConfig()

	cfg := &ServerConfig{
		Port:     "9090",
		LogLevel: "info",
	}
	cfg.Settings.Backend = backendFile
	cfg.Settings.Path = "config.json"
	cfg.Push.Timeout = push.Timeout
	cfg.Push.Workers = push.Workers
	cfg.Push.QueueSize = push.QueueSize
	cfg.Live.Interval = live.DefaultConfig().Interval
	cfg.Race.MaxLaps = race.DefaultMaxLaps
	cfg.Nodes.StaleAfter = game.DefaultStaleAfter
	cfg.NATS.Subject = events.DefaultNATSConfig().SubjectPrefix
	return cfg
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless required is set. Environment overrides are applied last.
func loadConfig(path string, required bool) (*ServerConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// unset and empty variables keep the file values
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ()}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) validate() error {
	switch c.Settings.Backend {
	case backendFile, backendPostgres:
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}
	if c.Push.Workers <= 0 || c.Push.QueueSize <= 0 || c.Push.Timeout <= 0 {
		return fmt.Errorf("push workers, queue_size and timeout must be positive")
	}
	if c.Live.Interval <= 0 {
		return fmt.Errorf("live interval must be positive")
	}
	return nil
}

func (c *ServerConfig) dispatcherConfig() nodeclient.DispatcherConfig {
	return nodeclient.DispatcherConfig{
		Workers:   c.Push.Workers,
		QueueSize: c.Push.QueueSize,
		Timeout:   c.Push.Timeout,
	}
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if value != "" {
			out[key] = value
		}
	}
	return out
}
