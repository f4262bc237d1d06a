package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	CamerasPort int    `env:"CAMERAS_PORT" envDefault:"9000"`
	APIToken    string `env:"API_TOKEN"`

	ImageDirectory string `env:"IMAGE_DIR" envDefault:"./images"`
	LogDirectory   string `env:"LOG_DIR" envDefault:"./logs"`
	EventLogName   string `env:"EVENT_LOG" envDefault:"events.log"`
	DatabasePath   string `env:"DB_PATH" envDefault:"./data/frames.db"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	DarkThreshold     int  `env:"DARK_THRESHOLD" envDefault:"40"`
	DiscardDarkFrames bool `env:"DISCARD_DARK_FRAMES" envDefault:"false"`

	BufferLimit        int           `env:"BUFFER_LIMIT" envDefault:"10"`           // Frames kept per camera between flushes
	FlushInterval      time.Duration `env:"FLUSH_INTERVAL" envDefault:"30s"`
	ProcessingWorkers  int           `env:"PROCESSING_WORKERS" envDefault:"3"`
	ProcessingInterval int           `env:"PROCESSING_INTERVAL" envDefault:"1"` // Classify every Nth frame per camera

	// CameraNames maps a camera's source IP to a display name: "10.0.0.5=front,10.0.0.6=rear".
	CameraNames map[string]string `env:"CAMERA_NAMES" envSeparator:"," envKeyValSeparator:"="`
}

// Load reads an optional .env file and then the process environment.
// Explicit envFiles must exist; the implicit ./.env may be absent.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CameraNames == nil {
		cfg.CameraNames = make(map[string]string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ProcessingWorkers < 1:
		return fmt.Errorf("PROCESSING_WORKERS must be at least 1, got %d", c.ProcessingWorkers)
	case c.ProcessingInterval < 1:
		return fmt.Errorf("PROCESSING_INTERVAL must be at least 1, got %d", c.ProcessingInterval)
	case c.BufferLimit < 1:
		return fmt.Errorf("BUFFER_LIMIT must be at least 1, got %d", c.BufferLimit)
	case c.FlushInterval <= 0:
		return fmt.Errorf("FLUSH_INTERVAL must be positive, got %s", c.FlushInterval)
	case c.EventLogName == "" || filepath.Base(c.EventLogName) != c.EventLogName:
		return fmt.Errorf("EVENT_LOG must be a bare file name, got %q", c.EventLogName)
	}
	return nil
}

// EventLogPath is where per-frame event lines are appended.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.LogDirectory, c.EventLogName)
}

// CameraName resolves a source IP to its configured name.
func (c *Config) CameraName(ip string) string {
	if name, ok := c.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}
