// Package config loads and saves the plotter settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"serial-plotter/internal/capture"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/render"
	"serial-plotter/internal/transcript"
)

const configDirName = "serial-plotter"
const settingsFileName = "settings.yaml"

// Config holds user settings. Zero values are replaced by defaults on Load.
type Config struct {
	Port             string        `yaml:"port"`
	BaudRate         int           `yaml:"baud_rate"`
	WindowSize       int           `yaml:"window_size"`
	RenderPeriod     time.Duration `yaml:"render_period"`
	YMargin          *float64      `yaml:"y_margin"`
	ResetOnStart     *bool         `yaml:"reset_on_start"`
	TranscriptBuffer int           `yaml:"transcript_buffer"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	LogLevel         string        `yaml:"log_level"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Dir returns the app's directory under os.UserConfigDir, creating it.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	dir := filepath.Join(base, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the settings file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = channel.DefaultBaudRate
	}
	if c.WindowSize == 0 {
		c.WindowSize = capture.DefaultWindowSize
	}
	if c.RenderPeriod == 0 {
		c.RenderPeriod = render.DefaultPeriod
	}
	if c.YMargin == nil {
		m := render.DefaultMargin
		c.YMargin = &m
	}
	if c.ResetOnStart == nil {
		r := true
		c.ResetOnStart = &r
	}
	if c.TranscriptBuffer == 0 {
		c.TranscriptBuffer = transcript.DefaultBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.BaudRate < 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}
	if c.RenderPeriod < 0 {
		return fmt.Errorf("render_period must be positive, got %s", c.RenderPeriod)
	}
	if c.YMargin != nil && *c.YMargin < 0 {
		return fmt.Errorf("y_margin must not be negative, got %g", *c.YMargin)
	}
	if c.TranscriptBuffer < 0 {
		return fmt.Errorf("transcript_buffer must be positive, got %d", c.TranscriptBuffer)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Margin returns the y-range padding.
func (c *Config) Margin() float64 {
	if c.YMargin == nil {
		return render.DefaultMargin
	}
	return *c.YMargin
}

// ResetsOnStart reports whether a new session clears the capture log.
func (c *Config) ResetsOnStart() bool {
	return c.ResetOnStart == nil || *c.ResetOnStart
}

// Channel returns the channel configuration for the selected port.
func (c *Config) Channel() channel.Config {
	return channel.Config{Port: c.Port, BaudRate: c.BaudRate}
}
