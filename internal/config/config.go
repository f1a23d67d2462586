// Package config loads go-fishid settings from a YAML file and the environment.
//
// Priority (highest to lowest): environment variables > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPort        = "3000"
	DefaultModel       = "gemini-1.5-flash"
	DefaultPrompt      = "Identify the animal in this image and provide information about its species, habitat, and interesting facts."
	DefaultMaxUpload   = 20 << 20
	DefaultCameraKind  = "local"
	DefaultJPEGQuality = 90
)

// Config is the root configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Gemini GeminiConfig `yaml:"gemini"`
	Camera CameraConfig `yaml:"camera"`

	// RemoteURL, when set, makes the CLI send images to a running fishid
	// server instead of calling Gemini directly.
	RemoteURL string `yaml:"remote_url"`

	// MaxUploadBytes caps multipart uploads accepted by the web API.
	MaxUploadBytes int `yaml:"max_upload_bytes"`
}

// GeminiConfig configures the recognition model.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Prompt  string        `yaml:"prompt"`
	Timeout time.Duration `yaml:"timeout"`
}

// CameraConfig selects and tunes the live capture device.
type CameraConfig struct {
	// Kind is "local" (gocv device on this machine) or "relay" (browser
	// camera connected over /ws/camera).
	Kind              string        `yaml:"kind"`
	EnvironmentDevice int           `yaml:"environment_device"`
	UserDevice        int           `yaml:"user_device"`
	Quality           int           `yaml:"quality"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     DefaultPort,
		LogLevel: "info",
		Gemini: GeminiConfig{
			Model:   DefaultModel,
			Prompt:  DefaultPrompt,
			Timeout: 60 * time.Second,
		},
		Camera: CameraConfig{
			Kind:              DefaultCameraKind,
			EnvironmentDevice: 0,
			UserDevice:        0,
			Quality:           DefaultJPEGQuality,
			OpenTimeout:       10 * time.Second,
		},
		MaxUploadBytes: DefaultMaxUpload,
	}
}

// DefaultPath returns ~/.fishid/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fishid", "config.yaml")
}

// Load reads path (if it exists) over the defaults and applies env overrides.
// An empty path means DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FISHID_REMOTE_URL"); v != "" {
		c.RemoteURL = v
	}
	if v := os.Getenv("FISHID_CAMERA"); v != "" {
		c.Camera.Kind = v
	}
	if v := os.Getenv("FISHID_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxUploadBytes = n
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks values are usable. Returns a list of problems, or nil.
// The API key is not checked here: commands that talk to a remote server
// do not need one.
func (c *Config) Validate() []string {
	var problems []string

	if c.Port == "" {
		problems = append(problems, "port must be set")
	}
	if c.Gemini.Model == "" {
		problems = append(problems, "gemini.model must be set")
	}
	if c.Gemini.Timeout < 0 {
		problems = append(problems, "gemini.timeout must not be negative")
	}
	if c.Camera.Kind != "local" && c.Camera.Kind != "relay" {
		problems = append(problems, "camera.kind must be local or relay")
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		problems = append(problems, "camera.quality must be between 1 and 100")
	}
	if c.Camera.EnvironmentDevice < 0 || c.Camera.UserDevice < 0 {
		problems = append(problems, "camera device indexes must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "max_upload_bytes must be positive")
	}

	return problems
}
