// Package camera provides a local camera device for media capture, backed by
// OpenCV through gocv.
package camera

import (
	"time"
)

// Config holds the local camera settings.
type Config struct {
	// EnvironmentDevice is the OpenCV device index used for the rear
	// ("environment") camera. On laptops this is usually the same as
	// UserDevice.
	EnvironmentDevice int `json:"environment_device"`

	// UserDevice is the device index for the front ("user") camera.
	UserDevice int `json:"user_device"`

	// Framerate requested from the driver. 0 leaves the driver default.
	Framerate int `json:"framerate"`

	// WarmupFrames are read and discarded after open. Many webcams return
	// black or empty frames while auto exposure settles.
	WarmupFrames int `json:"warmup_frames"`

	// OpenTimeout bounds how long opening the device may take.
	OpenTimeout time.Duration `json:"open_timeout"`
}

// Limits.
const (
	MaxDeviceIndex  = 63
	MaxWarmupFrames = 60
	MaxFramerate    = 120
)

// DefaultConfig returns a configuration for a single built-in webcam.
func DefaultConfig() Config {
	return Config{
		EnvironmentDevice: 0,
		UserDevice:        0,
		Framerate:         30,
		WarmupFrames:      5,
		OpenTimeout:       10 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.EnvironmentDevice < 0 || c.EnvironmentDevice > MaxDeviceIndex {
		errors = append(errors, "environment_device must be between 0 and 63")
	}
	if c.UserDevice < 0 || c.UserDevice > MaxDeviceIndex {
		errors = append(errors, "user_device must be between 0 and 63")
	}
	if c.Framerate < 0 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 0 and 120")
	}
	if c.WarmupFrames < 0 || c.WarmupFrames > MaxWarmupFrames {
		errors = append(errors, "warmup_frames must be between 0 and 60")
	}
	if c.OpenTimeout < 0 {
		errors = append(errors, "open_timeout must not be negative")
	}

	return errors
}
