// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Recorder   RecorderConfig   `mapstructure:"recorder"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog"`
	Permission PermissionConfig `mapstructure:"permission"`
	Display    DisplayConfig    `mapstructure:"display"`
	Input      InputConfig      `mapstructure:"input"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"` // Mirror logs into a file
	LogLevel    string `mapstructure:"log_level"`    // Overrides LOG_LEVEL env var
}

// RecorderConfig sizes the flight recorder
type RecorderConfig struct {
	Capacity          int `mapstructure:"capacity"`            // Ring buffer entries
	RateWindowSeconds int `mapstructure:"rate_window_seconds"` // Trailing window for events/sec
}

// WatchdogConfig tunes unhealthy-tap detection
type WatchdogConfig struct {
	CheckIntervalSeconds    int `mapstructure:"check_interval_seconds"`
	UnhealthyThreshold      int `mapstructure:"unhealthy_threshold"` // Consecutive checks per episode
	RecreateCooldownSeconds int `mapstructure:"recreate_cooldown_seconds"`
}

// PermissionConfig tunes the access polling loop
type PermissionConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// Rectangle is a display frame in top-left-origin panel coordinates
type Rectangle struct {
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// DisplayConfig describes where display geometry comes from
type DisplayConfig struct {
	Backend     string    `mapstructure:"backend"`      // "wlr-randr" or "static"
	TouchOutput string    `mapstructure:"touch_output"` // Output name of the touch display
	Reference   Rectangle `mapstructure:"reference"`    // Static reference frame (panel space)
	Touch       Rectangle `mapstructure:"touch"`        // Static touch frame (panel space)
}

// InputConfig pins down input devices
type InputConfig struct {
	TouchDevice     string  `mapstructure:"touch_device"`     // Optional /dev/input/event* hint
	ExcludedDevices []int64 `mapstructure:"excluded_devices"` // Never eligible for learning
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Logging: LoggingConfig{
			FileLogging: false,
			LogLevel:    "", // Empty means use LOG_LEVEL env var
		},
		Recorder: RecorderConfig{
			Capacity:          512,
			RateWindowSeconds: 10,
		},
		Watchdog: WatchdogConfig{
			CheckIntervalSeconds:    5,
			UnhealthyThreshold:      3,
			RecreateCooldownSeconds: 30,
		},
		Permission: PermissionConfig{
			PollIntervalSeconds: 2,
		},
		Display: DisplayConfig{
			Backend:     "wlr-randr",
			TouchOutput: "",
		},
		Input: InputConfig{
			TouchDevice:     "",
			ExcludedDevices: []int64{},
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("touchmapd")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "touchmapd"))
		}
		viper.AddConfigPath("/etc/touchmapd")
		viper.AddConfigPath(".")
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("logging.file_logging", DefaultConfig.Logging.FileLogging)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	viper.SetDefault("recorder.capacity", DefaultConfig.Recorder.Capacity)
	viper.SetDefault("recorder.rate_window_seconds", DefaultConfig.Recorder.RateWindowSeconds)

	viper.SetDefault("watchdog.check_interval_seconds", DefaultConfig.Watchdog.CheckIntervalSeconds)
	viper.SetDefault("watchdog.unhealthy_threshold", DefaultConfig.Watchdog.UnhealthyThreshold)
	viper.SetDefault("watchdog.recreate_cooldown_seconds", DefaultConfig.Watchdog.RecreateCooldownSeconds)

	viper.SetDefault("permission.poll_interval_seconds", DefaultConfig.Permission.PollIntervalSeconds)

	viper.SetDefault("display.backend", DefaultConfig.Display.Backend)
	viper.SetDefault("display.touch_output", DefaultConfig.Display.TouchOutput)

	viper.SetDefault("input.touch_device", DefaultConfig.Input.TouchDevice)
	viper.SetDefault("input.excluded_devices", DefaultConfig.Input.ExcludedDevices)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/touchmapd/touchmapd.toml"
	}
	return filepath.Join(home, ".config", "touchmapd", "touchmapd.toml")
}
