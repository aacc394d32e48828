// Package config loads the TOML configuration file (spec §6
// "Configuration file") via viper, the way the teacher layers
// defaults → global file → project-local file → environment overrides.
// Narrowed to exactly the fields spec §3 names: this system has no
// gateway, Telegram, database, or sub-agent configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	apperrors "github.com/n4ar/sabi/pkg/errors"
)

// Config holds the tunables spec §3 lists under "Configuration
// (external, injected)".
type Config struct {
	Provider           string   `mapstructure:"provider"`             // selects transport shape: "openai" | "gemini"
	APIKey             string   `mapstructure:"api_key"`              // auth header
	BaseURL            string   `mapstructure:"base_url"`             // endpoint override
	Model              string   `mapstructure:"model"`                // model identifier
	MaxHistoryMessages int      `mapstructure:"max_history_messages"` // sliding-window size for non-system messages
	MaxOutputBytes     int      `mapstructure:"max_output_bytes"`     // hard cap on each captured stream
	MaxOutputLines     int      `mapstructure:"max_output_lines"`     // hard cap on lines per captured stream
	DangerousPatterns  []string `mapstructure:"dangerous_patterns"`   // empty set disables the gate
	SafeMode           bool     `mapstructure:"safe_mode"`            // synthetic "would run" results, no real execution
}

const appName = "sabi"

// ConfigDir returns <config-dir>/sabi per spec §6 ("<config-dir>/<app-name>/config.toml").
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.Getenv("HOME"), ".config", appName)
}

// DataDir returns <data-dir>/sabi, the root session files live under
// (spec §6 "Session files").
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", appName)
}

// Load layers defaults, the global config file, a project-local
// override, and environment variables (spec §6: "Environment variables
// override file values... uniformly prefixed").
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	v.AddConfigPath(ConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.toml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("SABI")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects a provider name the llmfactory switch does not know
// about (spec §9: "configuration validation is an external concern" —
// this is that collaborator), so a typo in config.toml surfaces before
// onboarding rather than as a runtime factory error on first chat.
func validate(cfg *Config) error {
	switch cfg.Provider {
	case "", "openai", "gemini":
		return nil
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown provider %q (supported: openai, gemini)", cfg.Provider))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("base_url", "")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("max_history_messages", 20)
	v.SetDefault("max_output_bytes", 20000)
	v.SetDefault("max_output_lines", 500)
	v.SetDefault("dangerous_patterns", []string{
		`rm\s+-rf\s+/`,
		`mkfs`,
		`dd\s+if=`,
		`:\(\)\s*\{`,
		`>\s*/dev/sd`,
	})
	v.SetDefault("safe_mode", false)
}
