// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management
// for routerchat.
//
// Supports TOML configuration with sensible defaults, environment
// variable overrides, and validation.
//
// Configuration file location:
//   - ~/.routerchat/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete routerchat configuration.
type Config struct {
	// General settings
	Version      string `toml:"version"`
	DefaultModel string `toml:"default_model"`

	// Relay server configuration
	Relay RelayConfig `toml:"relay"`

	// Chat client configuration
	Client ClientConfig `toml:"client"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// Telemetry configuration
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Export configuration
	Export ExportConfig `toml:"export"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// RelayConfig contains relay server configuration.
type RelayConfig struct {
	// Host is the address the relay binds to
	Host string `toml:"host"`
	// Port is the relay listen port
	Port int `toml:"port"`
	// OpenRouterKey is the OpenRouter API key
	OpenRouterKey string `toml:"openrouter_key"`
	// OpenRouterURL overrides the OpenRouter base URL (for testing)
	OpenRouterURL string `toml:"openrouter_url"`
	// SiteURL is sent as the HTTP-Referer header to OpenRouter
	SiteURL string `toml:"site_url"`
	// SiteName is sent as the X-Title header to OpenRouter
	SiteName string `toml:"site_name"`
}

// ClientConfig contains chat client configuration.
type ClientConfig struct {
	// RelayURL is the base URL of the relay the client talks to
	RelayURL string `toml:"relay_url"`
}

// StorageConfig contains local persistence configuration.
type StorageConfig struct {
	// DataDir overrides the data directory (empty = ~/.routerchat)
	DataDir string `toml:"data_dir"`
	// WatchEnabled reloads conversations when another process writes them
	WatchEnabled bool `toml:"watch_enabled"`
}

// TelemetryConfig contains local usage statistics configuration.
// Stats never leave the machine; they live in a local SQLite database.
type TelemetryConfig struct {
	// Enabled controls whether usage stats are recorded
	Enabled bool `toml:"enabled"`
	// DBPath overrides the stats database path (empty = <data_dir>/usage.db)
	DBPath string `toml:"db_path"`
}

// ExportConfig contains transcript export configuration.
type ExportConfig struct {
	// Dir is where exported transcripts are written (empty = current directory)
	Dir string `toml:"dir"`
	// HighlightTheme is the chroma style used for HTML code blocks
	HighlightTheme string `toml:"highlight_theme"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// Plain forces the line-based REPL instead of the full-screen UI
	Plain bool `toml:"plain"`
	// RenderMarkdown renders AI replies as markdown in the TUI
	RenderMarkdown bool `toml:"render_markdown"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: model.DefaultModelID,

		Relay: RelayConfig{
			Host:     "127.0.0.1",
			Port:     3000,
			SiteURL:  "https://routerchat.local",
			SiteName: "routerchat",
		},

		Client: ClientConfig{
			RelayURL: "http://127.0.0.1:3000",
		},

		Storage: StorageConfig{
			DataDir:      "",
			WatchEnabled: true,
		},

		Telemetry: TelemetryConfig{
			Enabled: true,
		},

		Export: ExportConfig{
			HighlightTheme: "monokai",
		},

		UI: UIConfig{
			Theme:          "dark",
			Plain:          false,
			RenderMarkdown: true,
			CompactMode:    false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the routerchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".routerchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults when the file is absent. Environment overrides are applied
// last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := loadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# routerchat configuration file")
	fmt.Fprintln(file, "# Generated by routerchat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Relay.Port < 1 || c.Relay.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "relay.port",
			Message: fmt.Sprintf("must be 1-65535, got %d", c.Relay.Port),
		})
	}

	if c.Relay.OpenRouterURL != "" {
		if _, err := url.Parse(c.Relay.OpenRouterURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "relay.openrouter_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.Client.RelayURL != "" {
		if _, err := url.Parse(c.Client.RelayURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "client.relay_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.DefaultModel != "" && !model.IsFreeModel(c.DefaultModel) {
		errs = append(errs, ValidationError{
			Field:   "default_model",
			Message: fmt.Sprintf("model '%s' is not supported, only free-tier models are allowed", c.DefaultModel),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}

	if c.Relay.Host == "" {
		c.Relay.Host = defaults.Relay.Host
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = defaults.Relay.Port
	}
	if c.Relay.SiteURL == "" {
		c.Relay.SiteURL = defaults.Relay.SiteURL
	}
	if c.Relay.SiteName == "" {
		c.Relay.SiteName = defaults.Relay.SiteName
	}

	if c.Client.RelayURL == "" {
		c.Client.RelayURL = defaults.Client.RelayURL
	}

	if c.Export.HighlightTheme == "" {
		c.Export.HighlightTheme = defaults.Export.HighlightTheme
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ROUTERCHAT_MODEL: overrides default_model
//   - ROUTERCHAT_OPENROUTER_KEY: overrides relay.openrouter_key
//   - ROUTERCHAT_OPENROUTER_URL: overrides relay.openrouter_url
//   - ROUTERCHAT_RELAY_URL: overrides client.relay_url
//   - ROUTERCHAT_PORT: overrides relay.port
//   - ROUTERCHAT_DATA_DIR: overrides storage.data_dir
//   - ROUTERCHAT_PLAIN: set to "1" or "true" to force the plain REPL
//   - ROUTERCHAT_NO_TELEMETRY: set to "1" or "true" to disable usage stats
func (c *Config) ApplyEnvOverrides() {
	if m := os.Getenv("ROUTERCHAT_MODEL"); m != "" {
		c.DefaultModel = m
	}

	if key := os.Getenv("ROUTERCHAT_OPENROUTER_KEY"); key != "" {
		c.Relay.OpenRouterKey = key
	}
	// OPENROUTER_API_KEY is the conventional name; accept it too.
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && c.Relay.OpenRouterKey == "" {
		c.Relay.OpenRouterKey = key
	}

	if u := os.Getenv("ROUTERCHAT_OPENROUTER_URL"); u != "" {
		c.Relay.OpenRouterURL = u
	}

	if u := os.Getenv("ROUTERCHAT_RELAY_URL"); u != "" {
		c.Client.RelayURL = u
	}

	if p := os.Getenv("ROUTERCHAT_PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			c.Relay.Port = port
		}
	}

	if dir := os.Getenv("ROUTERCHAT_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}

	if plain := os.Getenv("ROUTERCHAT_PLAIN"); plain != "" {
		c.UI.Plain = plain == "1" || strings.ToLower(plain) == "true"
	}

	if noTel := os.Getenv("ROUTERCHAT_NO_TELEMETRY"); noTel != "" {
		if noTel == "1" || strings.ToLower(noTel) == "true" {
			c.Telemetry.Enabled = false
		}
	}
}

// =============================================================================
// GLOBAL CONFIGURATION
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
