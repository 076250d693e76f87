// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/thinkchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete thinkchat configuration.
type Config struct {
	// General settings
	Version      string `toml:"version" json:"version"`
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Ollama server connection
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Chat behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Where transcripts and parameter files live
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// OllamaConfig contains the server connection settings.
type OllamaConfig struct {
	// URL is the Ollama API base URL
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// KeepAlive is how long the server keeps the model loaded (e.g. "5m")
	KeepAlive string `toml:"keep_alive" json:"keep_alive"`
	// AutoStart launches "ollama serve" when the server is not reachable
	AutoStart bool `toml:"auto_start" json:"auto_start"`
}

// ChatConfig contains conversation settings.
type ChatConfig struct {
	// SystemMessage is added to every new session when non-empty
	SystemMessage string `toml:"system_message" json:"system_message"`
	// Mirror prints every message to the console as it is logged
	Mirror bool `toml:"mirror" json:"mirror"`
	// ShowReasoning keeps finished reasoning expanded instead of collapsed
	ShowReasoning bool `toml:"show_reasoning" json:"show_reasoning"`
	// Markdown renders answers as markdown
	Markdown bool `toml:"markdown" json:"markdown"`
	// AutoSave stores the transcript after every reply
	AutoSave bool `toml:"auto_save" json:"auto_save"`
}

// StorageConfig contains file locations. Empty values resolve under the
// config directory.
type StorageConfig struct {
	// HistoryDB is the SQLite transcript database
	HistoryDB string `toml:"history_db" json:"history_db"`
	// ParamsDir holds the per-model parameter files
	ParamsDir string `toml:"params_dir" json:"params_dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json"
	Format string `toml:"format" json:"format"`
	// File receives log output; the TUI owns the terminal so logs never go
	// to stderr while it runs
	File string `toml:"file" json:"file"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// RenderFPS caps how often streamed text is redrawn
	RenderFPS int `toml:"render_fps" json:"render_fps"`
	// ShowStats displays timing and token counts under replies
	ShowStats bool `toml:"show_stats" json:"show_stats"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1",
		DefaultModel: "qwen3:8b",

		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			TimeoutSecs: 30,
			KeepAlive:   "5m",
			AutoStart:   false,
		},

		Chat: ChatConfig{
			Mirror:        false,
			ShowReasoning: false,
			Markdown:      true,
			AutoSave:      true,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},

		UI: UIConfig{
			Theme:     "auto",
			RenderFPS: 30,
			ShowStats: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the thinkchat configuration directory path.
// THINKCHAT_HOME overrides the default of ~/.thinkchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("THINKCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".thinkchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
//
// A file that fails to parse is reported alongside a usable default config
// so callers can warn and continue.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	loaded := false
	if path, err := ConfigPathTOML(); err == nil && fileExists(path) {
		if err := LoadTOML(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			cfg = Default()
		} else {
			loaded = true
		}
	}
	if !loaded {
		if path, err := ConfigPathJSON(); err == nil && fileExists(path) {
			if err := LoadJSON(cfg, path); err != nil {
				loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
				cfg = Default()
			}
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish runs the shared tail of every load: env, migrate, defaults, validate.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	if err := c.SetDefaults(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}

	// Ollama
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = defaults.Ollama.TimeoutSecs
	}
	if cfg.Ollama.KeepAlive == "" {
		cfg.Ollama.KeepAlive = defaults.Ollama.KeepAlive
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.RenderFPS == 0 {
		cfg.UI.RenderFPS = defaults.UI.RenderFPS
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# thinkchat configuration file\n")
	sb.WriteString("# Generated by thinkchat - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
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

	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, ValidationError{Field: "default_model", Message: "must not be empty"})
	}

	// Ollama
	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL %q: must be http(s)://host[:port]", c.Ollama.URL),
		})
	}
	if c.Ollama.TimeoutSecs < 1 || c.Ollama.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{Field: "ollama.timeout_secs", Message: "must be between 1 and 3600"})
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level %q: must be debug, info, warn or error", c.Log.Level),
		})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format %q: must be text or json", c.Log.Format),
		})
	}

	// UI
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q: must be dark, light or auto", c.UI.Theme),
		})
	}
	if c.UI.RenderFPS < 1 || c.UI.RenderFPS > 120 {
		errs = append(errs, ValidationError{Field: "ui.render_fps", Message: "must be between 1 and 120"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults resolves the file locations left empty to paths under the
// config directory.
func (c *Config) SetDefaults() error {
	if c.Storage.HistoryDB != "" && c.Storage.ParamsDir != "" && c.Log.File != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Storage.HistoryDB == "" {
		c.Storage.HistoryDB = filepath.Join(dir, "history.db")
	}
	if c.Storage.ParamsDir == "" {
		c.Storage.ParamsDir = filepath.Join(dir, "model_configs")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, "thinkchat.log")
	}
	return nil
}

// Migrate normalizes values written by older versions or by hand.
func (c *Config) Migrate() error {
	c.Ollama.URL = strings.TrimRight(c.Ollama.URL, "/")

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.UI.Theme = strings.ToLower(c.UI.Theme)

	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - THINKCHAT_MODEL: overrides default_model
//   - THINKCHAT_OLLAMA_URL: overrides ollama.url (OLLAMA_HOST is used when unset)
//   - THINKCHAT_LOG_LEVEL: overrides log.level
//   - THINKCHAT_MIRROR: set to "1" or "true" to mirror messages to the console
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("THINKCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}

	if u := os.Getenv("THINKCHAT_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Ollama.URL = hostToURL(host)
	}

	if level := os.Getenv("THINKCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if mirror := os.Getenv("THINKCHAT_MIRROR"); mirror != "" {
		c.Chat.Mirror = parseBool(mirror)
	}
}

// hostToURL accepts OLLAMA_HOST in the forms Ollama itself does:
// "host", "host:port" or a full URL.
func hostToURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if !strings.Contains(host, ":") {
		host += ":11434"
	}
	return "http://" + host
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"default_model",
		"ollama.url",
		"ollama.timeout_secs",
		"ollama.keep_alive",
		"ollama.auto_start",
		"chat.system_message",
		"chat.mirror",
		"chat.show_reasoning",
		"chat.markdown",
		"chat.auto_save",
		"storage.history_db",
		"storage.params_dir",
		"log.level",
		"log.format",
		"log.file",
		"ui.theme",
		"ui.render_fps",
		"ui.show_stats",
	}
}

// Clone creates a copy of the configuration. Config holds no maps or
// slices, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as TOML.
func (c *Config) String() string {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return err.Error()
	}
	return sb.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
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
		if cfg == nil {
			cfg = Default()
			_ = cfg.SetDefaults()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
