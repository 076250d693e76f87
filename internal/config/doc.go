// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for thinkchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - OllamaConfig: server URL, timeouts, auto-start
//   - ChatConfig: system message, console mirror, reasoning display
//   - ValidationError / ValidateErrors: every invalid field, reported together
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (THINKCHAT_*, OLLAMA_HOST)
//   - ~/.thinkchat/config.toml
//   - ~/.thinkchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil && cfg == nil {
//	    return err
//	}
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: cfg.Ollama.URL})
package config
