// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management
// for routerchat.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ROUTERCHAT_*)
//   - ~/.routerchat/config.toml
//   - Built-in defaults
//
// The same Config drives both executables: the relay server reads the
// [relay] section, the chat client reads [client], [storage], and [ui].
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	port := cfg.Relay.Port
//	relayURL := cfg.Client.RelayURL
//
// Config files are created with 0600 permissions because they may hold
// the OpenRouter API key.
package config
