// Package config handles configuration loading for the kbchat clients.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML, chosen by file extension)
// with environment variable expansion. The package provides validation and
// sensible defaults, so a missing file is not an error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from KBCHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/kbchat/config.yaml
//  3. ~/.config/kbchat/config.yaml
//
// KBCHAT_API_URL overrides api.base_url after the file is read.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	api:
//	  base_url: "${KBCHAT_BACKEND}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  revalidate_interval: "30m"
//	  cookie_max_age: "30m"
//	documents:
//	  poll_interval: "1s"
//
// # Configuration Sections
//
//	api:
//	  base_url: "http://localhost:8000"
//	  timeout: "30s"
//
//	store:
//	  path: "~/.local/share/kbchat/session.db"  # empty keeps the session in memory
//
//	chat:
//	  mode: "stream"   # stream (websocket) or http (request/response)
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//	  file: ""         # optional rotating log file
//
//	telemetry:
//	  enabled: false   # stdout OpenTelemetry exporters
package config
