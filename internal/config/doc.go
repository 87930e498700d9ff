// Package config handles configuration loading for assistant-relay.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. A .env file in the working directory can supply variables.
// The package provides validation and defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/assistant-relay/relay.yaml
//  3. ~/.config/assistant-relay/relay.yaml
//
// Files ending in .toml are decoded as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	slack:
//	  bot_token: "${SLACK_BOT_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Assistant Backend
//
// Exactly one backend must be configured. Direct mode talks to the assistant
// service with an API key:
//
//	assistant:
//	  url: "https://api.us-south.assistant.example"
//	  api_key: "${ASSISTANT_API_KEY}"
//	  assistant_id: "..."
//
// Proxy mode sends every turn through an integration proxy:
//
//	proxy:
//	  url: "https://proxy.example/relay"
//	  integration_id: "${INTEGRATION_ID}"
//
// # Other Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  upstream_timeout: "30s"
//	sessions:
//	  timeout: "5m"
//	  max_turns: 0        # 0 keeps the whole history
//	cache:
//	  max_events: 1000
//	  event_ttl: ""       # empty keeps ids until evicted
//	  max_threads: 10000
//	  max_profiles: 10000
//	database:
//	  path: ""            # empty disables the transcript ledger
//	auth:
//	  jwt_secret: "${RELAY_JWT_SECRET}"  # enables the admin API
//	logging:
//	  level: "info"       # debug, info, warn, error
//	  format: "text"      # text, json
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//	telemetry:
//	  enabled: false
//	  service_name: "assistant-relay"
package config
