// Package config handles configuration loading for lantern-server.
//
// # Overview
//
// Configuration is loaded from a YAML file with ${VAR} environment variable
// expansion, defaults for storage paths, and validation.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://lantern.example.org"  # optional, derived if empty
//
// Storage:
//
//	storage:
//	  snapshot_path: "/var/lib/lantern/sessions.json"
//	  upload_dir: "/var/lib/lantern/uploads"
//
// Notifications (backend may be empty to disable):
//
//	notify:
//	  backend: "telegram"  # "", telegram, or matrix
//	  telegram:
//	    bot_token: "${TELEGRAM_BOT_TOKEN}"
//	  matrix:
//	    homeserver: "https://matrix.org"
//	    user_id: "@lantern:matrix.org"
//	    access_token: "${MATRIX_ACCESS_TOKEN}"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "lantern"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Base URL Resolution
//
// ResolveBaseURL picks the externally reachable URL used in session links:
// explicit base_url, then the LANTERN_BASE_URL environment variable, then a
// URL derived from the tailscale hostname or the HTTP bind address.
package config
