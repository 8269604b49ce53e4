// Package config provides 12-factor configuration management for uihost.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins, shutdown)
//   - Sandbox: guest call timeout, memory cap, JavaScript pool size, console
//   - Layout: default viewport
//   - Guests: startup guest directory, glob pattern, manifest, fetch policy
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS, SHUTDOWN_TIMEOUT
//   - GUEST_CALL_TIMEOUT, GUEST_MAX_MEMORY_PAGES, GUEST_JS_POOL, GUEST_CONSOLE
//   - VIEWPORT_WIDTH, VIEWPORT_HEIGHT
//   - GUESTS_DIR, GUESTS_PATTERN, GUESTS_MANIFEST, GUESTS_FETCH_TIMEOUT, GUESTS_FETCH_RETRIES
//   - LOG_LEVEL, LOG_DEV, LOG_TRACING
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
