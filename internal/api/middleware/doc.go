// Package middleware provides the HTTP middleware stack for the document
// host.
//
//   - CORS: cross-origin access for browser renderers
//   - RateLimit: per-client token buckets, idle clients evicted
//   - GlobalRateLimit: one bucket for the whole process
//   - RequestID: tags each request and response with a req_* ULID
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
