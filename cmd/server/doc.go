// Package main is the entry point for the uihost document server.
//
// The server hosts UI guests (WebAssembly modules or scripts) that build a
// node tree through the fastn host ABI, and serves their layout to remote
// renderers:
//
//	Renderer ── REST / WebSocket ──► uihost ──► guest (wazero | goja)
//	                                   │
//	                                   └── value store + node tree
//
// The server provides:
//   - REST API for documents, layout, HTML, nodes and events
//   - WebSocket layout streaming
//   - Prometheus metrics
//   - Startup guests from a manifest or directory
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -guests ./guests
//	./server -manifest guests.yaml -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
