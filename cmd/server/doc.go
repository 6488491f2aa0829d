// Package main is the entry point for the AppForge server.
//
// The server turns blueprint revisions into published single-page apps:
//
//	Client (REST / WebSocket) → Merge engine → Renderer → Publisher
//	                          → Generator service (optional, HTTP)
//
// The server provides:
//   - POST /revise for synchronous revisions
//   - GET /stream for live build progress over WebSocket
//   - Session inspection under /sessions
//   - Published bundles and zip archives under /apps
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -workspace ./generated_apps
//	./server -generator http://localhost:9000
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown draining in-flight builds
package main
