// Package api implements the HTTP REST API and WebSocket server for nestunify.
//
// This package provides:
//   - REST endpoints for pair CRUD, discovery, climate state, and commands
//   - WebSocket hub for real-time composite state broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces (web dashboard, mobile apps)
// and the climate aggregation core. Commands flow from the API through the
// per-pair dispatcher to the entity bus, and composite state changes flow
// back via aggregator subscriptions which are broadcast to WebSocket clients.
//
// # Security
//
// Authentication uses HS256 JWT tokens signed with the configured secret.
// WebSocket connections use single-use tickets to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without a pair runtime or entity observer (read-only
// mode): pair listing, state reads, and WebSocket connections work, only
// pair creation and discovery fail. This enables testing and partial operation.
package api
