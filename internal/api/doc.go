// Package api implements the HTTP REST API and WebSocket server for the
// catalogue service.
//
// This package provides:
//   - REST endpoints to load, query, facet and export the catalogue
//   - A WebSocket endpoint speaking request/response envelopes for the same
//     operations, plus catalog.loaded broadcasts after every reload
//   - Optional JWT authentication with role-based permissions
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers never touch the engine directly. Every operation goes through
// the catalogue worker, which serialises engine access on one goroutine;
// the HTTP and WebSocket layers only decode input, map errors and encode
// results.
//
// # Errors
//
// Catalogue errors map to statuses in one place (classifyError):
// engine.ErrNotLoaded is 409 not_loaded, engine.ErrLoadFailed is 502
// load_failed, malformed columns, filters or export trees are 400, and
// everything else is 500 with the detail logged rather than returned.
//
// # Security
//
// With security.require_auth set, every catalogue route and the WebSocket
// upgrade need an HS256 bearer token; health and metrics stay open.
package api
