// Package api serves the HTTP bridge that lets external UIs start exports,
// follow their progress and browse export history.
//
// # Routes
//
//	GET    /health               liveness plus media tool availability
//	GET    /metrics              Prometheus exposition
//	GET    /exports              recent runs from history
//	POST   /exports              start an export (409 while one is running)
//	GET    /exports/{id}         live state, falling back to history
//	DELETE /exports/{id}         cancel the running export
//	GET    /exports/{id}/events  websocket stream of progress events
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Frame events on the websocket
// are rate limited per connection; the terminal event is never dropped.
package api
