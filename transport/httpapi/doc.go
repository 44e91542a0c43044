// Package httpapi exposes authcore.Engine over HTTP/JSON.
//
// Routes are registered on a gorilla/mux router. Every error is rendered as
// {"code", "message", "retryable"} with a status derived from the engine's
// sentinel errors; see [WriteError]. Read-only routes retry transient
// backend failures through internal/retry. Login, refresh, register and
// logout are never retried by the server.
package httpapi
