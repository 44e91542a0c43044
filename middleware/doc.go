// Package middleware provides the HTTP request pipeline in front of
// authcore.Engine.
//
// # Stages
//
//   - [Chain] composes stages in the order given; the first wraps the rest.
//   - [RequestContext] attaches the client IP and request id used by audit
//     events and throttling.
//   - [Recover] turns handler panics into 500 responses.
//   - [AccessLog] writes one structured line per request.
//   - [Guard] validates the bearer access token and stores the claims.
//   - [RequireScope] rejects requests whose claims lack a role.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token decisions
// are delegated to Engine.Validate; the package never parses JWTs or talks
// to a store.
package middleware
