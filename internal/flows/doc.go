// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRefresh, RunRegister,
// RunLogout) accepts a typed dependency struct and returns a result carrying a
// failure kind instead of a public error. The root package maps kinds to
// sentinel errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, token codec,
// issuer, secret hasher and rate limiter. They do not own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package.
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
