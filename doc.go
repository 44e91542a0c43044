// Package authcore issues, validates and rotates signed access and refresh
// tokens for principals held in a credential store.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, rate limiting, audit dispatch and
// metrics live under internal/ and are never exported. Storage backends plug
// in through the interfaces in package store; token encoding lives in
// package jwt; secret hashing in package password.
//
// # Store calls
//
// Reads run under the caller's context bounded by Config.Store.ReadTimeout.
// Mutations (refresh consumption, revocation, principal creation) are
// detached from caller cancellation and bounded by
// Config.Store.MutationTimeout, so an abandoned request never leaves partial
// state. Timeouts and backend failures surface as [ErrUnavailable].
//
// # Performance contract
//
// Validate is the hot path. It performs at most one store round-trip, and
// only after the signature and expiry checks pass.
package authcore
