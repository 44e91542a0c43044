// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, principal, token id, IP, metadata.
//
// This package owns event buffering and sink delivery. It does not decide
// which events to emit; that belongs to the Engine. It must not import the
// root package or any sibling internal package.
package audit
