// Package rate provides Redis-backed fixed-window counters for login and
// refresh throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// (after the configured Prefix):
//   - al:  login failures per identifier
//   - ali: login failures per client IP
//   - ar:  refreshes per principal
package rate
