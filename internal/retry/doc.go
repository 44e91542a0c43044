// Package retry wraps cenkalti/backoff with an explicit transient-error
// predicate. Callers pass only operations that are safe to repeat; refresh
// token consumption never goes through here.
package retry
