// Package store defines the credential store contract: principals, refresh
// records and revocation markers. Adapters live in the memory, postgres and
// redis subpackages; Compose mixes them.
package store
