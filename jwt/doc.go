// Package jwt encodes, decodes and issues the service's signed tokens.
//
// Every token carries the fixed [Claims] schema (sub, iss, aud, iat, exp, jti,
// scope, typ). The signing algorithm is pinned per deployment by the active
// [KeySet]; a token header can select a key id but never an algorithm.
//
// Keys are published through a [KeySource]. Rotation replaces the whole set
// atomically; a set is never mutated after construction.
package jwt
