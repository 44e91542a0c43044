// Package password implements secret hashing and verification with argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stores migrated from bcrypt keep working: [Hasher.Verify] accepts $2a$, $2b$
// and $2y$ hashes, and [Hasher.NeedsRehash] flags them so the caller can
// replace them after the next successful login.
//
// # Errors
//
// Verification distinguishes a wrong secret, reported as (false, nil), from a
// corrupted stored hash, reported as an error wrapping [ErrMalformedHash].
//
// # What this package must NOT do
//
//   - Store or retrieve secrets.
//   - Import any other authcore package.
//   - Log plaintext secrets or hash parameters.
package password
