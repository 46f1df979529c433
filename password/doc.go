// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.Stale] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login. [Argon2.VerifyAbsent]
// burns the cost of one verification for logins naming an unknown user.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other package of this module.
//   - Log plaintext passwords.
package password
