// Package userstore is a SQLite user directory implementing
// tokengate.UserProvider.
//
// It stores only what login needs: id, username, display name, an
// Argon2id hash and roles. Hashing is the caller's job; use
// Engine.HashPassword or password.Argon2.Hash before Create.
//
//	Docs: docs/userstore.md
package userstore
