package userstore

import (
	"context"
	"testing"

	"github.com/MrEthical07/tokengate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, tokengate.UserRecord{
		Username:     " alice ",
		DisplayName:  "Alice",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		Roles:        []string{"USER", "ADMIN"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UserID)
	assert.Equal(t, "alice", created.Username)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, got.UserID)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, []string{"USER", "ADMIN"}, got.Roles)
	assert.Equal(t, created.PasswordHash, got.PasswordHash)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetUnknownUser(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, tokengate.ErrUserNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, tokengate.UserRecord{UserID: "u-1", Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.Create(ctx, tokengate.UserRecord{Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, tokengate.ErrUserExists)

	_, err = s.Create(ctx, tokengate.UserRecord{UserID: "u-1", Username: "bob", PasswordHash: "h"})
	assert.ErrorIs(t, err, tokengate.ErrUserExists)
}

func TestCreateValidates(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Create(context.Background(), tokengate.UserRecord{Username: "  ", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrInvalidUser)
	_, err = s.Create(context.Background(), tokengate.UserRecord{Username: "alice"})
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestEmptyRolesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, tokengate.UserRecord{Username: "bob", PasswordHash: "h"})
	require.NoError(t, err)

	got, err := s.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, got.Roles)
}

// Store must satisfy the engine's directory interface.
var _ tokengate.UserProvider = (*Store)(nil)
