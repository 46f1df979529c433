package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/tokengate/userstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAddCreatesUser(t *testing.T) {
	db := "file:" + filepath.Join(t.TempDir(), "users.db")
	t.Setenv("TOKENGATE_AUTH_USER_DB", db)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error", "user", "add",
		"--username", "alice", "--display-name", "Alice",
		"--password", "correct-password-123", "--roles", "USER,ADMIN"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	users, err := userstore.Open(context.Background(), db)
	require.NoError(t, err)
	defer users.Close()

	rec, err := users.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.DisplayName)
	assert.Equal(t, []string{"USER", "ADMIN"}, rec.Roles)
	assert.Contains(t, rec.PasswordHash, "$argon2id$")
}

func TestUserAddRequiresPassword(t *testing.T) {
	t.Setenv("TOKENGATE_AUTH_USER_DB", "file:"+filepath.Join(t.TempDir(), "users.db"))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "error", "user", "add", "--username", "bob"})
	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "password required")
}

func TestGatewayRejectsMissingRoutes(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "error", "gateway"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestAuthServerRejectsMissingSigningKey(t *testing.T) {
	t.Setenv("TOKENGATE_AUTH_SIGNING_KEY", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "error", "authserver"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
