package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/password"
	"github.com/MrEthical07/tokengate/userstore"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUserAddCmd(a))
	return cmd
}

type userAddOptions struct {
	username    string
	displayName string
	password    string
	roles       []string
}

func newUserAddCmd(a *app) *cobra.Command {
	var opts userAddOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user with an Argon2id password hash",
		Long: `Add a user to the SQLite directory at auth.user_db. The password is
read from --password or, when omitted, from TOKENGATE_USER_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.password == "" {
				opts.password = a.v.GetString("user.password")
			}
			return runUserAdd(cmd.Context(), a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.username, "username", "", "login name (required)")
	f.StringVar(&opts.displayName, "display-name", "", "display name")
	f.StringVar(&opts.password, "password", "", "plaintext password")
	f.StringSliceVar(&opts.roles, "roles", nil, "comma separated roles; defaults to the engine default role")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runUserAdd(ctx context.Context, a *app, opts userAddOptions) error {
	if opts.password == "" {
		return errors.New("password required: pass --password or set TOKENGATE_USER_PASSWORD")
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(opts.password)
	if err != nil {
		return err
	}

	users, err := userstore.Open(ctx, a.cfg.Auth.UserDB)
	if err != nil {
		return err
	}
	defer users.Close()

	roles := make([]string, 0, len(opts.roles))
	for _, r := range opts.roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	rec, err := users.Create(ctx, tokengate.UserRecord{
		Username:     opts.username,
		DisplayName:  opts.displayName,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", opts.username, err)
	}

	a.logger.Info("user added", "user_id", rec.UserID, "username", rec.Username, "roles", rec.Roles)
	return nil
}
