package main

import (
	"context"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/authserver"
	"github.com/MrEthical07/tokengate/internal/redisconn"
	"github.com/MrEthical07/tokengate/userstore"
	"github.com/spf13/cobra"
)

func newAuthServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authserver",
		Short: "Run the authentication service",
		Long: `Run the authentication service: login, refresh, logout and the
current-user endpoint. Sessions live in Redis, users in SQLite.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthServer(cmd.Context(), a)
		},
	}
}

func runAuthServer(ctx context.Context, a *app) error {
	engineCfg, err := a.cfg.EngineConfig()
	if err != nil {
		return err
	}

	shutdownTracing := setupTracing(a.cfg.Trace, "authserver")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	rdb, err := redisconn.Connect(ctx, a.cfg.RedisOptions(), a.logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	users, err := userstore.Open(ctx, a.cfg.Auth.UserDB)
	if err != nil {
		return err
	}
	defer users.Close()

	builder := tokengate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithLogger(a.logger)
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(tokengate.NewSlogSink(a.logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := authserver.New(engine, authserver.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return srv.Run(ctx, a.cfg.Auth.Listen, a.cfg.Auth.Shutdown)
}
