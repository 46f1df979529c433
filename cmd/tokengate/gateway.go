package main

import (
	"context"

	"github.com/MrEthical07/tokengate/gateway"
	"github.com/spf13/cobra"
)

func newGatewayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the edge gateway",
		Long: `Run the edge gateway. It forwards requests to the configured routes,
refreshes expired access tokens against the auth server and replays the
request once. Health and metrics are served on the admin address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGateway(cmd.Context(), a)
		},
	}
}

func runGateway(ctx context.Context, a *app) error {
	cfg, err := a.cfg.GatewayConfig()
	if err != nil {
		return err
	}

	shutdownTracing := setupTracing(a.cfg.Trace, "gateway")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	gw, err := gateway.New(cfg, gateway.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.logger.Info("gateway starting",
		"listen", cfg.ListenAddr,
		"admin", cfg.AdminAddr,
		"refresh_url", cfg.RefreshURL,
		"routes", len(cfg.Routes),
	)
	return gw.Run(ctx, a.cfg.Gateway.Shutdown)
}
