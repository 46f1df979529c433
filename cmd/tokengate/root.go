package main

import (
	"fmt"
	"log/slog"

	"github.com/MrEthical07/tokengate/internal/appconfig"
	"github.com/MrEthical07/tokengate/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	v      *viper.Viper
	cfg    appconfig.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	appconfig.Bind(a.v)

	root := &cobra.Command{
		Use:           "tokengate",
		Short:         "Token-lifecycle gateway and auth server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "path to a YAML configuration file")
	flags.String("log-format", "json", "log format: json or text")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	for key, name := range map[string]string{"log.format": "log-format", "log.level": "log-level"} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", name, err))
		}
	}

	root.AddCommand(newGatewayCmd(a))
	root.AddCommand(newAuthServerCmd(a))
	root.AddCommand(newUserCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := appconfig.Decode(a.v, path)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
