package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hybridopt/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "optimizer",
		Short: "Hybrid PSO/GA parameter optimizer",
		Long: `optimizer periodically searches the tunable parameters of a live trading
strategy with particle swarm and genetic algorithms, backtesting each candidate
against recent bars, and applies the winners to the live settings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Override log format (json, console)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.App.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.App.LogFormat = o.logFormat
	}

	o.cfg = cfg
	o.log = config.ConfigureLogger(config.LoggerConfig{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	}).With().Str("service", cfg.App.Name).Logger()
	return nil
}
