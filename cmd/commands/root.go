package commands

// Root command for Cobra CLI
// Exactly one run mode flag is accepted: --send-summary, --monitor or --check-once

import (
	"github.com/spf13/cobra"
)

const (
	flagSummary   = "send-summary"
	flagMonitor   = "monitor"
	flagCheckOnce = "check-once"
)

type rootOptions struct {
	configPath string
	summary    bool
	monitor    bool
	checkOnce  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "polymarket-monitor",
		Short: "Polymarket Monitor - keyword alerts for new Polymarket markets",
		Long: `Polymarket Monitor polls the Polymarket listing API, keeps the markets whose
title matches a configured keyword and sends one alert per new market to a
Signal group (or a Telegram chat).`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.summary, flagSummary, false, "Send a summary of all relevant markets and exit")
	flags.BoolVar(&opts.monitor, flagMonitor, false, "Monitor continuously for new markets")
	flags.BoolVar(&opts.checkOnce, flagCheckOnce, false, "Check once for new markets and exit")
	flags.StringVar(&opts.configPath, "config", "config.yaml", "Path to the YAML config file")
	flags.Int("interval", 0, "Check interval in seconds (overrides check_interval)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")

	cmd.MarkFlagsMutuallyExclusive(flagSummary, flagMonitor, flagCheckOnce)
	cmd.MarkFlagsOneRequired(flagSummary, flagMonitor, flagCheckOnce)

	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}
