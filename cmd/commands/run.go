package commands

// Mode runners: builds the logger, stores, clients and monitor from config
// and runs the selected mode until it finishes or an interrupt arrives.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polymarket-monitor/bots_monitor"
	"polymarket-monitor/internal/clients_api/polymarket"
	signalcli "polymarket-monitor/internal/clients_api/signal"
	"polymarket-monitor/internal/clients_api/telegram"
	"polymarket-monitor/internal/infra/config"
	logging "polymarket-monitor/internal/infra/log"
	"polymarket-monitor/internal/infra/retry"
	"polymarket-monitor/internal/infra/sdnotify"
	"polymarket-monitor/internal/infra/seen"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func run(cmd *cobra.Command, opts *rootOptions) error {
	loader, err := config.NewLoader(opts.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(cfg.Keywords) == 0 {
		logger.Warn("No keywords configured, no market will match")
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize notifier", zap.Error(err))
		return err
	}
	client := polymarket.NewClient(polymarket.Options{
		BaseURL:         cfg.Polymarket.BaseURL,
		RatePerSec:      cfg.Polymarket.RatePerSec,
		MaxRetries:      cfg.Polymarket.MaxRetries,
		MaxResponseSize: cfg.Polymarket.MaxResponseSize,
		FetchTimeout:    time.Duration(cfg.Polymarket.FetchTimeout) * time.Second,
		MaxPages:        cfg.Polymarket.MaxPages,
	}, logger)

	switch {
	case opts.summary:
		mon := bots_monitor.NewMarketMonitor(client, nil, notifier, cfg.Keywords, monitorSettings(cfg), logger)
		return oneShot(ctx, logger, mon.SendSummary(ctx))

	case opts.checkOnce:
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		mon := bots_monitor.NewMarketMonitor(client, store, notifier, cfg.Keywords, monitorSettings(cfg), logger)
		_, err = mon.CheckOnce(ctx)
		return oneShot(ctx, logger, err)

	default:
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		return runContinuous(ctx, cfg, loader, client, store, notifier, logger)
	}
}

// oneShot maps a one-shot mode result to the process outcome. An interrupt is a clean exit.
func oneShot(ctx context.Context, logger *logging.Logger, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		logger.Info("Interrupted")
		return nil
	}
	return err
}

func runContinuous(ctx context.Context, cfg *config.Config, loader *config.Loader, client *polymarket.Client, store seen.Store, notifier bots_monitor.Notifier, logger *logging.Logger) error {
	sd := sdnotify.New(logger)
	mon := bots_monitor.NewMarketMonitor(client, store, notifier, cfg.Keywords, monitorSettings(cfg), logger,
		bots_monitor.WithProgress(os.Stdout),
		bots_monitor.WithHeartbeat(sd.Heartbeat))

	loader.Watch(func(next *config.Config) {
		mon.SetKeywords(next.Keywords)
		mon.SetInterval(next.Interval())
		logger.Info("Config reloaded",
			zap.Strings("keywords", mon.Keywords()),
			zap.Duration("interval", mon.Interval()))
	}, func(err error) {
		logger.Warn("Ignoring invalid config change", zap.Error(err))
	})

	if cfg.SummarySchedule != "" {
		sched, err := bots_monitor.StartSummarySchedule(ctx, cfg.SummarySchedule, mon)
		if err != nil {
			logger.Error("Failed to start summary schedule", zap.Error(err))
			return err
		}
		defer func() {
			select {
			case <-sched.Stop().Done():
			case <-time.After(shutdownTimeout):
				logger.Warn("Timeout waiting for scheduled summary to finish")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.Run(ctx)
	}()

	go sd.KeepAlive(ctx)
	sd.Ready()
	sd.Status("monitoring")

	<-ctx.Done()
	logger.Info("Shutdown signal received, gracefully stopping monitor...")
	sd.Stopping()

	select {
	case <-done:
		logger.Success("Monitor stopped gracefully")
	case <-time.After(shutdownTimeout):
		logger.Warn("Timeout waiting for monitor to stop, forcing shutdown")
	}
	return nil
}

func newNotifier(cfg *config.Config, logger *logging.Logger) (bots_monitor.Notifier, error) {
	switch cfg.Notifier.Driver {
	case "telegram":
		return telegram.NewSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	default:
		return signalcli.NewSender(cfg.Signal.DaemonURL, cfg.Signal.Number, cfg.Signal.GroupID, logger), nil
	}
}

func openStore(cfg *config.Config, logger *logging.Logger) (seen.Store, error) {
	store, err := seen.Open(seen.Config{Driver: cfg.HistoryDriver, Path: cfg.HistoryFile}, logger)
	if err != nil {
		logger.Error("Failed to open seen markets history", zap.Error(err))
		return nil, err
	}
	return store, nil
}

func monitorSettings(cfg *config.Config) bots_monitor.Settings {
	s := bots_monitor.DefaultSettings()
	s.Interval = cfg.Interval()
	s.PageSize = cfg.Polymarket.PageSize
	s.MaxPages = cfg.Polymarket.MaxPages
	if cfg.Polymarket.EventURL != "" {
		s.EventURL = cfg.Polymarket.EventURL
	}
	if cfg.Notifier.ChunkLimit > 0 {
		s.ChunkLimit = cfg.Notifier.ChunkLimit
	}
	s.ChunkInterval = time.Duration(cfg.Notifier.ChunkIntervalMs) * time.Millisecond

	base, max := cfg.Backoff.Durations()
	s.Backoff = retry.Backoff{
		Base:   base,
		Factor: cfg.Backoff.Factor,
		Jitter: cfg.Backoff.Jitter,
		Max:    max,
	}
	return s
}
