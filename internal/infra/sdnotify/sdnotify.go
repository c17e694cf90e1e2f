// Package sdnotify reports service state to systemd when running under a
// Type=notify unit. Outside systemd every call is a no-op.
package sdnotify

import (
	"context"
	"time"

	"polymarket-monitor/internal/infra/log"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

type Notifier struct {
	log      *log.Logger
	watchdog time.Duration
	notify   func(state string) (bool, error)
}

func New(logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	n := &Notifier{
		log: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
	if d, err := daemon.SdWatchdogEnabled(false); err == nil {
		n.watchdog = d
	}
	return n
}

// WatchdogInterval is WATCHDOG_USEC as a duration, zero when disabled.
func (n *Notifier) WatchdogInterval() time.Duration { return n.watchdog }

func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Heartbeat pings the watchdog.
func (n *Notifier) Heartbeat() {
	if n.watchdog > 0 {
		n.send(daemon.SdNotifyWatchdog)
	}
}

// KeepAlive pings the watchdog at half its interval until ctx is done, so long
// sleeps between cycles never outlast WatchdogSec. It returns at once when the
// watchdog is disabled.
func (n *Notifier) KeepAlive(ctx context.Context) {
	if n.watchdog <= 0 {
		return
	}
	ticker := time.NewTicker(n.watchdog / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Heartbeat()
		}
	}
}

func (n *Notifier) Status(msg string) { n.send("STATUS=" + msg) }

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.log.Debug("systemd notify failed", zap.String("state", state), zap.Error(err))
		return
	}
	if sent {
		n.log.Debug("systemd notified", zap.String("state", state))
	}
}
