package bots_monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSummarySchedule sends the summary on a standard 5-field cron expression
// (descriptors such as "@daily" are accepted). Runs never overlap.
// The returned cron is already started; Stop it on shutdown.
func StartSummarySchedule(ctx context.Context, spec string, m *MarketMonitor) (*cron.Cron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty summary schedule")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if err := m.SendSummary(ctx); err != nil {
			m.log.Warn("Scheduled summary failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid summary schedule %q: %w", spec, err)
	}

	c.Start()
	m.log.Info("Summary schedule started", zap.String("schedule", spec))
	return c, nil
}
