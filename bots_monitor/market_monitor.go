package bots_monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"polymarket-monitor/internal/clients_api/polymarket"
	"polymarket-monitor/internal/features/markets"
	"polymarket-monitor/internal/infra/log"
	"polymarket-monitor/internal/infra/retry"

	"go.uber.org/zap"
)

// ListingSource fetches the current active listings (see polymarket.Client.FetchAll).
type ListingSource interface {
	FetchAll(ctx context.Context, pageSize, maxPages int) ([]polymarket.Listing, error)
}

// Notifier delivers one text message; false means it was not delivered.
type Notifier interface {
	Send(ctx context.Context, message string) bool
}

// SeenSet is the durable set of slugs already alerted on.
type SeenSet interface {
	Contains(slug string) bool
	Add(slug string) error
	Size() int
}

var ErrDelivery = errors.New("notification not delivered")

type Settings struct {
	Interval       time.Duration
	IntervalJitter float64
	PageSize       int
	MaxPages       int
	Backoff        retry.Backoff
	EventURL       string
	ChunkLimit     int
	ChunkInterval  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Interval:       60 * time.Second,
		IntervalJitter: 0.1,
		PageSize:       polymarket.DefaultPageSize,
		MaxPages:       polymarket.DefaultMaxPages,
		Backoff:        retry.DefaultBackoff(),
		EventURL:       markets.DefaultEventURL,
		ChunkLimit:     markets.SignalCharLimit,
		ChunkInterval:  time.Second,
	}
}

// Report summarizes one processing pass.
type Report struct {
	Listings int
	Relevant int
	New      int
	Notified int
	Failed   int
}

// CycleResult is the outcome of one loop iteration and the delay before the next one.
type CycleResult struct {
	Report
	Err   error
	Delay time.Duration
}

// MarketMonitor runs fetch -> filter -> dedup -> notify cycles.
// The loop itself is single-goroutine; keywords and interval may be swapped concurrently.
type MarketMonitor struct {
	source   ListingSource
	seen     SeenSet
	notifier Notifier
	log      *log.Logger
	settings Settings

	keywords atomic.Pointer[[]string]
	interval atomic.Int64

	attempt   int
	progress  io.Writer
	sleep     func(ctx context.Context, d time.Duration) error
	heartbeat func()
}

type Option func(*MarketMonitor)

// WithProgress sets where idle-cycle "." markers are written.
func WithProgress(w io.Writer) Option { return func(m *MarketMonitor) { m.progress = w } }

// WithSleep replaces the inter-cycle sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *MarketMonitor) { m.sleep = fn }
}

// WithHeartbeat registers a callback invoked after every cycle.
func WithHeartbeat(fn func()) Option { return func(m *MarketMonitor) { m.heartbeat = fn } }

func NewMarketMonitor(source ListingSource, seen SeenSet, notifier Notifier, keywords []string, settings Settings, logger *log.Logger, opts ...Option) *MarketMonitor {
	if logger == nil {
		logger = log.Nop()
	}
	def := DefaultSettings()
	if settings.PageSize <= 0 {
		settings.PageSize = def.PageSize
	}
	if settings.MaxPages <= 0 {
		settings.MaxPages = def.MaxPages
	}
	if settings.ChunkLimit <= 0 {
		settings.ChunkLimit = def.ChunkLimit
	}
	if settings.Interval <= 0 {
		settings.Interval = def.Interval
	}

	m := &MarketMonitor{
		source:   source,
		seen:     seen,
		notifier: notifier,
		log:      logger,
		settings: settings,
		progress: io.Discard,
		sleep:    retry.Sleep,
	}
	m.SetKeywords(keywords)
	m.interval.Store(int64(settings.Interval))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MarketMonitor) SetKeywords(keywords []string) {
	kw := markets.NormalizeKeywords(keywords)
	m.keywords.Store(&kw)
}

func (m *MarketMonitor) Keywords() []string {
	return *m.keywords.Load()
}

func (m *MarketMonitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval.Store(int64(d))
	}
}

func (m *MarketMonitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// Attempt is the number of consecutive failed cycles.
func (m *MarketMonitor) Attempt() int { return m.attempt }

// Run loops until ctx is cancelled. It never returns a cycle error.
func (m *MarketMonitor) Run(ctx context.Context) error {
	m.log.Success("Starting continuous monitoring",
		zap.Duration("interval", m.Interval()),
		zap.Strings("keywords", m.Keywords()),
		zap.Int("seen", m.seen.Size()))

	for {
		if ctx.Err() != nil {
			return nil
		}

		res := m.RunCycle(ctx)
		if m.heartbeat != nil {
			m.heartbeat()
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := m.sleep(ctx, res.Delay); err != nil {
			return nil
		}
	}
}

// RunCycle performs one iteration and updates the backoff state.
func (m *MarketMonitor) RunCycle(ctx context.Context) CycleResult {
	report, err := m.safeProcess(ctx)
	res := CycleResult{Report: report, Err: err}

	if err != nil {
		res.Delay = m.settings.Backoff.Delay(m.attempt)
		m.attempt++
		if ctx.Err() == nil {
			m.log.Error("Error in monitor loop",
				zap.Error(err),
				zap.Int("attempt", m.attempt),
				zap.Duration("retryIn", res.Delay))
		}
		return res
	}

	m.attempt = 0
	res.Delay = retry.Jitter(m.Interval(), m.settings.IntervalJitter)

	if report.Notified == 0 {
		fmt.Fprint(m.progress, ".")
		m.log.Debug("No new relevant markets",
			zap.Int("listings", report.Listings),
			zap.Int("relevant", report.Relevant),
			zap.Int("undelivered", report.Failed))
	}
	return res
}

// CheckOnce runs a single processing pass, as one loop iteration would, without sleeping.
func (m *MarketMonitor) CheckOnce(ctx context.Context) (Report, error) {
	m.log.Info("Checking once for new markets...")
	report, err := m.safeProcess(ctx)
	if err != nil {
		m.log.Error("Check failed", zap.Error(err))
		return report, err
	}

	switch {
	case report.Notified > 0:
		m.log.Success("New markets found and alerts sent!", zap.Int("count", report.Notified))
	case report.Failed > 0:
		m.log.Error("New markets found but alerts were not delivered", zap.Int("count", report.Failed))
		return report, fmt.Errorf("%w: %d alerts", ErrDelivery, report.Failed)
	default:
		m.log.Success("No new related markets found.")
	}
	return report, nil
}

func (m *MarketMonitor) safeProcess(ctx context.Context) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in monitor cycle: %v", r)
		}
	}()
	return m.process(ctx)
}

// process notifies every relevant unseen listing and records it once the
// notification went out. An undelivered alert leaves the slug unseen.
func (m *MarketMonitor) process(ctx context.Context) (Report, error) {
	var report Report

	listings, err := m.source.FetchAll(ctx, m.settings.PageSize, m.settings.MaxPages)
	if err != nil {
		return report, err
	}
	report.Listings = len(listings)

	keywords := m.Keywords()
	for _, l := range listings {
		if !markets.IsRelevant(l.Title, keywords) {
			continue
		}
		report.Relevant++
		if m.seen.Contains(l.Slug) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.New++

		url := markets.EventURL(m.settings.EventURL, l.Slug)
		if !m.notifier.Send(ctx, markets.FormatAlert(l.Title, url)) {
			report.Failed++
			m.log.Warn("Alert not delivered, will retry next cycle", zap.String("slug", l.Slug))
			continue
		}
		if err := m.seen.Add(l.Slug); err != nil {
			return report, fmt.Errorf("record %s: %w", l.Slug, err)
		}
		report.Notified++
		m.log.Success("New market found", zap.String("title", l.Title), zap.String("slug", l.Slug))
	}

	return report, nil
}
