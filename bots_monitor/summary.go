package bots_monitor

import (
	"context"
	"fmt"

	"polymarket-monitor/internal/features/markets"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SendSummary sends the numbered list of every currently relevant market.
// It does not read or write the seen set.
func (m *MarketMonitor) SendSummary(ctx context.Context) error {
	m.log.Info("Fetching all markets...")
	listings, err := m.source.FetchAll(ctx, m.settings.PageSize, m.settings.MaxPages)
	if err != nil {
		m.log.Error("Summary fetch failed", zap.Error(err))
		return err
	}

	keywords := m.Keywords()
	var entries []markets.SummaryEntry
	for _, l := range listings {
		if markets.IsRelevant(l.Title, keywords) {
			entries = append(entries, markets.SummaryEntry{
				Title: l.Title,
				URL:   markets.EventURL(m.settings.EventURL, l.Slug),
			})
		}
	}

	if len(entries) == 0 {
		if !m.notifier.Send(ctx, markets.NoRelevantMessage) {
			return fmt.Errorf("%w: empty summary", ErrDelivery)
		}
		m.log.Success(markets.NoRelevantMessage)
		return nil
	}

	chunks := markets.ChunkMessage(markets.SummaryLines(entries), m.settings.ChunkLimit)
	m.log.Info("Sending summary of relevant markets",
		zap.Int("markets", len(entries)),
		zap.Int("messages", len(chunks)))

	limit := rate.Inf
	if m.settings.ChunkInterval > 0 {
		limit = rate.Every(m.settings.ChunkInterval)
	}
	pacer := rate.NewLimiter(limit, 1)

	failed := 0
	for i, chunk := range chunks {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if !m.notifier.Send(ctx, chunk) {
			failed++
			m.log.Warn("Summary chunk not delivered", zap.Int("chunk", i+1), zap.Int("of", len(chunks)))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d summary messages", ErrDelivery, failed, len(chunks))
	}

	m.log.Success("Summary sent", zap.Int("markets", len(entries)), zap.Int("messages", len(chunks)))
	return nil
}
