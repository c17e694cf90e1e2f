//go:build integration

package tests

import (
	"context"
	"os"
	"testing"
	"time"

	polymarket "polymarket-monitor/internal/clients_api/polymarket"
	signalcli "polymarket-monitor/internal/clients_api/signal"
	"polymarket-monitor/internal/features/markets"
)

func TestIntegration_Polymarket_FetchAll(t *testing.T) {
	client := polymarket.NewClient(polymarket.Options{MaxRetries: 2}, nil)

	listings, err := client.FetchAll(context.Background(), polymarket.DefaultPageSize, 1)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(listings) == 0 {
		t.Fatalf("expected active listings, got none")
	}
	for _, l := range listings {
		if l.Slug == "" {
			t.Fatalf("listing without slug: %+v", l)
		}
	}
	t.Logf("fetched %d listings, first: %q", len(listings), listings[0].Title)
}

func TestIntegration_Polymarket_PagesAreDistinct(t *testing.T) {
	client := polymarket.NewClient(polymarket.Options{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := client.FetchPage(ctx, 50, 0)
	if err != nil {
		t.Fatalf("FetchPage(0) failed: %v", err)
	}
	second, err := client.FetchPage(ctx, 50, 50)
	if err != nil {
		t.Fatalf("FetchPage(50) failed: %v", err)
	}
	if len(first) == 0 || len(second) == 0 {
		t.Skipf("not enough active events: %d/%d", len(first), len(second))
	}

	seen := make(map[string]bool)
	for _, l := range polymarket.ExtractListings(first) {
		seen[l.Slug] = true
	}
	dup := 0
	for _, l := range polymarket.ExtractListings(second) {
		if seen[l.Slug] {
			dup++
		}
	}
	// Listings shift while paging; a few overlaps are expected, a full overlap is not.
	if dup == len(second) {
		t.Fatalf("second page repeats the first page")
	}
}

// Requires a running signal-cli daemon: SIGNAL_DAEMON_URL, SIGNAL_NUMBER, SIGNAL_GROUP_ID.
func TestIntegration_Signal_Send(t *testing.T) {
	daemonURL := os.Getenv("SIGNAL_DAEMON_URL")
	number := os.Getenv("SIGNAL_NUMBER")
	group := os.Getenv("SIGNAL_GROUP_ID")
	if daemonURL == "" || number == "" || group == "" {
		t.Skip("signal daemon not configured")
	}

	sender := signalcli.NewSender(daemonURL, number, group, nil)
	msg := markets.FormatAlert("Integration test market", markets.EventURL("", "integration-test"))
	if !sender.Send(context.Background(), msg) {
		t.Fatalf("Send returned false")
	}
}
