package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

const (
	EventsPaginationEndpoint = "/events/pagination"

	DefaultPageSize = 500
	DefaultMaxPages = 4

	// FetchTimeout is the default budget for a whole FetchAll call, all pages included.
	FetchTimeout = 30 * time.Second
)

// Event is one raw entry of the events listing. Both fields may be absent.
type Event struct {
	Title *string `json:"title"`
	Slug  *string `json:"slug"`
}

type EventsPage struct {
	Data []Event `json:"data"`
}

// Listing is a market snapshot: lowercased title plus the stable slug.
type Listing struct {
	Title string
	Slug  string
}

// FetchError reports a failed listing fetch. Page is -1 when no single page is to blame.
type FetchError struct {
	Page   int
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("fetch listings: %v", e.Err)
	}
	return fmt.Sprintf("fetch listings page %d (offset %d): %v", e.Page+1, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("active", "true")
	q.Set("archived", "false")
	q.Set("closed", "false")
	q.Set("order", "creationDate")
	q.Set("ascending", "false")
	return q
}

// FetchPage requests one page of active events.
func (c *Client) FetchPage(ctx context.Context, limit, offset int) ([]Event, error) {
	body, err := c.Get(ctx, EventsPaginationEndpoint, pageQuery(limit, offset))
	if err != nil {
		return nil, err
	}

	var page EventsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode events page: %w", err)
	}
	return page.Data, nil
}

// FetchEvents requests maxPages pages concurrently and merges them in offset order.
// The first failing page cancels the others and fails the whole call.
func (c *Client) FetchEvents(ctx context.Context, pageSize, maxPages int) ([]Event, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	pages := make([][]Event, maxPages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPages)

	for i := 0; i < maxPages; i++ {
		offset := i * pageSize
		g.Go(func() error {
			events, err := c.FetchPage(gctx, pageSize, offset)
			if err != nil {
				return &FetchError{Page: i, Offset: offset, Err: err}
			}
			pages[i] = events
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Report the budget expiry rather than the sibling cancellation it caused.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &FetchError{Page: -1, Err: fmt.Errorf("timed out after %s: %w", c.fetchTimeout, ctx.Err())}
		}
		return nil, err
	}

	total := 0
	for _, p := range pages {
		total += len(p)
	}
	merged := make([]Event, 0, total)
	for _, p := range pages {
		merged = append(merged, p...)
	}

	c.log.Debug("Fetched events",
		zap.Int("pages", maxPages),
		zap.Int("pageSize", pageSize),
		zap.Int("events", len(merged)))

	return merged, nil
}

// FetchAll fetches and extracts listings. It is the Fetcher used by the monitor.
func (c *Client) FetchAll(ctx context.Context, pageSize, maxPages int) ([]Listing, error) {
	events, err := c.FetchEvents(ctx, pageSize, maxPages)
	if err != nil {
		return nil, err
	}
	return ExtractListings(events), nil
}

// ExtractListings lowercases titles and drops entries without a usable slug.
// Order is preserved and duplicate slugs are kept.
func ExtractListings(events []Event) []Listing {
	out := make([]Listing, 0, len(events))
	for _, e := range events {
		if e.Slug == nil || *e.Slug == "" || strings.ContainsAny(*e.Slug, "\r\n") {
			continue
		}
		title := ""
		if e.Title != nil {
			title = strings.ToLower(*e.Title)
		}
		out = append(out, Listing{Title: title, Slug: *e.Slug})
	}
	return out
}
