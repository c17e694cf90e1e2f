package polymarket

// Package polymarket contains the client for the Polymarket Gamma API
// This file is the transport layer: rate limiting, circuit breaking, retries
// It doesn't know about keywords or alerts, it only sends requests and returns bodies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polymarket-monitor/internal/infra/log"
	"polymarket-monitor/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// GammaAPI is the public Polymarket listing API.
	GammaAPI = "https://gamma-api.polymarket.com"

	defaultMaxResponseSize = 32 * 1024 * 1024
)

type Options struct {
	BaseURL         string
	RatePerSec      float64
	MaxRetries      int
	MaxResponseSize int64
	FetchTimeout    time.Duration
	HTTPClient      *http.Client

	// MaxPages is the fan-out width; a half-open breaker admits that many probes
	// so one recovering cycle can fetch every page.
	MaxPages       int
	BreakerTimeout time.Duration
}

// Client is safe for concurrent use by the page fan-out.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retry           retry.Options
	maxResponseSize int64
	fetchTimeout    time.Duration
	log             *log.Logger
}

func NewClient(opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = GammaAPI
	}
	maxSize := opts.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}

	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = FetchTimeout
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 4 {
			burst = 4
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	halfOpen := opts.MaxPages
	if halfOpen < DefaultMaxPages {
		halfOpen = DefaultMaxPages
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PolymarketAPI",
		MaxRequests: uint32(halfOpen),
		Interval:    60 * time.Second,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 8
		},
		IsSuccessful: func(err error) bool {
			// Our own cancellation says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: false,
				MaxIdleConns:      16,
				IdleConnTimeout:   90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:         baseURL,
		httpClient:      httpClient,
		rateLimiter:     limiter,
		circuitBreaker:  breaker,
		retry:           retry.Options{MaxRetries: opts.MaxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second},
		maxResponseSize: maxSize,
		fetchTimeout:    fetchTimeout,
		log:             logger,
	}
}

// Get performs a GET on endpoint with query and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	requestID := log.GenerateRequestID()
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	err := retry.Do(ctx, c.retry, func() error {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}
		out, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.do(ctx, requestID, endpoint, target)
		})
		if err != nil {
			return err
		}
		body = out.([]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, requestID, endpoint, target string) ([]byte, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polymarket-monitor/1.0")

	c.log.Request(requestID, http.MethodGet, endpoint, zap.String("url", target))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Response(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		c.log.Response(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Response(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}
