package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"stock-alert-server/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const chartPath = "/v8/finance/chart/{symbol}"

// ErrNoQuote is returned when the upstream answered successfully but the
// document carries no usable price.
var ErrNoQuote = errors.New("no quote in response")

// StatusError is a non-success HTTP answer from the upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// Quote is the part of an upstream chart document the server keeps.
type Quote struct {
	Symbol   string
	Currency string
	Price    float64
}

// QuoteClient fetches the latest quote for one symbol.
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Client is a QuoteClient for a Yahoo-style chart endpoint.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    func() backoff.BackOff
}

// ensure Client implements the interface
var _ QuoteClient = (*Client)(nil)

// NewClient creates a quote client. Outbound calls are spaced at least
// cfg.RequestDelay apart and each GetQuote, retries included, is bounded by
// cfg.RequestTimeout.
func NewClient(cfg *config.Quotes, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	timeout := cfg.RequestTimeout
	return &Client{
		client:     client,
		logger:     logger.Named("quotes"),
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = timeout
			return b
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string   `json:"currency"`
				Symbol             string   `json:"symbol"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	} `json:"chart"`
}

// GetQuote fetches the latest regular-market price for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.client.R().SetPathParam("symbol", symbol)

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	var doc chartResponse
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", symbol, err)
	}
	if len(doc.Chart.Result) == 0 {
		if len(doc.Chart.Error) > 0 && string(doc.Chart.Error) != "null" {
			return nil, fmt.Errorf("%w for %s: %s", ErrNoQuote, symbol, doc.Chart.Error)
		}
		return nil, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}

	meta := doc.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return nil, fmt.Errorf("%w for %s: regularMarketPrice missing", ErrNoQuote, symbol)
	}
	price := *meta.RegularMarketPrice
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, fmt.Errorf("%w for %s: invalid price %v", ErrNoQuote, symbol, price)
	}

	quoted := strings.ToUpper(strings.TrimSpace(meta.Symbol))
	if quoted == "" {
		quoted = symbol
	}
	return &Quote{Symbol: quoted, Currency: meta.Currency, Price: price}, nil
}

// doRequest executes req with rate limiting, retrying network errors, 429
// and 5xx answers with exponential backoff. Other statuses fail at once.
func (c *Client) doRequest(ctx context.Context, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	attempt := 0

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait failed: %w", err))
		}

		c.logger.Debug("Executing request", zap.String("url", c.client.BaseURL+chartPath), zap.Int("attempt", attempt))
		var err error
		resp, err = req.SetContext(ctx).Get(chartPath)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if !resp.IsError() {
			return nil
		}

		statusErr := &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), 256)}
		if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(c.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
