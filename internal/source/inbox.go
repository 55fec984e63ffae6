package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// InboxOptions parameterise the inbox API client.
type InboxOptions struct {
	BaseURL          string
	AuthToken        string
	Query            string
	PageSize         int
	Timeout          time.Duration
	MaxRetries       int
	RateLimitPerSec  float64
	RateLimitBurst   int
	BreakerCooldown  time.Duration
	BreakerThreshold uint32
}

// InboxClient talks to an inbox message API in the usual REST shape:
// a listing endpoint returning message ids and a per-message endpoint
// returning the full payload with a base64url text/plain part.
type InboxClient struct {
	opts    InboxOptions
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

type listResponse struct {
	Messages []struct {
		ID           string `json:"id"`
		InternalDate string `json:"internal_date"`
	} `json:"messages"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Payload struct {
		Parts []struct {
			MimeType string `json:"mime_type"`
			Body     struct {
				Data string `json:"data"`
			} `json:"body"`
		} `json:"parts"`
	} `json:"payload"`
}

// NewInboxClient builds an inbox source. Calls are rate limited and a
// circuit breaker short-circuits a dead inbox to the empty-list
// contract instead of burning the request timeout every cycle.
func NewInboxClient(opts InboxOptions, logger zerolog.Logger) *InboxClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = 5
	}

	threshold := opts.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "inbox",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})

	return &InboxClient{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst),
		breaker: breaker,
		logger:  logger.With().Str("component", "inbox_source").Logger(),
	}
}

// ListCandidates lists message refs inside the window, newest last. A
// failed or short-circuited call returns an empty slice.
func (c *InboxClient) ListCandidates(ctx context.Context, window Window) []MessageRef {
	query := url.Values{}
	if c.opts.Query != "" {
		query.Set("q", c.opts.Query)
	}
	query.Set("max_results", strconv.Itoa(c.opts.PageSize))
	if !window.From.IsZero() {
		query.Set("after", strconv.FormatInt(window.From.Unix(), 10))
	}
	if !window.To.IsZero() {
		query.Set("before", strconv.FormatInt(window.To.Unix(), 10))
	}

	var resp listResponse
	if err := c.getJSON(ctx, "/messages?"+query.Encode(), &resp); err != nil {
		c.logger.Error().Err(err).Msg("inbox listing failed; treating as empty")
		return nil
	}

	refs := make([]MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ref := MessageRef{ID: m.ID}
		if millis, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil {
			ref.ArrivedAt = time.UnixMilli(millis).UTC()
		}
		refs = append(refs, ref)
	}
	return refs
}

// FetchBody retrieves and decodes the text/plain part of one message.
// Absent bodies (fetch failure, no plain part, empty part) return ok
// false so the caller can skip the message.
func (c *InboxClient) FetchBody(ctx context.Context, id string) (string, bool) {
	var resp messageResponse
	if err := c.getJSON(ctx, "/messages/"+url.PathEscape(id), &resp); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("inbox fetch failed; treating body as absent")
		return "", false
	}

	for _, part := range resp.Payload.Parts {
		if part.MimeType != "text/plain" || part.Body.Data == "" {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			c.logger.Warn().Err(err).Str("message_id", id).Msg("failed to decode message part")
			continue
		}
		body := string(decoded)
		if strings.TrimSpace(body) == "" {
			continue
		}
		return body, true
	}
	return "", false
}

func (c *InboxClient) getJSON(ctx context.Context, path string, out interface{}) error {
	if c.opts.BaseURL == "" {
		return fmt.Errorf("inbox base url not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getJSONWithRetry(ctx, path, out)
	})
	return err
}

func (c *InboxClient) getJSONWithRetry(ctx context.Context, path string, out interface{}) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.opts.MaxRetries)),
		ctx,
	)

	return backoff.Retry(func() error {
		return c.getJSONOnce(ctx, path, out)
	}, policy)
}

func (c *InboxClient) getJSONOnce(ctx context.Context, path string, out interface{}) error {
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create inbox request: %w", err))
	}
	if c.opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("inbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(fmt.Errorf("inbox responded %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inbox responded %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode inbox response: %w", err))
	}
	return nil
}

var _ MessageSource = (*InboxClient)(nil)
