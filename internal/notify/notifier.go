// Package notify delivers formatted payment notices to the downstream
// chat channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier accepts one display message and reports success or failure.
// The pipeline calls it once per newly-recorded payment; redelivery of
// failed notices is out of scope here.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
}

// SlackNotifier posts messages through the Slack Web API.
type SlackNotifier struct {
	apiToken  string
	channelID string
	baseURL   string
	client    *http.Client
	logger    zerolog.Logger
}

// NewSlackNotifier constructs a Slack sink.
func NewSlackNotifier(apiToken, channelID, baseURL string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}

	return &SlackNotifier{
		apiToken:  apiToken,
		channelID: channelID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "slack_notifier").Logger(),
	}
}

// Deliver posts the message via chat.postMessage. Slack reports
// application-level failure in the body, so ok=false is an error even
// on HTTP 200.
func (n *SlackNotifier) Deliver(ctx context.Context, message string) error {
	payload := map[string]string{
		"channel": n.channelID,
		"text":    message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	url := n.baseURL + "/chat.postMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack responded %d", resp.StatusCode)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			if result.Error != "" {
				return fmt.Errorf("slack rejected message: %s", result.Error)
			}
			return fmt.Errorf("slack returned ok=false")
		}
	}

	n.logger.Info().Str("channel", n.channelID).Msg("notice delivered")
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
