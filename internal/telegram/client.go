// Package telegram implements the bridge between the Telegram Bot API
// and the message bus: inbound update classification and translation,
// outbound message dispatch, response validation, and delivery
// reporting.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tgbridge/internal/domain"
	"tgbridge/internal/metrics"
)

// DefaultBaseURL is the public Bot API endpoint prefix. The bot token is
// appended directly, per Telegram's URL scheme.
const DefaultBaseURL = "https://api.telegram.org/bot"

const maxResponseBytes = 1 << 20

// apiResponse mirrors the Bot API response envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Client posts JSON payloads to the Bot API and reduces responses to
// verdicts. Redirects are never followed: a redirect means the token or
// base URL is misconfigured, and following one would leak the request.
type Client struct {
	apiURL string // base URL + token, no trailing slash
	http   *http.Client
	logger *slog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		apiURL: strings.TrimRight(baseURL, "/") + token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (c *Client) endpointURL(endpoint string) string {
	return c.apiURL + "/" + endpoint
}

// Post sends one JSON request to the given Bot API endpoint and returns
// the validated verdict. Network errors and timeouts reduce to a failure
// verdict the same way a bad response does; retry policy belongs to the
// message producer, not here.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) domain.Verdict {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Verdict{
			Reason:  domain.ReasonBadResponse,
			Message: "request not sent",
			Details: map[string]any{"error": err.Error()},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{
			Reason:  domain.ReasonBadResponse,
			Message: "request not sent",
			Details: map[string]any{"error": err.Error()},
		}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.APILatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("bot api request failed", "endpoint", endpoint, "err", err)
		return domain.Verdict{
			Reason:  domain.ReasonBadResponse,
			Message: "request failed",
			Details: map[string]any{"error": err.Error()},
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Verdict{
			Reason:  domain.ReasonBadResponse,
			Message: "response not readable",
			Details: map[string]any{"error": err.Error(), "res_code": resp.StatusCode},
		}
	}

	return ValidateResponse(resp.StatusCode, raw)
}

// SetWebhook registers url with Telegram as the delivery target for
// this bot's updates.
func (c *Client) SetWebhook(ctx context.Context, url string) domain.Verdict {
	return c.Post(ctx, "setWebhook", map[string]any{"url": url})
}

// GetMe verifies the bot token and returns the bot's username on
// success.
func (c *Client) GetMe(ctx context.Context) (string, domain.Verdict) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL("getMe"), strings.NewReader("{}"))
	if err != nil {
		return "", domain.Verdict{Reason: domain.ReasonBadResponse, Message: "request not sent", Details: map[string]any{"error": err.Error()}}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.Verdict{Reason: domain.ReasonBadResponse, Message: "request failed", Details: map[string]any{"error": err.Error()}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.Verdict{Reason: domain.ReasonBadResponse, Message: "response not readable", Details: map[string]any{"error": err.Error()}}
	}

	verdict := ValidateResponse(resp.StatusCode, raw)
	if !verdict.Success {
		return "", verdict
	}

	var envelope apiResponse
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		_ = json.Unmarshal(envelope.Result, &me)
	}
	if me.Username == "" {
		return "", verdict
	}
	return fmt.Sprintf("@%s", me.Username), verdict
}
