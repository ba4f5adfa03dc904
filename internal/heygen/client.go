// Package heygen adapts logical streaming-avatar operations to the HeyGen
// HTTP API and normalizes every outcome into a status code plus JSON body.
package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vairlabs/vair-api/internal/observability"
	"github.com/vairlabs/vair-api/internal/policy"
)

// Streaming API operation paths under the base URL.
const (
	OpNewSession   = "streaming.new"
	OpCreateToken  = "streaming.create_token"
	OpStartSession = "streaming.start"
	OpSendTask     = "streaming.task"
	OpStopSession  = "streaming.stop"
)

const maxResponseBytes = 1 << 20

// Result is the normalized outcome of an upstream call. Remote errors keep
// their original status and body; transport faults become a synthesized 500.
type Result struct {
	Status int
	Body   map[string]any
}

// OK reports whether the upstream call succeeded.
func (r Result) OK() bool {
	return r.Status == http.StatusOK
}

// Caller is the upstream surface the orchestrator depends on.
type Caller interface {
	Post(ctx context.Context, op string, payload any) Result
}

// Client is a stateless HTTP adapter to the HeyGen streaming API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Post issues one operation call and never returns a raw error: network and
// parse failures are folded into the Result so callers can pass the outcome
// through unchanged.
func (c *Client) Post(ctx context.Context, op string, payload any) Result {
	url := c.baseURL + "/" + op

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return c.transportFailure(op, fmt.Errorf("marshal request: %w", err), 0)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return c.transportFailure(op, fmt.Errorf("create request: %w", err), 0)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("upstream request",
		"op", op,
		"url", url,
		"api_key", policy.MaskSecret(c.apiKey),
	)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportFailure(op, err, time.Since(start))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return c.transportFailure(op, fmt.Errorf("read response: %w", err), time.Since(start))
	}
	elapsed := time.Since(start)

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		text := strings.TrimSpace(string(raw))
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			// A success status with an unreadable body is as useless as a
			// failed connection; surface it as a transport-class fault.
			c.logger.Error("upstream returned malformed body",
				"op", op, "status", res.StatusCode, "body", truncate(text, 256))
			c.metrics.ObserveUpstream(op, observability.OutcomeTransportError, elapsed)
			return Result{
				Status: http.StatusInternalServerError,
				Body:   map[string]any{"error": fmt.Sprintf("invalid JSON from upstream API: %s", truncate(text, 256))},
			}
		}
		c.logger.Error("upstream error with unparseable body",
			"op", op, "status", res.StatusCode, "body", truncate(text, 256))
		c.metrics.ObserveUpstream(op, observability.OutcomeUpstreamError, elapsed)
		return Result{
			Status: res.StatusCode,
			Body:   map[string]any{"error": fmt.Sprintf("HTTP %d: %s", res.StatusCode, text)},
		}
	}

	outcome := observability.OutcomeOK
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		outcome = observability.OutcomeUpstreamError
		c.logger.Error("upstream reported error",
			"op", op, "status", res.StatusCode, "body", policy.RedactBody(parsed))
	} else {
		c.logger.Info("upstream request done",
			"op", op, "status", res.StatusCode, "duration", elapsed)
		c.logger.Debug("upstream response body", "op", op, "body", policy.RedactBody(parsed))
	}
	c.metrics.ObserveUpstream(op, outcome, elapsed)

	return Result{Status: res.StatusCode, Body: parsed}
}

func (c *Client) transportFailure(op string, err error, elapsed time.Duration) Result {
	c.logger.Error("upstream request failed", "op", op, "error", err)
	c.metrics.ObserveUpstream(op, observability.OutcomeTransportError, elapsed)
	return Result{
		Status: http.StatusInternalServerError,
		Body:   map[string]any{"error": err.Error()},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
