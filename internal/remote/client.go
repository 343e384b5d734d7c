// Package remote is the HTTP client for the FinSight API. It is the only
// place the agent crosses the network boundary, and it never returns Go
// errors: every failure is folded into a Result.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/finsight-labs/finsight-go/internal/models"
)

const (
	// DefaultBaseURL matches the frontend's fallback API location.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration // per request; defaults to 10s
	RateLimit  float64       // requests per second; 0 disables limiting
	Burst      int
	HTTPClient *http.Client // overrides Timeout when set
	Logger     *slog.Logger
}

// Client performs JSON requests against the FinSight API.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Client. It fails only if the base URL is unusable.
func New(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", base)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    hc,
		limiter: limiter,
		log:     log,
	}, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Fetch performs one request and decodes the envelope's data into T.
// body is JSON-encoded when non-nil.
func Fetch[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) Result[T] {
	reqID := uuid.NewString()
	log := c.log.With("method", method, "path", path, "request_id", reqID)

	raw, reason := c.do(ctx, log, reqID, method, path, query, body)
	if reason != "" {
		return Failure[T](reason)
	}

	var env models.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn("remote: malformed envelope", "err", err)
		return Failure[T]("malformed response: " + err.Error())
	}
	if !env.Success {
		msg := ""
		if env.Error != nil {
			msg = *env.Error
		}
		log.Warn("remote: request unsuccessful", "reason", msg)
		return Failure[T](msg)
	}

	var v T
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			log.Warn("remote: malformed data", "err", err)
			return Failure[T]("malformed response: " + err.Error())
		}
	}
	return Success(v)
}

// do sends the request and returns the raw body of a 2xx response, or a
// failure reason.
func (c *Client) do(ctx context.Context, log *slog.Logger, reqID, method, path string, query url.Values, body any) ([]byte, string) {
	if err := c.limiter.Wait(ctx); err != nil {
		log.Warn("remote: rate limiter wait aborted", "err", err)
		return nil, ReasonConnection
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Error("remote: encode request body", "err", err)
			return nil, "invalid request: " + err.Error()
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		log.Error("remote: create request", "err", err)
		return nil, "invalid request: " + err.Error()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("remote: http request failed", "err", err)
		return nil, ReasonConnection
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn("remote: read response body", "err", err)
		return nil, ReasonConnection
	}
	log.Debug("remote: response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := statusReason(resp.StatusCode, raw)
		log.Warn("remote: non-2xx response", "status", resp.StatusCode, "reason", reason)
		return nil, reason
	}
	return raw, ""
}

// statusReason extracts the most specific message from an error response:
// the envelope's error, FastAPI's detail, or the bare status code.
func statusReason(status int, raw []byte) string {
	var body struct {
		Error  *string         `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != nil && *body.Error != "" {
			return *body.Error
		}
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
			return detail
		}
	}
	return fmt.Sprintf("API returned status %d", status)
}
