// Package remote executes requests against the robot cloud API.
//
// The client is stateless: no retry, no caching. Every failure leaves this
// package as a *model.ErrorInfo so callers can branch on its kind.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/pkg/logger"
	"github.com/okian/robodash/pkg/metrics"
)

// Header names sent on every call.
const (
	HeaderAPIKey    = "air-api-key"
	HeaderRequestID = "X-Request-ID"
)

// Transport defaults.
const (
	DefaultBaseURL         = "https://api.airbotics.io"
	DefaultTimeout         = 800 * time.Millisecond
	DefaultConnectTimeout  = 500 * time.Millisecond
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second

	maxBodyBytes = 4 << 20
)

// Client fetches and posts robot resources.
type Client struct {
	base    *url.URL
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     logger.Logger
}

// New creates a Client for baseURL; an empty baseURL selects DefaultBaseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		base:    u,
		apiKey:  apiKey,
		timeout: DefaultTimeout,
		http:    newHTTPClient(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient has no overall Timeout; the per-request context carries the
// deadline so it can be told apart from caller cancellation.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   DefaultConnectTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Endpoint returns the absolute URL for key, including its canonical query.
func (c *Client) Endpoint(key model.ResourceKey) (string, error) {
	robot := url.PathEscape(key.RobotID)
	var path string
	switch key.Kind {
	case model.KindVitals:
		path = "/robots/" + robot
	case model.KindCommands:
		path = "/robots/" + robot + "/commands"
	case model.KindTelemetry:
		path = "/robots/" + robot + "/data"
	case model.KindLogs:
		path = "/robots/" + robot + "/logs"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, key.Kind)
	}

	endpoint := c.base.String() + path
	if key.Query != "" {
		endpoint += "?" + key.Query
	}
	return endpoint, nil
}

// Fetch performs a GET for key and returns the raw body.
func (c *Client) Fetch(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, http.MethodGet, key, nil, "remote.fetch")

	kind := string(key.Kind)
	metrics.RecordFetchLatency(kind, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordFetch(kind, string(model.AsErrorInfo(err).Kind))
		return nil, err
	}
	metrics.RecordFetch(kind, "success")
	return body, nil
}

// Post sends body as JSON to the endpoint of key and returns the raw reply.
func (c *Client) Post(ctx context.Context, key model.ResourceKey, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, model.NewDecodeFailure("remote.post", err)
	}
	return c.do(ctx, http.MethodPost, key, payload, "remote.post")
}

func (c *Client) do(ctx context.Context, method string, key model.ResourceKey, payload []byte, op string) ([]byte, error) {
	endpoint, err := c.Endpoint(key)
	if err != nil {
		return nil, model.NewUnreachable(op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, rd)
	if err != nil {
		return nil, model.NewUnreachable(op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ei := classify(ctx, op, err)
		c.log.Debug(ctx, "request failed",
			logger.String("method", method),
			logger.String("key", key.String()),
			logger.String("request_id", requestID),
			logger.String("kind", string(ei.Kind)),
			logger.Error(err))
		return nil, ei
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug(ctx, "failed to close response body", logger.Error(cerr))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug(ctx, "request rejected",
			logger.String("method", method),
			logger.String("key", key.String()),
			logger.String("request_id", requestID),
			logger.Int("status", resp.StatusCode))
		return nil, model.NewRemoteRejected(op, resp.StatusCode)
	}
	return data, nil
}

// classify maps a transport error to its kind. Cancellation by the caller
// wins over the per-request deadline.
func classify(parent context.Context, op string, err error) *model.ErrorInfo {
	if errors.Is(parent.Err(), context.Canceled) {
		return model.NewCanceled(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewTimeout(op, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.NewTimeout(op, err)
	}
	return model.NewUnreachable(op, err)
}
