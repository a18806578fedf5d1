// Package api is the HTTP/JSON transport to the marketplace backend. It owns
// request construction, the bearer credential header, per-call timeouts and
// the classification of every failure into an errors.Kind.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/logging"
	"github.com/grovetools/bnb/version"
)

const (
	// DefaultTimeout bounds every call that does not set WithTimeout.
	DefaultTimeout = 15 * time.Second

	// RequestIDHeader carries a per-call correlation id.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 10 << 20
)

// CredentialSource supplies the bearer token for authenticated requests. An
// empty token means the request is sent without an Authorization header.
type CredentialSource interface {
	Token() string
}

// Response describes a completed HTTP exchange. It is passed to interceptors.
type Response struct {
	Method    string
	Path      string
	Status    int
	RequestID string
	// Token is the bearer credential the request carried, empty if none.
	Token string
}

// Interceptor observes every response that reached the server, before the
// caller sees the result.
type Interceptor func(ctx context.Context, resp Response)

// Request is one call against the backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Bearer overrides the credential source for this call.
	Bearer string
	// Anonymous suppresses the Authorization header entirely.
	Anonymous bool
	// Unwrap names a field of the response object that holds the payload,
	// for endpoints that answer {"message": ..., "<field>": {...}}. Responses
	// without that field are decoded as a whole.
	Unwrap string
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	limiter    *rate.Limiter
	logger     *logrus.Entry

	mu           sync.RWMutex
	credentials  CredentialSource
	interceptors []Interceptor
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit paces outgoing calls to rps requests per second with the given
// burst. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
				DisableKeepAlives: false,
			},
		},
		timeout:   DefaultTimeout,
		userAgent: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger("api")
	}
	return c
}

// SetCredentials installs the source consulted for every authenticated call.
func (c *Client) SetCredentials(src CredentialSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = src
}

// OnResponse registers an interceptor. Interceptors run in registration order.
func (c *Client) OnResponse(fn Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, fn)
}

func (c *Client) token(req Request) string {
	if req.Anonymous {
		return ""
	}
	if req.Bearer != "" {
		return req.Bearer
	}
	c.mu.RLock()
	src := c.credentials
	c.mu.RUnlock()
	if src == nil {
		return ""
	}
	return src.Token()
}

// Do performs req and decodes a successful JSON response into out (which may
// be nil). Every returned error is an *errors.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Network(req.Method, req.Path, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, token, requestID, err := c.build(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.Path,
			"request_id": requestID,
		}).WithError(err).Debug("request failed")
		return errors.Network(req.Method, req.Path, err).WithDetail("request_id", requestID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Network(req.Method, req.Path, fmt.Errorf("read response body: %w", err)).
			WithDetail("request_id", requestID)
	}

	c.logger.WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        req.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"request_id":  requestID,
	}).Debug("response")

	c.intercept(ctx, Response{
		Method:    req.Method,
		Path:      req.Path,
		Status:    resp.StatusCode,
		RequestID: requestID,
		Token:     token,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.FromStatus(resp.StatusCode, serverMessage(body)).
			WithDetail("method", req.Method).
			WithDetail("path", req.Path).
			WithDetail("request_id", requestID)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return errors.MalformedResponse(req.Method, req.Path, io.ErrUnexpectedEOF).
			WithDetail("request_id", requestID)
	}
	if err := decode(body, req.Unwrap, out); err != nil {
		return errors.MalformedResponse(req.Method, req.Path, err).
			WithDetail("request_id", requestID)
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, string, string, error) {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", "", errors.Wrap(err, errors.KindInternal, "failed to encode request body").
				WithDetail("path", req.Path)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, "", "", errors.Wrap(err, errors.KindInternal, "failed to create request").
			WithDetail("path", req.Path)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token := c.token(req)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, token, requestID, nil
}

func (c *Client) intercept(ctx context.Context, resp Response) {
	c.mu.RLock()
	fns := make([]Interceptor, len(c.interceptors))
	copy(fns, c.interceptors)
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, resp)
	}
}

func decode(body []byte, field string, out any) error {
	if field != "" {
		var envelope map[string]json.RawMessage
		if json.Unmarshal(body, &envelope) == nil {
			if inner, ok := envelope[field]; ok {
				body = inner
			}
		}
	}
	return json.Unmarshal(body, out)
}

// serverMessage extracts the human-readable message from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch e := payload.Error.(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if m, ok := e["message"].(string); ok && m != "" {
			return m
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Msg
}
