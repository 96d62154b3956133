// Package client talks to the social HTTP API. It implements the store
// interfaces so views run unchanged against a remote service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/store"
)

const maxResponseBody = 8 << 20

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.Token = strings.TrimSpace(token) }
}

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBreaker returns a circuit breaker that trips on consecutive transient
// failures. Validation, auth and not-found answers count as successes.
func NewBreaker(name string, failures uint32, timeout time.Duration, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.KindOf(err) != domain.KindTransient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// Stores returns the API as a store.Stores.
func (c *Client) Stores() store.Stores {
	return store.Stores{
		Comments: Comments{c},
		Posts:    Posts{c},
		Likes:    Likes{c},
		Profiles: Profiles{c},
		Follows:  Follows{c},
	}
}

// call describes one request.
type call struct {
	op      string
	method  string
	path    string
	body    []byte
	ctype   string
	headers map[string]string
	out     any
}

func jsonCall(op, method, path string, in, out any) (call, error) {
	c := call{op: op, method: method, path: path, out: out}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return c, domain.Invalid(op, "encode request: %v", err)
		}
		c.body = b
		c.ctype = "application/json"
	}
	return c, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	cl, err := jsonCall(op, method, path, in, out)
	if err != nil {
		return err
	}
	return c.do(ctx, cl)
}

func (c *Client) do(ctx context.Context, cl call) error {
	if c.CB == nil {
		return c.send(ctx, cl)
	}
	_, err := c.CB.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, cl)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Transient(cl.op, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.BaseURL+cl.path, body)
	if err != nil {
		return domain.Invalid(cl.op, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.ctype != "" {
		req.Header.Set("Content-Type", cl.ctype)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Log.Warn("request failed", zap.String("op", cl.op), zap.String("path", cl.path), zap.Error(err))
		return domain.Transient(cl.op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return domain.Transient(cl.op, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(cl.op, resp.StatusCode, b)
	}
	if cl.out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, cl.out); err != nil {
		return domain.Transient(cl.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError turns an API error response back into a domain error.
func statusError(op string, status int, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	msg := env.Error.Message
	if msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}

	switch {
	case env.Error.Code == "USERNAME_TAKEN":
		return store.ErrUsernameTaken
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.Unauthorized(op, "%s", msg)
	case status == http.StatusNotFound:
		return domain.NotFound(op, "%s", msg)
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		return domain.Invalid(op, "%s", msg)
	case status == http.StatusConflict:
		return domain.Conflict(op, "%s", msg)
	}
	return domain.Transient(op, fmt.Errorf("status %d: %s", status, msg))
}
