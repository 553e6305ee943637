// Package api is the HTTP transport to the parcel backend. It attaches
// credentials through an Authenticator, replays a request once after a
// successful token refresh, classifies failures into *Error and reports
// server correlation ids.
package api

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

	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

const DefaultTimeout = 15 * time.Second

// Authenticator is the session side of the transport.
type Authenticator interface {
	// Decorate attaches the current bearer token, if any.
	Decorate(ctx context.Context, req *http.Request) error
	// AccessToken returns the token Decorate would attach now.
	AccessToken(ctx context.Context) (string, error)
	// Refresh obtains a new access token. Concurrent callers share one
	// refresh. A non-nil error means the session is gone.
	Refresh(ctx context.Context) (string, error)
	// Expire clears the session after a replay was still rejected.
	Expire(ctx context.Context)
}

// RequestIDRecorder receives every correlation id seen on a response.
type RequestIDRecorder interface {
	RecordRequestID(id string)
}

type RequestIDRecorderFunc func(id string)

func (f RequestIDRecorderFunc) RecordRequestID(id string) { f(id) }

// Request describes one backend call. Body is JSON-encoded when set.
type Request struct {
	Method        string
	Path          string
	Body          any
	Header        http.Header
	Authenticated bool
}

type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

type Client struct {
	baseURL  string
	http     *http.Client
	auth     Authenticator
	recorder RequestIDRecorder
	log      logging.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) { c.auth = a }
}

func WithRequestIDRecorder(r RequestIDRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL. Trailing slashes are trimmed.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthenticator wires the session after construction; the session
// itself needs the client to refresh tokens.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.auth = a
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req. A 401 on an authenticated request is recovered by one
// refresh and exactly one replay; the caller only sees it as
// KindSessionExpired when that fails.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}

	authed := req.Authenticated && c.auth != nil

	resp, sent, err := c.send(ctx, req, payload, authed)
	if err == nil || !authed || !IsKind(err, KindUnauthorized) {
		return resp, err
	}

	if c.renewedSince(ctx, sent) {
		c.log.Debug(ctx, "access token renewed since request was sent, replaying", "path", req.Path)
	} else {
		c.log.Debug(ctx, "access token rejected, refreshing", "path", req.Path)
		if _, rerr := c.auth.Refresh(ctx); rerr != nil {
			return nil, sessionExpired(requestIDOf(err))
		}
	}

	resp, _, err = c.send(ctx, req, payload, authed)
	if IsKind(err, KindUnauthorized) {
		c.auth.Expire(ctx)
		return nil, sessionExpired(requestIDOf(err))
	}
	return resp, err
}

// renewedSince reports whether the session already holds a token other than
// the one a rejected request carried.
func (c *Client) renewedSince(ctx context.Context, sent string) bool {
	current, err := c.auth.AccessToken(ctx)
	return err == nil && current != "" && current != sent
}

// send returns the bearer token the request went out with.
func (c *Client) send(ctx context.Context, req *Request, payload []byte, authed bool) (*Response, string, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	var sent string
	if authed {
		if err := c.auth.Decorate(ctx, httpReq); err != nil {
			return nil, "", fmt.Errorf("decorate request: %w", err)
		}
		sent, _ = common.BearerToken(httpReq.Header.Get(common.AuthorizationHeader))
	}

	resp, err := c.execute(ctx, httpReq)
	return resp, sent, err
}

// execute runs a prepared request and turns non-2xx answers into *Error.
func (c *Client) execute(ctx context.Context, httpReq *http.Request) (*Response, error) {
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", httpReq.Method, "url", httpReq.URL.Redacted(), "error", err)
		return nil, transportError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	var envelope errorBody
	_ = json.Unmarshal(raw, &envelope)

	requestID := strings.TrimSpace(envelope.RequestID)
	if requestID == "" {
		requestID = httpResp.Header.Get(common.RequestIDHeader)
	}
	c.recordRequestID(ctx, requestID)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := strings.TrimSpace(envelope.Message)
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		return nil, &Error{
			Kind:      kindForStatus(httpResp.StatusCode),
			Status:    httpResp.StatusCode,
			Message:   msg,
			Code:      envelope.Code,
			RequestID: requestID,
		}
	}

	return &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      raw,
		RequestID: requestID,
	}, nil
}

func (c *Client) recordRequestID(ctx context.Context, id string) {
	if id == "" {
		return
	}
	c.log.Debug(ctx, "backend request id", "request_id", id)
	if c.recorder != nil {
		c.recorder.RecordRequestID(id)
	}
}

type errorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId"`
}

func requestIDOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RequestID
	}
	return ""
}

func decode(resp *Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{
			Kind:      KindUnknown,
			Status:    resp.Status,
			Message:   "malformed response body",
			RequestID: resp.RequestID,
			Err:       err,
		}
	}
	return nil
}
