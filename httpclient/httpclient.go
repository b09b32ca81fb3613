// Package httpclient provides an o11y instrumented HTTP client for tests that
// talk to real services. Calls are retried on 5XX responses and, when a
// recorder is configured, every attempt is noted as a live request.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/liverequests/o11y"
	"github.com/circleci/liverequests/recorder"
)

const JSON = "application/json; charset=utf-8"

// Config provides the client configuration
type Config struct {
	// Name is used to identify the client in spans
	Name string
	// BaseURL is the URL and optional path prefix to the server that this is a client of.
	BaseURL string
	// AuthToken is sent as a bearer token if set.
	AuthToken string
	// AcceptType if set will be used to set the Accept header.
	AcceptType string
	// Timeout is the maximum time any call can take including any retries.
	// A zero Timeout means the client will retry indefinitely.
	Timeout time.Duration
	// MaxConnectionsPerHost sets the connection pool size
	MaxConnectionsPerHost int
	// Recorder, if set, records every attempt as a live request.
	Recorder *recorder.Recorder
	// Transport replaces the pooled default transport.
	Transport http.RoundTripper
}

// Client is the o11y instrumented http client.
type Client struct {
	name                  string
	baseURL               string
	httpClient            *http.Client
	backOffMaxElapsedTime time.Duration
	authToken             string
	acceptType            string
}

// New creates a client configured with the config param
func New(cfg Config) *Client {
	rt := cfg.Transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.MaxConnectionsPerHost == 0 {
			cfg.MaxConnectionsPerHost = 10
		}
		t.MaxConnsPerHost = cfg.MaxConnectionsPerHost
		t.MaxIdleConnsPerHost = cfg.MaxConnectionsPerHost
		rt = t
	}
	if cfg.Recorder != nil {
		rt = recorder.Transport(cfg.Recorder, rt)
	}

	return &Client{
		name:                  cfg.Name,
		baseURL:               cfg.BaseURL,
		backOffMaxElapsedTime: cfg.Timeout,
		authToken:             cfg.AuthToken,
		acceptType:            cfg.AcceptType,
		httpClient: &http.Client{
			Transport: rt,
		},
	}
}

// CloseIdleConnections closes any pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

type Decoder func(r io.Reader) error

// Request is an individual http request that the Client will send
type Request struct {
	Method        string
	Route         string
	Body          interface{} // If set this will be sent as JSON
	Decoder       Decoder     // If set will be used to decode a 2XX response body
	Headers       map[string]string
	Timeout       time.Duration // The individual per call timeout
	Query         url.Values
	NoPropagation bool

	url string
}

// NewRequest creates a request whose url is route formatted with routeParams.
// The unformatted route names the span, keeping trace cardinality low.
func NewRequest(method, route string, timeout time.Duration, routeParams ...interface{}) Request {
	return Request{
		Method:  method,
		url:     fmt.Sprintf(route, routeParams...),
		Route:   route,
		Timeout: timeout,
	}
}

// Call makes the request, tracing a span for each attempt. Retries are made on
// any 5XX response. A non 2XX response is returned as an *HTTPError.
func (c *Client) Call(ctx context.Context, r Request) error {
	if r.url == "" {
		r.url = r.Route
	}
	u, err := url.Parse(c.baseURL + r.url)
	if err != nil {
		return err
	}
	u.RawQuery = r.Query.Encode()

	var body []byte
	if r.Body != nil {
		b := &bytes.Buffer{}
		if err := json.NewEncoder(b).Encode(r.Body); err != nil {
			return fmt.Errorf("could not json encode request: %w", err)
		}
		body = b.Bytes()
	}

	newRequest := func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), rd)
		if err != nil {
			return nil, err
		}
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}
		if c.acceptType != "" {
			req.Header.Set("Accept", c.acceptType)
		}
		if body != nil {
			req.Header.Set("Content-Type", JSON)
		}
		for k, v := range r.Headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	return doneRetrying(c.retryRequest(ctx, r, newRequest))
}

func (c *Client) retryRequest(ctx context.Context, r Request, newReq func(context.Context) (*http.Request, error)) error {
	name := fmt.Sprintf("httpclient: %s %s", c.name, r.Route)
	attempts := 0

	attempt := func() (err error) {
		ctx, span := o11y.StartSpan(ctx, name)
		defer o11y.End(span, &err)
		span.RecordMetric(o11y.Timing("httpclient", "http.client_name", "http.method", "http.status_code"))
		attempts++

		timeout := r.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !r.NoPropagation {
			for k, v := range o11y.FromContext(ctx).Helpers().ExtractPropagation(ctx).Headers {
				req.Header[k] = v
			}
		}

		span.AddRawField("http.client_name", c.name)
		span.AddRawField("http.route", r.Route)
		span.AddRawField("http.method", req.Method)
		span.AddRawField("http.host", req.URL.Host)
		span.AddRawField("http.url", req.URL.String())
		span.AddRawField("http.attempt", attempts)
		span.AddRawField("http.retry", attempts > 1)

		res, err := c.httpClient.Do(req)
		if err != nil {
			// url errors repeat the method and url
			e := &url.Error{}
			if errors.As(err, &e) {
				err = e.Err
			}
			return fmt.Errorf("call: %s %s failed with: %w after %d attempt(s)",
				req.Method, r.Route, err, attempts)
		}
		defer func() {
			// drain for keep alive, best effort
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}()
		span.AddRawField("http.status_code", res.StatusCode)

		if err := extractHTTPError(req, res, attempts, r.Route); err != nil {
			return err
		}
		if r.Decoder == nil {
			return nil
		}
		if err := r.Decoder(res.Body); err != nil {
			return backoff.Permanent(fmt.Errorf("call: %s %s decoding failed with: %w after %d attempt(s)",
				req.Method, r.Route, err, attempts))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = c.backOffMaxElapsedTime
	return backoff.Retry(attempt, backoff.WithContext(bo, ctx))
}

// NewJSONDecoder returns a decoder that unmarshals the body into resp.
func NewJSONDecoder(resp interface{}) Decoder {
	return func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(resp); err != nil {
			return fmt.Errorf("failed to unmarshal: %w", err)
		}
		return nil
	}
}

// NewBytesDecoder decodes the response body into a byte slice
func NewBytesDecoder(resp *[]byte) Decoder {
	return func(r io.Reader) error {
		bs, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*resp = bs
		return nil
	}
}

// NewStringDecoder decodes the response body into a string
func NewStringDecoder(resp *string) Decoder {
	return func(r io.Reader) error {
		var bs []byte
		if err := NewBytesDecoder(&bs)(r); err != nil {
			return err
		}
		*resp = string(bs)
		return nil
	}
}

// HTTPError represents an error in an HTTP call when the response status code is not 2XX
type HTTPError struct {
	method       string
	route        string
	code         int
	attempts     int
	doneRetrying bool
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("the response from %s %s was %d (%s) (%d attempts)",
		e.method, e.route, e.code, http.StatusText(e.code), e.attempts)
}

// Code returns the status code recorded in this error.
func (e *HTTPError) Code() int {
	return e.code
}

// Is reports the error as an o11y warning while it is still being retried, and
// afterwards for the 401 to 404 responses tests commonly provoke.
func (e *HTTPError) Is(target error) bool {
	if o11y.IsWarningNoUnwrap(target) {
		if !e.doneRetrying {
			return true
		}
		return e.code > 400 && e.code <= 404
	}
	return false
}

// HasStatusCode reports whether err is an HTTPError with one of codes.
func HasStatusCode(err error, codes ...int) bool {
	e := &HTTPError{}
	if errors.As(err, &e) {
		for _, code := range codes {
			if e.code == code {
				return true
			}
		}
	}
	return false
}

// IsRequestProblem reports whether err is an HTTPError with a 4XX code.
func IsRequestProblem(err error) bool {
	e := &HTTPError{}
	if errors.As(err, &e) {
		return e.code >= 400 && e.code < 500
	}
	return false
}

func extractHTTPError(req *http.Request, res *http.Response, attempts int, route string) error {
	httpErr := &HTTPError{
		method:   req.Method,
		route:    route,
		code:     res.StatusCode,
		attempts: attempts,
	}
	switch {
	case res.StatusCode >= 500:
		return httpErr
	case res.StatusCode >= 300:
		return backoff.Permanent(httpErr)
	}
	return nil
}

func doneRetrying(err error) error {
	e := &HTTPError{}
	if errors.As(err, &e) {
		e.doneRetrying = true
		return e
	}
	return err
}
