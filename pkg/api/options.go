package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ResponseValidator checks a decoded JSON body against the API contract.
type ResponseValidator interface {
	ValidateResponse(operationID string, status int, body map[string]any) error
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. The client's own Timeout is left
// untouched; per-call deadlines come from WithRequestTimeout and
// WithGenerateTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for request tracing and unexpected
// responses.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResponseValidator enables contract validation of decoded bodies.
func WithResponseValidator(v ResponseValidator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// WithRequestTimeout bounds the verify, status and download calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.requestTimeout = d
		}
	}
}

// WithGenerateTimeout bounds the generate call. When the deadline passes the
// request is aborted and the call fails with KindTimeout.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.generateTimeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRequestIDGenerator overrides how X-Request-ID values are produced.
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}
