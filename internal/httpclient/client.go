// Package httpclient provides the HTTP client factory used for remote API calls.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout is used when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Options configures an HTTP client.
type Options struct {
	Timeout time.Duration
}

// Option is a functional option for configuring HTTP clients.
type Option func(*Options)

// WithTimeout sets the client timeout. A zero duration keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// New creates a new HTTP client with the given options.
// If no timeout is specified, DefaultTimeout is used.
func New(opts ...Option) *http.Client {
	cfg := &Options{
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &http.Client{
		Timeout: cfg.Timeout,
	}
}
