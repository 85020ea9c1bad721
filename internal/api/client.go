package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// TokenSource supplies the bearer credential for each call. The Local Store
// implements it.
type TokenSource interface {
	JWT() string
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	PluginID     int
	Version      string
	Token        TokenSource
	Clock        quartz.Clock
	Logger       zerolog.Logger
}

// Client talks to the telemetry backend. Every call is bounded by the
// configured timeout.
type Client struct {
	baseURL  *url.URL
	http     *retryablehttp.Client
	timeout  time.Duration
	pluginID int
	version  string
	hostname string
	token    TokenSource
	clock    quartz.Clock
	log      zerolog.Logger
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = leveledLogger{log: opts.Logger}
	// Hand the final response back so status codes can be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	hostname, _ := os.Hostname()

	return &Client{
		baseURL:  base,
		http:     rc,
		timeout:  opts.Timeout,
		pluginID: opts.PluginID,
		version:  opts.Version,
		hostname: hostname,
		token:    opts.Token,
		clock:    opts.Clock,
		log:      opts.Logger,
	}, nil
}

// do performs one call and decodes a JSON response into out when out is
// non-nil. Transport failures wrap ErrUnreachable; 401 and 403 wrap
// ErrUnauthenticated.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), raw)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if jwt := c.token.JWT(); jwt != "" {
			req.Header.Set("Authorization", jwt)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Err(err).Msg("backend call failed")
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: read body: %v", ErrUnreachable, err)}
	}

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &TransportError{Op: op, Status: resp.StatusCode, Err: ErrUnauthenticated}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", snippet(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
