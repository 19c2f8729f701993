// Package api talks to the content API that owns users and todos.
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
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 4 << 20

// Options configure a Client.
type Options struct {
	BaseURL string        // e.g. http://localhost:1337/api
	Timeout time.Duration // per request; 0 means no timeout
	// AcceptAny2xx treats every 2xx as success. By default only 200 is,
	// which is what the API returns for all calls this client makes.
	AcceptAny2xx bool
	Logger       *log.Logger
	HTTPClient   *http.Client // base client; nil uses a fresh one
}

// Client is a preconfigured request sender. It holds no state beyond its
// configuration and is safe for concurrent use.
type Client struct {
	base         *url.URL
	http         *http.Client
	acceptAny2xx bool
	logger       *log.Logger
}

// New returns an unauthenticated client (enough for login and register).
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url: unsupported scheme %q", u.Scheme)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Timeout > 0 {
		c := *hc
		c.Timeout = opts.Timeout
		hc = &c
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{base: u, http: hc, acceptAny2xx: opts.AcceptAny2xx, logger: logger}, nil
}

// WithToken returns a copy of c that sends "Authorization: Bearer <token>"
// on every request.
func (c *Client) WithToken(token string) *Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	hc.Timeout = c.http.Timeout

	cp := *c
	cp.http = hc
	return &cp
}

func (c *Client) success(code int) bool {
	if c.acceptAny2xx {
		return code >= 200 && code < 300
	}
	return code == http.StatusOK
}

// do sends one request and returns the raw response body on success.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, path, err)
	}
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "elapsed", time.Since(start))

	if !c.success(resp.StatusCode) {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			se.Message = eb.Error.Message
		}
		return nil, se
	}
	return raw, nil
}
