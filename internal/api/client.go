// Package api is the HTTP client for the sharezone backend.
//
// Every call takes a context; callers own timeouts and cancellation. The client
// never retries: a failed attempt is reported and the user decides what to do.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes is the backend's upload limit (20 MiB).
const MaxUploadBytes int64 = 20 * 1024 * 1024

// maxEnvelopeBytes bounds JSON responses; file listings carry content previews only.
const maxEnvelopeBytes = 64 << 20

// Client talks to one sharezone server. Session state lives in the cookie jar.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        logrus.FieldLogger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds each HTTP exchange. Zero means no client-level timeout; callers
	// are then expected to pass deadline-bearing contexts.
	Timeout time.Duration
	Jar     http.CookieJar
	Logger  logrus.FieldLogger

	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("api: base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       cfg.Jar,
			// Session redirects (e.g. to the login page) must surface as responses,
			// not be followed into HTML.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}, nil
}

// BaseURL returns the server root the client was configured with.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// URL resolves an API path against the server root.
func (c *Client) URL(path string) string {
	u := *c.baseURL
	u.Path = u.Path + path
	return u.String()
}

// Jar exposes the cookie jar (may be nil).
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// envelope is the common {success, message} wrapper of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, "", &TransportError{Op: method + " " + path, Err: err}
	}
	rid := uuid.NewString()
	req.Header.Set("X-Request-ID", rid)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, rid, nil
}

// doJSON performs one request and decodes the envelope into out (which may be nil).
// success:false responses become *AppError; everything that prevented a decoded
// answer becomes *TransportError.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	op := method + " " + path
	req, rid, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "request_id": rid}).WithError(err).Warn("request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	c.log.WithFields(logrus.Fields{
		"op":          op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"request_id":  rid,
	}).Debug("request done")

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		// The backend only redirects unauthenticated page loads.
		return &AppError{Op: op, Status: http.StatusUnauthorized, Message: ""}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &AppError{Op: op, Status: resp.StatusCode}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Success {
		return &AppError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: method + " " + path, Err: err}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.doJSON(ctx, method, path, body, contentType, out)
}

// Stream is a raw (non-JSON) response body from a content endpoint.
type Stream struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	// Size is -1 when the server did not announce a length.
	Size int64
}

func (c *Client) stream(ctx context.Context, path string) (*Stream, error) {
	op := http.MethodGet + " " + path
	req, rid, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "request_id": rid}).WithError(err).Warn("request failed")
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var env envelope
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = json.Unmarshal(data, &env)
		status := resp.StatusCode
		if status >= 300 && status < 400 {
			status = http.StatusUnauthorized
		}
		return nil, &AppError{Op: op, Status: status, Message: env.Message}
	}

	s := &Stream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			s.Filename = params["filename"]
		}
	}
	return s, nil
}

func idPath(prefix string, id int64, suffix string) string {
	return prefix + "/" + strconv.FormatInt(id, 10) + suffix
}
