// Package webcheck fetches scholarship pages: a reachability probe for links
// and the visible text of a page for deadline extraction.
package webcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultFetchTimeout = 12 * time.Second
	defaultUserAgent    = "collegeai/1.0"
	maxBodyBytes        = 2 << 20
)

// Client performs bounded GET requests with a fixed User-Agent. Redirects
// are followed.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	probeTimeout time.Duration
	fetchTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeouts sets the probe and page-fetch timeouts. Zero keeps the default.
func WithTimeouts(probe, fetch time.Duration) Option {
	return func(c *Client) {
		if probe > 0 {
			c.probeTimeout = probe
		}
		if fetch > 0 {
			c.fetchTimeout = fetch
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		userAgent:    defaultUserAgent,
		probeTimeout: defaultProbeTimeout,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsWebURL reports whether raw is an absolute http or https URL with a host.
func IsWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// StatusError is returned when the server answered with status >= 400.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	if !IsWebURL(rawURL) {
		return nil, nil, fmt.Errorf("not an http(s) URL: %q", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		cancel()
		return nil, nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	return resp, cancel, nil
}

// Probe reports whether rawURL is reachable: nil when a GET completes with a
// status below 400 within the probe timeout.
func (c *Client) Probe(ctx context.Context, rawURL string) error {
	resp, cancel, err := c.get(ctx, rawURL, c.probeTimeout)
	if err != nil {
		return err
	}
	defer cancel()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	return nil
}

// FetchText returns the visible text of the page at rawURL with script,
// style and noscript content removed and whitespace collapsed to single
// spaces. Plain-text responses are returned collapsed as-is.
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	resp, cancel, err := c.get(ctx, rawURL, c.fetchTimeout)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		return collapse(string(body)), nil
	}
	return VisibleText(string(body))
}

// VisibleText extracts the text a browser would render from an HTML document.
func VisibleText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var sb strings.Builder
	extractText(root, &sb)
	return collapse(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
