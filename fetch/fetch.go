// Package fetch loads spec documents over HTTP. It guards against SSRF
// (URL validation, private-IP blocking on dial and redirect, response size
// caps) and converts HTML pages to markdown so the spec parser can treat
// remote pages like local documents.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/spectrace/spec"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "spectrace/1.0"
	defaultMaxSize   = 8 << 20 // 8MB
	maxRedirects     = 5
)

// Client fetches spec documents with security checks. It implements
// spec.RemoteLoader.
type Client struct {
	client        *http.Client
	userAgent     string
	maxSize       int64
	allowLoopback bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithMaxSize caps the response body size in bytes.
func WithMaxSize(n int64) Option {
	return func(c *Client) { c.maxSize = n }
}

// AllowLoopback permits plain-HTTP and loopback URLs. Intended for local
// spec servers and tests; remote sources keep the default HTTPS-only policy.
func AllowLoopback() Option {
	return func(c *Client) { c.allowLoopback = true }
}

// NewClient creates a fetch client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: defaultUserAgent,
		maxSize:   defaultMaxSize,
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	// Validate resolved IPs at dial time to prevent DNS rebinding.
	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if !c.allowLoopback && isPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	c.client = &http.Client{
		Transport: &http.Transport{
			DialContext:         safeDialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: defaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			if err := ValidateURL(req.URL.String(), c.allowLoopback); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDocument retrieves a spec document and classifies it for the loader:
// JSON manifests pass through untouched, HTML pages are converted to
// markdown, everything else is treated as plain text.
func (c *Client) FetchDocument(ctx context.Context, urlStr string) ([]byte, spec.DocKind, error) {
	if err := ValidateURL(urlStr, c.allowLoopback); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json,text/markdown,text/html;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: HTTP %d", urlStr, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read response from %s: %w", urlStr, err)
	}
	if int64(len(body)) > c.maxSize {
		return nil, "", fmt.Errorf("response from %s exceeds %d bytes", urlStr, c.maxSize)
	}

	mediaType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(mediaType, "application/json") || strings.HasSuffix(req.URL.Path, ".json"):
		return body, spec.KindJSON, nil
	case strings.Contains(mediaType, "text/html"):
		converted, err := NewConverter().Convert(body, urlStr)
		if err != nil {
			return nil, "", fmt.Errorf("convert %s: %w", urlStr, err)
		}
		return []byte(converted.Markdown), spec.KindText, nil
	default:
		return body, spec.KindText, nil
	}
}
