// Package webtool implements the `webfetch` tool and the `websearch`
// placeholder. webfetch guards against SSRF the way
// internal/net/ssrf does in the teacher: resolve the target host, reject
// private/loopback/link-local/unspecified addresses, and only then dial.
package webtool

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/silverfisk/rants/internal/tools"
)

// ErrSSRFBlocked is returned when a webfetch target resolves to a
// disallowed address.
type ErrSSRFBlocked struct{ Reason string }

func (e *ErrSSRFBlocked) Error() string { return "blocked: " + e.Reason }

// dialerFunc lets tests swap the dial implementation; production code uses
// guardedDialContext.
var dialerFunc = guardedDialContext

// Webfetch implements the `webfetch` tool: HTTP GET with the response body
// truncated to webfetch_max_bytes and UTF-8-lossy decoded.
func Webfetch(ctx context.Context, tc *tools.Context, params map[string]any) tools.Result {
	rawURL, _ := params["url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return tools.ErrorResult("url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("invalid url: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return tools.ErrorResult("only http/https urls are allowed")
	}

	client := tc.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	transport := &http.Transport{DialContext: dialerFunc}
	guarded := &http.Client{Timeout: client.Timeout, Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("build request: %v", err))
	}

	resp, err := guarded.Do(req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("fetch failed: %v", err))
	}
	defer resp.Body.Close()

	maxBytes := tc.WebfetchMaxBytes
	if maxBytes <= 0 {
		maxBytes = 1_000_000
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("read body: %v", err))
	}

	return tools.OKResult(map[string]any{
		"status":  resp.StatusCode,
		"content": strings.ToValidUTF8(string(body), "�"),
	})
}

// Websearch is a placeholder: websearch is not configured in this gateway
// (spec.md §4.3), kept only so schemas stay stable across deployments.
func Websearch(_ context.Context, _ *tools.Context, _ map[string]any) tools.Result {
	return tools.ErrorResult("websearch not configured")
}

// guardedDialContext resolves the host, rejects disallowed addresses, then
// dials the first allowed resolved address directly (bypassing a second,
// potentially different, DNS resolution at connect time — a classic
// TOCTOU SSRF bypass).
func guardedDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &ErrSSRFBlocked{Reason: "no addresses resolved for " + host}
	}

	var allowed []net.IPAddr
	for _, ip := range ips {
		if !isBlockedIP(ip.IP) {
			allowed = append(allowed, ip)
		}
	}
	if len(allowed) == 0 {
		return nil, &ErrSSRFBlocked{Reason: "target resolves only to private/loopback/link-local addresses"}
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	var lastErr error
	for _, ip := range allowed {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast()
}
