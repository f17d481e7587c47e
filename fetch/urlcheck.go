package fetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL validates a spec source URL for security (SSRF prevention).
// It requires HTTPS and blocks localhost, private IPs, and local domains,
// unless the client was built with AllowLoopback.
func ValidateURL(rawURL string, allowLoopback bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if allowLoopback {
		if parsed.Scheme != "https" && parsed.Scheme != "http" {
			return fmt.Errorf("only HTTP(S) URLs are allowed")
		}
		return nil
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := parsed.Hostname()
	lowHost := strings.ToLower(host)
	if lowHost == "localhost" || lowHost == "127.0.0.1" || lowHost == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(lowHost, ".local") || strings.HasSuffix(lowHost, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

// isPrivateIP reports whether ip falls in a private, loopback, link-local,
// or otherwise non-routable range.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
