package core

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Origin identifies a remote endpoint by scheme, host and port. It is the key
// for per-origin rate limit state.
type Origin string

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// OriginOf derives the origin of a URL. Default ports are dropped so that
// "https://example.com:443/a" and "https://example.com/b" share an origin.
func OriginOf(u *url.URL) Origin {
	if u == nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if scheme == "" || host == "" {
		return ""
	}

	port := u.Port()
	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return Origin(scheme + "://" + host)
	}

	return Origin(scheme + "://" + net.JoinHostPort(host, port))
}

// ParseOrigin parses a raw URL and returns its origin.
func ParseOrigin(raw string) (Origin, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("origin url is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid origin url: %w", err)
	}

	origin := OriginOf(parsed)
	if origin == "" {
		return "", fmt.Errorf("origin url must include scheme and host: %s", raw)
	}
	return origin, nil
}

// String implements fmt.Stringer.
func (o Origin) String() string {
	return string(o)
}
