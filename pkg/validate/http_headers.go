package validate

import (
	"net"
	"net/url"
	"strings"
)

// header values are only logged, so they are sanitized rather than rejected.

const (
	MaxPathLength      = 500
	MaxUserAgentLength = 300
)

// stripControl drops control characters, which could otherwise be used for log injection.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// SanitizeMethod truncates the method; unknown methods are logged as sent.
func SanitizeMethod(method string) string {
	if len(method) > 10 {
		method = method[:10] + "..."
	}
	return stripControl(method)
}

// SanitizePath truncates, unescapes and strips control characters from a request path.
func SanitizePath(path string) string {

	if len(path) > MaxPathLength {
		path = path[:MaxPathLength] + "..."
	}

	// decode url to see actual content
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	return stripControl(path)
}

// SanitizeIp returns the host part of an ip or ip:port, or "invalid".
func SanitizeIp(ip string) string {

	if len(ip) > 45 { // max ipv6 length is 39, plus some buffer
		ip = ip[:45]
	}

	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	if net.ParseIP(ip) == nil {
		return "invalid"
	}

	return ip
}

func SanitizeUserAgent(userAgent string) string {
	if len(userAgent) > MaxUserAgentLength {
		userAgent = userAgent[:MaxUserAgentLength] + "..."
	}
	return stripControl(userAgent)
}
