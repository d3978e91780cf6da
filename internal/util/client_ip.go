package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP from the connection peer address. The
// service sits behind its own TLS terminator in every deployment, so
// forwarded headers are not trusted here.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String()
	}
	return host
}
