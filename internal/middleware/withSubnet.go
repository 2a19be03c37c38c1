package middleware

import (
	"net"
	"net/http"
	"strings"
)

// WithSubnet lets through only clients whose address lies in the CIDR
// subnet. The address is taken from X-Real-IP, falling back to the
// connection's remote address. An empty subnet allows everyone; an
// unparsable one allows no one.
func WithSubnet(subnet string) func(next http.Handler) http.Handler {
	var ipNet *net.IPNet
	var parseErr error
	if subnet != "" {
		_, ipNet, parseErr = net.ParseCIDR(subnet)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subnet == "" {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if parseErr != nil || ip == nil || !ipNet.Contains(ip) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) net.IP {
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return net.ParseIP(real)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
