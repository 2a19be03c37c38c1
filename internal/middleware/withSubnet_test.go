package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithSubnet(t *testing.T) {
	tests := []struct {
		name       string
		subnet     string
		realIP     string
		remoteAddr string
		want       int
	}{
		{"empty subnet allows all", "", "", "8.8.8.8:1234", http.StatusOK},
		{"real ip inside", "192.168.1.0/24", "192.168.1.42", "10.0.0.1:1234", http.StatusOK},
		{"real ip outside", "192.168.1.0/24", "192.168.2.1", "192.168.1.5:1234", http.StatusForbidden},
		{"remote addr inside", "10.0.0.0/8", "", "10.1.2.3:5555", http.StatusOK},
		{"remote addr outside", "10.0.0.0/8", "", "172.16.0.1:5555", http.StatusForbidden},
		{"garbage real ip", "10.0.0.0/8", "not-an-ip", "10.1.2.3:5555", http.StatusForbidden},
		{"bad cidr denies", "10.0.0.0/99", "10.1.2.3", "10.1.2.3:5555", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			rec := httptest.NewRecorder()

			WithSubnet(tt.subnet)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
