package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "2001:db8::1"})
	require.NoError(t, err)
	assert.Len(t, tp.nets, 3)

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		proxies *TrustedProxies
		remote  string
		headers map[string]string
		want    string
	}{
		{"no proxies ignores forwarded", nil, "203.0.113.7:1234", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"no proxies ignores real ip", nil, "203.0.113.7:1234", map[string]string{"X-Real-IP": "198.51.100.1"}, "203.0.113.7"},
		{"untrusted peer", proxies, "203.0.113.7:1234", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"trusted peer", proxies, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"right-most untrusted hop", proxies, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"every hop trusted", proxies, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.3"},
		{"garbage hop stops the walk", proxies, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.1, junk, 10.0.0.2"}, "10.0.0.2"},
		{"real ip behind proxy", proxies, "10.0.0.1:1234", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"invalid real ip", proxies, "10.0.0.1:1234", map[string]string{"X-Real-IP": "somewhere"}, "10.0.0.1"},
		{"remote addr without port", nil, "192.0.2.1", nil, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}

func TestTrustedProxies_ClientIPFitsColumn(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "0000:0000:0000:0000:0000:ffff:198.51.100.1")

	ip := proxies.ClientIP(req)
	assert.LessOrEqual(t, len(ip), 46)
	assert.Equal(t, "198.51.100.1", ip)
}
