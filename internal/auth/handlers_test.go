package auth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestBaseURLPrefersProxyHeaders(t *testing.T) {
	configured, err := url.Parse("http://testimonials.example.com")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		host     string
		headers  map[string]string
		useTLS   bool
		expected string
	}{
		{
			name:     "request host",
			host:     "app.example.com",
			expected: "http://app.example.com",
		},
		{
			name:     "forwarded header",
			host:     "internal:8080",
			headers:  map[string]string{"Forwarded": `for=10.0.0.1;proto=https;host="edge.example.com"`},
			expected: "https://edge.example.com",
		},
		{
			name:     "x-forwarded headers with port",
			host:     "internal",
			headers:  map[string]string{"X-Forwarded-Proto": "https, http", "X-Forwarded-Host": "edge.example.com", "X-Forwarded-Port": "8443"},
			expected: "https://edge.example.com:8443",
		},
		{
			name:     "tls request",
			host:     "secure.example.com",
			useTLS:   true,
			expected: "https://secure.example.com",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
			request.Host = testCase.host
			for name, value := range testCase.headers {
				request.Header.Set(name, value)
			}
			if testCase.useTLS {
				request.TLS = &tls.ConnectionState{}
			} else {
				request.TLS = nil
			}
			baseURL, resolveErr := RequestBaseURL(request, configured)
			require.NoError(testingT, resolveErr)
			require.Equal(testingT, testCase.expected, baseURL)
		})
	}
}

func TestRequestBaseURLFallsBackToConfiguredHost(t *testing.T) {
	configured, err := url.Parse("https://testimonials.example.com")
	require.NoError(t, err)
	request := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	request.Host = ""

	baseURL, resolveErr := RequestBaseURL(request, configured)
	require.NoError(t, resolveErr)
	require.Equal(t, "https://testimonials.example.com", baseURL)
}

func TestForwardedDirectiveIgnoresUnknownKeys(t *testing.T) {
	require.Equal(t, "", forwardedDirective("for=1.2.3.4;by=proxy", forwardedHostKey))
	require.Equal(t, "HTTPS", forwardedDirective("Proto=HTTPS", forwardedProtoKey))
}
