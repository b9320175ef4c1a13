package siteicon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

var iconBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

type siteFixture struct {
	landingPage string
	icons       map[string]string
}

func newSiteServer(testingT *testing.T, fixture siteFixture) *httptest.Server {
	testingT.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/" && fixture.landingPage != "" {
			writer.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = writer.Write([]byte(fixture.landingPage))
			return
		}
		if contentType, found := fixture.icons[request.URL.Path]; found {
			writer.Header().Set("Content-Type", contentType)
			_, _ = writer.Write(iconBytes)
			return
		}
		http.NotFound(writer, request)
	}))
	testingT.Cleanup(server.Close)
	return server
}

func TestResolverFindsIcons(t *testing.T) {
	testCases := []struct {
		name         string
		fixture      siteFixture
		expectedPath string
	}{
		{
			name: "declared icon",
			fixture: siteFixture{
				landingPage: `<html><head><link rel="stylesheet" href="/site.css"><link rel="shortcut icon" href="/static/brand.png"></head></html>`,
				icons:       map[string]string{"/static/brand.png": "image/png", "/favicon.ico": "image/x-icon"},
			},
			expectedPath: "/static/brand.png",
		},
		{
			name: "broken declared icon falls back",
			fixture: siteFixture{
				landingPage: `<html><head><link rel="icon" href="/missing.png"></head></html>`,
				icons:       map[string]string{"/favicon.ico": "image/x-icon"},
			},
			expectedPath: "/favicon.ico",
		},
		{
			name: "html served as icon is ignored",
			fixture: siteFixture{
				landingPage: `<html><head><link rel="icon" href="/"></head></html>`,
			},
		},
		{
			name:    "no icon at all",
			fixture: siteFixture{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			server := newSiteServer(testingT, testCase.fixture)
			resolver := NewResolver(server.Client(), nil)

			iconURL, err := resolver.Resolve(context.Background(), server.URL+"/")
			require.NoError(testingT, err)
			if testCase.expectedPath == "" {
				require.Empty(testingT, iconURL)
				return
			}
			require.Equal(testingT, server.URL+testCase.expectedPath, iconURL)
		})
	}
}

func TestResolverRejectsInvalidWebsite(t *testing.T) {
	resolver := NewResolver(nil, nil)

	iconURL, err := resolver.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, iconURL)

	_, err = resolver.Resolve(context.Background(), "ftp://example.com")
	require.True(t, errors.Is(err, ErrInvalidWebsite))
}

func TestIconLinksSkipsNonIconRelations(t *testing.T) {
	server := newSiteServer(t, siteFixture{
		landingPage: `<link rel="preload" href="/font.woff"><link rel="apple-touch-icon" href="touch.png"><link rel="icon" href="data:image/png;base64,AAAA">`,
	})
	resolver := NewResolver(server.Client(), nil)

	pageURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	icons := resolver.declaredIcons(context.Background(), pageURL)
	require.Equal(t, []string{server.URL + "/touch.png"}, icons)
}
