// Package siteicon discovers the icon a project's website advertises so public pages and widgets
// can show it next to the project name.
package siteicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMaxIconBytes   = 128 * 1024
	defaultMaxHTMLBytes   = 512 * 1024
	fallbackIconPath      = "/favicon.ico"
)

// ErrInvalidWebsite is returned for URLs without an http(s) scheme and host.
var ErrInvalidWebsite = errors.New("siteicon: invalid website url")

// Resolver fetches a website's landing page, follows its declared icon links and falls back to
// /favicon.ico.
type Resolver struct {
	httpClient   *http.Client
	logger       *zap.Logger
	maxIconBytes int64
	maxHTMLBytes int64
}

func NewResolver(httpClient *http.Client, logger *zap.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		httpClient:   httpClient,
		logger:       logger,
		maxIconBytes: defaultMaxIconBytes,
		maxHTMLBytes: defaultMaxHTMLBytes,
	}
}

// Resolve returns the absolute URL of a reachable icon, or an empty string when the site offers none.
func (resolver *Resolver) Resolve(ctx context.Context, websiteURL string) (string, error) {
	trimmed := strings.TrimSpace(websiteURL)
	if trimmed == "" {
		return "", nil
	}
	pageURL, parseErr := url.Parse(trimmed)
	if parseErr != nil || pageURL.Host == "" || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("%w: %s", ErrInvalidWebsite, trimmed)
	}
	pageURL.Fragment = ""

	for _, candidate := range resolver.declaredIcons(ctx, pageURL) {
		if resolver.isIcon(ctx, candidate) {
			return candidate, nil
		}
	}
	fallback := pageURL.ResolveReference(&url.URL{Path: fallbackIconPath}).String()
	if resolver.isIcon(ctx, fallback) {
		return fallback, nil
	}
	return "", nil
}

// declaredIcons lists absolute icon URLs from <link rel="...icon..."> elements, in document order.
func (resolver *Resolver) declaredIcons(ctx context.Context, pageURL *url.URL) []string {
	response, err := resolver.get(ctx, pageURL.String())
	if err != nil {
		resolver.logger.Debug("site_icon_page_failed", zap.String("website_url", pageURL.String()), zap.Error(err))
		return nil
	}
	defer response.Body.Close()
	if response.StatusCode >= http.StatusBadRequest {
		return nil
	}
	document, parseErr := html.Parse(io.LimitReader(response.Body, resolver.maxHTMLBytes))
	if parseErr != nil {
		return nil
	}

	var icons []string
	for _, href := range iconLinks(document) {
		if strings.HasPrefix(strings.ToLower(href), "data:") {
			continue
		}
		reference, referenceErr := url.Parse(href)
		if referenceErr != nil {
			continue
		}
		icons = append(icons, pageURL.ResolveReference(reference).String())
	}
	return icons
}

func (resolver *Resolver) isIcon(ctx context.Context, iconURL string) bool {
	response, err := resolver.get(ctx, iconURL)
	if err != nil {
		resolver.logger.Debug("site_icon_fetch_failed", zap.String("icon_url", iconURL), zap.Error(err))
		return false
	}
	defer response.Body.Close()
	if response.StatusCode >= http.StatusBadRequest {
		return false
	}
	data, readErr := io.ReadAll(io.LimitReader(response.Body, resolver.maxIconBytes+1))
	if readErr != nil || len(data) == 0 || int64(len(data)) > resolver.maxIconBytes {
		return false
	}
	return isImageContentType(response.Header.Get("Content-Type"))
}

func (resolver *Resolver) get(ctx context.Context, target string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return resolver.httpClient.Do(request)
}

func isImageContentType(contentType string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case normalized == "":
		return true
	case strings.HasPrefix(normalized, "image/"):
		return true
	case strings.HasPrefix(normalized, "application/octet-stream"):
		return true
	default:
		return strings.Contains(normalized, "icon")
	}
}

func iconLinks(node *html.Node) []string {
	var hrefs []string
	var visit func(*html.Node)
	visit = func(current *html.Node) {
		if current.Type == html.ElementNode && strings.EqualFold(current.Data, "link") {
			var rel, href string
			for _, attribute := range current.Attr {
				switch strings.ToLower(attribute.Key) {
				case "rel":
					rel = strings.ToLower(attribute.Val)
				case "href":
					href = strings.TrimSpace(attribute.Val)
				}
			}
			if href != "" && strings.Contains(rel, "icon") {
				hrefs = append(hrefs, href)
			}
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return hrefs
}
