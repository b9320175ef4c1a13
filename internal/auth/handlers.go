// Package auth mounts the GAuss Google sign-in flow on the gin router.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/gauss"
	"go.uber.org/zap"
)

const (
	headerForwarded        = "Forwarded"
	headerXForwardedProto  = "X-Forwarded-Proto"
	headerXForwardedHost   = "X-Forwarded-Host"
	headerXForwardedPort   = "X-Forwarded-Port"
	forwardedProtoKey      = "proto"
	forwardedHostKey       = "host"
	schemeHTTPS            = "https"
	logEventResolveOAuth   = "resolve_oauth_handlers"
	errorMessageParseBase  = "auth: parse public base url"
	errorMessageNewService = "auth: create oauth service"
	errorMessageNewHandler = "auth: create oauth handlers"
)

var errEmptyHost = errors.New("auth: request carries no host")

// Config captures the OAuth client and where owners land after signing in.
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	PublicBaseURL      string
	RedirectPath       string
	Scopes             []string
	Logger             *zap.Logger
}

// Handlers serves the sign-in flow. The OAuth callback URL follows the host the owner used, so
// one deployment answers on several proxied hostnames.
type Handlers struct {
	configuration Config
	baseURL       *url.URL
	loginMux      *http.ServeMux
	defaults      *gauss.Handlers
	mutex         sync.RWMutex
	byBaseURL     map[string]*gauss.Handlers
	logger        *zap.Logger
}

func NewHandlers(configuration Config) (*Handlers, error) {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL, parseErr := url.Parse(strings.TrimSpace(configuration.PublicBaseURL))
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageParseBase, parseErr)
	}
	defaults, defaultsErr := newGaussHandlers(configuration, baseURL.String())
	if defaultsErr != nil {
		return nil, defaultsErr
	}
	loginMux := http.NewServeMux()
	defaults.RegisterRoutes(loginMux)

	return &Handlers{
		configuration: configuration,
		baseURL:       baseURL,
		loginMux:      loginMux,
		defaults:      defaults,
		byBaseURL:     map[string]*gauss.Handlers{baseURL.String(): defaults},
		logger:        logger,
	}, nil
}

// Register mounts login, Google redirect, callback and logout on router.
func (handlers *Handlers) Register(router gin.IRoutes) {
	router.GET(constants.LoginPath, gin.WrapH(handlers.loginMux))
	router.GET(constants.GoogleAuthPath, handlers.forRequest(func(resolved *gauss.Handlers) http.HandlerFunc { return resolved.Login }))
	router.GET(constants.CallbackPath, handlers.forRequest(func(resolved *gauss.Handlers) http.HandlerFunc { return resolved.Callback }))
	router.GET(constants.LogoutPath, gin.WrapF(handlers.defaults.Logout))
}

func (handlers *Handlers) forRequest(selectHandler func(*gauss.Handlers) http.HandlerFunc) gin.HandlerFunc {
	return func(context *gin.Context) {
		resolved, err := handlers.handlersFor(context.Request)
		if err != nil {
			handlers.logger.Warn(logEventResolveOAuth, zap.Error(err))
			context.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		selectHandler(resolved)(context.Writer, context.Request)
	}
}

func (handlers *Handlers) handlersFor(request *http.Request) (*gauss.Handlers, error) {
	baseURL, baseErr := RequestBaseURL(request, handlers.baseURL)
	if baseErr != nil {
		return nil, baseErr
	}

	handlers.mutex.RLock()
	cached := handlers.byBaseURL[baseURL]
	handlers.mutex.RUnlock()
	if cached != nil {
		return cached, nil
	}

	handlers.mutex.Lock()
	defer handlers.mutex.Unlock()
	if cached = handlers.byBaseURL[baseURL]; cached != nil {
		return cached, nil
	}
	created, createErr := newGaussHandlers(handlers.configuration, baseURL)
	if createErr != nil {
		return nil, createErr
	}
	handlers.byBaseURL[baseURL] = created
	return created, nil
}

func newGaussHandlers(configuration Config, baseURL string) (*gauss.Handlers, error) {
	service, serviceErr := gauss.NewService(
		configuration.GoogleClientID,
		configuration.GoogleClientSecret,
		baseURL,
		configuration.RedirectPath,
		configuration.Scopes,
		"",
	)
	if serviceErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageNewService, serviceErr)
	}
	created, handlersErr := gauss.NewHandlers(service)
	if handlersErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageNewHandler, handlersErr)
	}
	return created, nil
}

// RequestBaseURL rebuilds the external base URL of request from proxy headers, falling back to the
// request itself and then to configured. The path of configured is kept.
func RequestBaseURL(request *http.Request, configured *url.URL) (string, error) {
	scheme := strings.ToLower(firstNonEmpty(
		forwardedDirective(request.Header.Get(headerForwarded), forwardedProtoKey),
		firstListValue(request.Header.Get(headerXForwardedProto)),
		tlsScheme(request),
		configured.Scheme,
		schemeHTTPS,
	))
	host := firstNonEmpty(
		forwardedDirective(request.Header.Get(headerForwarded), forwardedHostKey),
		firstListValue(request.Header.Get(headerXForwardedHost)),
		request.Host,
		configured.Host,
	)
	if host == "" {
		return "", errEmptyHost
	}
	if port := firstListValue(request.Header.Get(headerXForwardedPort)); port != "" && !strings.Contains(host, ":") {
		host = host + ":" + port
	}

	resolved := *configured
	resolved.Scheme = scheme
	resolved.Host = host
	return resolved.String(), nil
}

func tlsScheme(request *http.Request) string {
	if request.TLS != nil {
		return schemeHTTPS
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func firstListValue(headerValue string) string {
	for _, item := range strings.Split(headerValue, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// forwardedDirective reads key from the first element of an RFC 7239 Forwarded header.
func forwardedDirective(headerValue string, key string) string {
	for _, element := range strings.Split(headerValue, ",") {
		for _, pair := range strings.Split(element, ";") {
			name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(name), key) {
				continue
			}
			if trimmed := strings.Trim(strings.TrimSpace(value), "\""); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
