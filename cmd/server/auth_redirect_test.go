package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/gauss"
	"github.com/temirov/GAuss/pkg/session"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/auth"
)

const (
	testGoogleClientID     = "test-client-id"
	testGoogleClientSecret = "test-client-secret"
	testSessionSecret      = "12345678901234567890123456789012"
	testConfiguredBaseURL  = "http://testimonials.mprlab.com"
)

func TestGoogleSignInRedirectFollowsProxiedHost(t *testing.T) {
	gin.SetMode(gin.TestMode)
	session.NewSession([]byte(testSessionSecret))

	oauthHandlers, handlersErr := auth.NewHandlers(auth.Config{
		GoogleClientID:     testGoogleClientID,
		GoogleClientSecret: testGoogleClientSecret,
		PublicBaseURL:      testConfiguredBaseURL,
		RedirectPath:       dashboardRoute,
		Scopes:             gauss.ScopeStrings(gauss.DefaultScopes),
	})
	require.NoError(t, handlersErr)
	router := gin.New()
	oauthHandlers.Register(router)

	testCases := []struct {
		name             string
		headers          map[string]string
		expectedCallback string
	}{
		{
			name:             "direct request keeps configured scheme",
			expectedCallback: testConfiguredBaseURL + constants.CallbackPath,
		},
		{
			name:             "x-forwarded-proto upgrades to https",
			headers:          map[string]string{"X-Forwarded-Proto": "https"},
			expectedCallback: "https://testimonials.mprlab.com" + constants.CallbackPath,
		},
		{
			name:             "forwarded header supplies host and scheme",
			headers:          map[string]string{"Forwarded": "for=10.0.0.1;proto=https;host=reviews.example.org"},
			expectedCallback: "https://reviews.example.org" + constants.CallbackPath,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			request := httptest.NewRequest(http.MethodGet, constants.GoogleAuthPath, nil)
			request.Host = "testimonials.mprlab.com"
			for name, value := range testCase.headers {
				request.Header.Set(name, value)
			}
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, request)
			require.Equal(testingT, http.StatusFound, recorder.Code)

			redirectURL, parseErr := url.Parse(recorder.Header().Get("Location"))
			require.NoError(testingT, parseErr)
			require.Equal(testingT, testGoogleClientID, redirectURL.Query().Get("client_id"))
			require.Equal(testingT, testCase.expectedCallback, redirectURL.Query().Get("redirect_uri"))
		})
	}
}
