package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
)

const (
	apiRoutePrefix         = "/api"
	publicRouteWidget      = "/widget-config"
	publicRoutePages       = "/public"
	publicRouteProjectPage = "/public/projects/:slug"
	publicRouteGroupPage   = "/public/projects/:slug/groups/:groupSlug"
	publicRouteTestimonial = "/public/projects/:slug/testimonials/:id"
	publicRouteSubmissions = "/forms/:id/submissions"
	metricsRoute           = "/metrics"

	apiRouteMe                 = "/me"
	apiRouteEvents             = "/events"
	apiRouteProject            = "/project"
	apiRouteProjectStats       = "/project/stats"
	apiRouteTestimonials       = "/testimonials"
	apiRouteTestimonial        = "/testimonials/:id"
	apiRouteTestimonialStatus  = "/testimonials/:id/status"
	apiRouteTestimonialsStatus = "/testimonials/status"
	apiRouteTestimonialImage   = "/testimonials/:id/image"
	apiRouteGroups             = "/groups"
	apiRouteGroup              = "/groups/:id"
	apiRouteForms              = "/forms"
	apiRouteForm               = "/forms/:id"
	apiRouteFormSubmissions    = "/forms/:id/submissions"

	corsOriginWildcard      = "*"
	corsHeaderAuthorization = "Authorization"
	corsHeaderContentType   = "Content-Type"
	corsRequestMethodHeader = "Access-Control-Request-Method"
	corsMaxAge              = 12 * time.Hour
	submissionsPathSuffix   = "/submissions"
	formsPathPrefix         = apiRoutePrefix + "/forms/"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

type routeDependencies struct {
	serveMode           ServeMode
	publicHandlers      *httpapi.PublicHandlers
	ownerHandlers       *httpapi.OwnerHandlers
	authManager         *httpapi.AuthManager
	rateLimiter         *httpapi.RateLimiter
	authenticatedOrigin string
}

func newPublicCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsMaxAge,
	})
}

func newAuthenticatedCORS(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

func registerRoutes(router *gin.Engine, dependencies routeDependencies) {
	publicCORS := newPublicCORS()
	authenticatedCORS := publicCORS
	if dependencies.serveMode.servesAPI() {
		authenticatedCORS = newAuthenticatedCORS(dependencies.authenticatedOrigin)
	}
	registerAPIPreflightRoutes(router, publicCORS, authenticatedCORS)
	router.GET(metricsRoute, metrics.Handler())

	if dependencies.serveMode.servesPublic() {
		registerPublicRoutes(router, publicCORS, dependencies.publicHandlers, dependencies.rateLimiter)
	}
	if dependencies.serveMode.servesAPI() {
		registerOwnerRoutes(router, authenticatedCORS, dependencies.authManager, dependencies.ownerHandlers)
	}
}

func registerPublicRoutes(router *gin.Engine, publicCORS gin.HandlerFunc, publicHandlers *httpapi.PublicHandlers, rateLimiter *httpapi.RateLimiter) {
	publicGroup := router.Group(apiRoutePrefix)
	publicGroup.Use(publicCORS)
	publicGroup.GET(publicRouteWidget, publicHandlers.WidgetConfig)
	publicGroup.GET(publicRouteProjectPage, publicHandlers.ProjectPage)
	publicGroup.GET(publicRouteGroupPage, publicHandlers.GroupPage)
	publicGroup.GET(publicRouteTestimonial, publicHandlers.Testimonial)
	publicGroup.POST(publicRouteSubmissions, rateLimiter.Middleware(), publicHandlers.CreateSubmission)
}

func registerOwnerRoutes(router *gin.Engine, authenticatedCORS gin.HandlerFunc, authManager *httpapi.AuthManager, ownerHandlers *httpapi.OwnerHandlers) {
	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(authenticatedCORS)
	apiGroup.Use(authManager.RequireOwner())
	apiGroup.GET(apiRouteMe, ownerHandlers.CurrentUser)
	apiGroup.GET(apiRouteEvents, ownerHandlers.StreamEvents)

	apiGroup.GET(apiRouteProject, ownerHandlers.GetProject)
	apiGroup.POST(apiRouteProject, ownerHandlers.CreateProject)
	apiGroup.PATCH(apiRouteProject, ownerHandlers.UpdateProject)
	apiGroup.GET(apiRouteProjectStats, ownerHandlers.ProjectStats)

	apiGroup.GET(apiRouteTestimonials, ownerHandlers.ListTestimonials)
	apiGroup.POST(apiRouteTestimonials, ownerHandlers.CreateTestimonial)
	apiGroup.PATCH(apiRouteTestimonial, ownerHandlers.UpdateTestimonial)
	apiGroup.DELETE(apiRouteTestimonial, ownerHandlers.DeleteTestimonial)
	apiGroup.POST(apiRouteTestimonialsStatus, ownerHandlers.SetTestimonialStatuses)
	apiGroup.POST(apiRouteTestimonialStatus, ownerHandlers.SetTestimonialStatus)
	apiGroup.POST(apiRouteTestimonialImage, ownerHandlers.UploadTestimonialImage)

	apiGroup.GET(apiRouteGroups, ownerHandlers.ListGroups)
	apiGroup.POST(apiRouteGroups, ownerHandlers.CreateGroup)
	apiGroup.PATCH(apiRouteGroup, ownerHandlers.UpdateGroup)
	apiGroup.DELETE(apiRouteGroup, ownerHandlers.DeleteGroup)

	apiGroup.GET(apiRouteForms, ownerHandlers.ListForms)
	apiGroup.POST(apiRouteForms, ownerHandlers.CreateForm)
	apiGroup.PATCH(apiRouteForm, ownerHandlers.UpdateForm)
	apiGroup.GET(apiRouteFormSubmissions, ownerHandlers.ListSubmissions)
}

// registerAPIPreflightRoutes answers CORS preflights under /api with the policy of the route the
// browser is about to call.
func registerAPIPreflightRoutes(router *gin.Engine, publicCORS gin.HandlerFunc, authenticatedCORS gin.HandlerFunc) {
	router.OPTIONS(apiRoutePrefix+"/*path", func(context *gin.Context) {
		if isPublicAPIRequest(context.Request.URL.Path, context.GetHeader(corsRequestMethodHeader)) {
			publicCORS(context)
		} else {
			authenticatedCORS(context)
		}
		if !context.IsAborted() {
			context.AbortWithStatus(http.StatusNoContent)
		}
	})
}

func isPublicAPIRequest(path string, requestedMethod string) bool {
	switch {
	case path == apiRoutePrefix+publicRouteWidget:
		return true
	case strings.HasPrefix(path, apiRoutePrefix+publicRoutePages+"/"):
		return true
	case strings.HasPrefix(path, formsPathPrefix) && strings.HasSuffix(path, submissionsPathSuffix):
		return strings.EqualFold(requestedMethod, http.MethodPost)
	default:
		return false
	}
}
