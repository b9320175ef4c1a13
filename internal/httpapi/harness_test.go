package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/session"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/ingest"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/lifecycle"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/media"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/projects"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/publicpage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/testutil"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/widget"
)

const (
	testSessionSecret = "12345678901234567890123456789012"
	testOwnerEmail    = "Owner@Example.com"
	testOwnerName     = "Owner Example"
	testMediaBaseURL  = "https://media.example.com"
)

type apiHarness struct {
	database    *gorm.DB
	router      *gin.Engine
	service     *projects.Service
	broadcaster *events.Broadcaster
	mediaStore  *media.MemoryStore
	ownerCookie *http.Cookie
}

func newAPIHarness(testingT *testing.T) *apiHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)
	session.NewSession([]byte(testSessionSecret))

	database := testutil.NewMigratedDatabase(testingT)
	broadcaster := events.NewBroadcaster()
	testingT.Cleanup(broadcaster.Close)
	mediaStore := media.NewMemoryStore(testMediaBaseURL)

	widgetController := widget.NewController(database, nil, nil)
	engine := lifecycle.NewEngine(database, nil, broadcaster, widgetController)
	service := projects.NewService(database, engine, widgetController, broadcaster, mediaStore, nil)
	ingestor := ingest.NewIngestor(database, slug.NewAllocator(), broadcaster, nil)

	publicHandlers := NewPublicHandlers(widgetController, publicpage.NewReader(database, nil), ingestor, mediaStore, nil)
	ownerHandlers := NewOwnerHandlers(service, broadcaster, nil)
	authManager := NewAuthManager(nil, nil)

	router := gin.New()
	publicGroup := router.Group("/api")
	publicGroup.GET("/widget-config", publicHandlers.WidgetConfig)
	publicGroup.GET("/public/projects/:slug", publicHandlers.ProjectPage)
	publicGroup.GET("/public/projects/:slug/groups/:groupSlug", publicHandlers.GroupPage)
	publicGroup.GET("/public/projects/:slug/testimonials/:id", publicHandlers.Testimonial)
	publicGroup.POST("/forms/:id/submissions", publicHandlers.CreateSubmission)

	ownerGroup := router.Group("/api")
	ownerGroup.Use(authManager.RequireOwner())
	ownerGroup.GET("/me", ownerHandlers.CurrentUser)
	ownerGroup.GET("/events", ownerHandlers.StreamEvents)
	ownerGroup.GET("/project", ownerHandlers.GetProject)
	ownerGroup.POST("/project", ownerHandlers.CreateProject)
	ownerGroup.PATCH("/project", ownerHandlers.UpdateProject)
	ownerGroup.GET("/project/stats", ownerHandlers.ProjectStats)
	ownerGroup.GET("/testimonials", ownerHandlers.ListTestimonials)
	ownerGroup.POST("/testimonials", ownerHandlers.CreateTestimonial)
	ownerGroup.PATCH("/testimonials/:id", ownerHandlers.UpdateTestimonial)
	ownerGroup.DELETE("/testimonials/:id", ownerHandlers.DeleteTestimonial)
	ownerGroup.POST("/testimonials/status", ownerHandlers.SetTestimonialStatuses)
	ownerGroup.POST("/testimonials/:id/status", ownerHandlers.SetTestimonialStatus)
	ownerGroup.POST("/testimonials/:id/image", ownerHandlers.UploadTestimonialImage)
	ownerGroup.GET("/groups", ownerHandlers.ListGroups)
	ownerGroup.POST("/groups", ownerHandlers.CreateGroup)
	ownerGroup.PATCH("/groups/:id", ownerHandlers.UpdateGroup)
	ownerGroup.DELETE("/groups/:id", ownerHandlers.DeleteGroup)
	ownerGroup.GET("/forms", ownerHandlers.ListForms)
	ownerGroup.POST("/forms", ownerHandlers.CreateForm)
	ownerGroup.PATCH("/forms/:id", ownerHandlers.UpdateForm)
	ownerGroup.GET("/forms/:id/submissions", ownerHandlers.ListSubmissions)

	return &apiHarness{
		database:    database,
		router:      router,
		service:     service,
		broadcaster: broadcaster,
		mediaStore:  mediaStore,
		ownerCookie: createAuthenticatedSessionCookie(testingT, testOwnerEmail, testOwnerName),
	}
}

func createAuthenticatedSessionCookie(testingT *testing.T, email string, name string) *http.Cookie {
	testingT.Helper()

	store := session.Store()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()

	sessionInstance, err := store.Get(request, constants.SessionName)
	require.NoError(testingT, err)

	sessionInstance.Values[constants.SessionKeyUserEmail] = email
	sessionInstance.Values[constants.SessionKeyUserName] = name
	sessionInstance.Values[constants.SessionKeyUserPicture] = ""

	require.NoError(testingT, sessionInstance.Save(request, recorder))

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.SessionName {
			return cookie
		}
	}
	require.FailNow(testingT, "session cookie not found in recorder")
	return nil
}

// createProject onboards the harness owner with a public project.
func (harness *apiHarness) createProject(testingT *testing.T) model.Project {
	testingT.Helper()
	ctx := context.Background()
	project, err := harness.service.CreateProject(ctx, testOwnerEmail, projects.ProjectInput{
		Name:       "Acme",
		WebsiteURL: "https://acme.example.com",
	})
	require.NoError(testingT, err)
	isPublic := true
	project, err = harness.service.UpdateSettings(ctx, testOwnerEmail, projects.SettingsUpdate{IsPublic: &isPublic})
	require.NoError(testingT, err)
	return project
}

func (harness *apiHarness) createApprovedTestimonial(testingT *testing.T, name string, tags []string) model.Testimonial {
	testingT.Helper()
	ctx := context.Background()
	testimonial, err := harness.service.CreateTestimonial(ctx, testOwnerEmail, projects.TestimonialInput{
		CustomerName:  name,
		CustomerEmail: "customer@example.com",
		Content:       "Great product from " + name,
		IsPublic:      true,
		Tags:          tags,
	})
	require.NoError(testingT, err)
	approved, err := harness.service.SetStatus(ctx, testOwnerEmail, testimonial.ID, string(model.StatusApproved))
	require.NoError(testingT, err)
	return approved
}

func (harness *apiHarness) performJSON(method string, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

type multipartFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func (harness *apiHarness) performMultipart(testingT *testing.T, path string, values map[string]string, files []multipartFile, cookie *http.Cookie) *httptest.ResponseRecorder {
	testingT.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range values {
		require.NoError(testingT, writer.WriteField(key, value))
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		require.NoError(testingT, err)
		_, err = part.Write(file.data)
		require.NoError(testingT, err)
	}
	require.NoError(testingT, writer.Close())

	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(testingT *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testingT.Helper()
	var payload map[string]any
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &payload), recorder.Body.String())
	return payload
}

func requireErrorCode(testingT *testing.T, recorder *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	testingT.Helper()
	require.Equal(testingT, expectedStatus, recorder.Code, recorder.Body.String())
	require.Equal(testingT, expectedCode, decodeBody(testingT, recorder)[jsonKeyError])
}
