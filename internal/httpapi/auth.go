package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/session"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

const contextKeyCurrentUser = "httpapi_current_user"

// CurrentUser is the signed in owner as recorded in the session by the OAuth callback.
type CurrentUser struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl"`
}

// OwnerID is the identity projects are keyed by.
func (user CurrentUser) OwnerID() string {
	return model.NormalizeOwnerID(user.Email)
}

// AuthManager resolves the owner behind a request from the sign-in session cookie.
type AuthManager struct {
	store  sessions.Store
	logger *zap.Logger
}

// NewAuthManager reads sessions from store. A nil store selects the GAuss cookie store, which
// session.NewSession must have initialized.
func NewAuthManager(store sessions.Store, logger *zap.Logger) *AuthManager {
	if store == nil {
		store = session.Store()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{store: store, logger: logger}
}

// RequireOwner answers 401 unless the request carries a signed in owner.
func (manager *AuthManager) RequireOwner() gin.HandlerFunc {
	return func(context *gin.Context) {
		if _, ok := CurrentUserFromContext(context); ok {
			context.Next()
			return
		}
		currentUser, err := manager.sessionUser(context.Request)
		if err != nil {
			manager.logger.Warn("load_session", zap.Error(err))
		}
		if currentUser == nil {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: apperr.CodeUnauthorized})
			return
		}
		context.Set(contextKeyCurrentUser, currentUser)
		context.Next()
	}
}

func CurrentUserFromContext(context *gin.Context) (*CurrentUser, bool) {
	value, exists := context.Get(contextKeyCurrentUser)
	if !exists {
		return nil, false
	}
	currentUser, ok := value.(*CurrentUser)
	return currentUser, ok
}

// sessionUser returns nil without an error when the session holds no usable email.
func (manager *AuthManager) sessionUser(request *http.Request) (*CurrentUser, error) {
	stored, err := manager.store.Get(request, constants.SessionName)
	if err != nil {
		return nil, err
	}
	user := CurrentUser{
		Email:      sessionString(stored, constants.SessionKeyUserEmail),
		Name:       sessionString(stored, constants.SessionKeyUserName),
		PictureURL: sessionString(stored, constants.SessionKeyUserPicture),
	}
	if !strings.Contains(user.Email, "@") {
		return nil, nil
	}
	user.Email = user.OwnerID()
	return &user, nil
}

func sessionString(stored *sessions.Session, key string) string {
	text, _ := stored.Values[key].(string)
	return strings.TrimSpace(text)
}
