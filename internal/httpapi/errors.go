package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
)

const (
	jsonKeyError  = "error"
	jsonKeyStatus = "status"

	errorValueInvalidJSON       = "invalid_json"
	errorValueStreamUnavailable = "stream_unavailable"
)

// respondError answers with the owner-facing status of err and its machine code.
func respondError(context *gin.Context, logger *zap.Logger, err error) {
	writeError(context, logger, err, apperr.HTTPStatus(err))
}

// respondPublicError hides the difference between forbidden and missing resources.
func respondPublicError(context *gin.Context, logger *zap.Logger, err error) {
	writeError(context, logger, err, apperr.PublicStatus(err))
}

func writeError(context *gin.Context, logger *zap.Logger, err error, status int) {
	code := apperr.Code(err)
	if status == http.StatusNotFound {
		code = apperr.CodeNotFound
	}
	if errors.Is(err, apperr.ErrInternal) || status == http.StatusInternalServerError {
		logger.Error("request_failed", zap.Error(err), zap.String("path", context.FullPath()))
	}
	context.JSON(status, gin.H{jsonKeyError: code})
}
