package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/ingest"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/media"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/publicpage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/widget"
)

const (
	maxSubmissionBodyBytes   = 32 << 20
	multipartMemoryBytes     = 8 << 20
	uploadedFilePayloadKey   = "file_"
	contentTypeJSON          = "application/json"
	contentTypeMultipartForm = "multipart/form-data"
	contentTypeURLEncoded    = "application/x-www-form-urlencoded"
)

// PublicHandlers serves the unauthenticated surfaces: widget data, hosted pages and form
// submissions.
type PublicHandlers struct {
	widgetController *widget.Controller
	pageReader       *publicpage.Reader
	ingestor         *ingest.Ingestor
	mediaStore       media.Store
	logger           *zap.Logger
}

// NewPublicHandlers builds the public handlers. mediaStore may be nil, which disables file uploads.
func NewPublicHandlers(widgetController *widget.Controller, pageReader *publicpage.Reader, ingestor *ingest.Ingestor, mediaStore media.Store, logger *zap.Logger) *PublicHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandlers{
		widgetController: widgetController,
		pageReader:       pageReader,
		ingestor:         ingestor,
		mediaStore:       mediaStore,
		logger:           logger,
	}
}

func (handlers *PublicHandlers) WidgetConfig(context *gin.Context) {
	response, err := handlers.widgetController.Resolve(
		context.Request.Context(),
		context.Query("projectId"),
		context.Query("domain"),
		strings.Split(context.Query("tags"), ","),
	)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	if response.Testimonials == nil {
		response.Testimonials = []widget.Item{}
	}
	context.JSON(http.StatusOK, response)
}

func (handlers *PublicHandlers) ProjectPage(context *gin.Context) {
	page, err := handlers.pageReader.ProjectPage(context.Request.Context(), context.Param("slug"))
	if err != nil {
		respondPublicError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, page)
}

func (handlers *PublicHandlers) GroupPage(context *gin.Context) {
	page, err := handlers.pageReader.GroupPage(context.Request.Context(), context.Param("slug"), context.Param("groupSlug"))
	if err != nil {
		respondPublicError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, page)
}

func (handlers *PublicHandlers) Testimonial(context *gin.Context) {
	page, err := handlers.pageReader.Testimonial(context.Request.Context(), context.Param("slug"), context.Param("id"))
	if err != nil {
		respondPublicError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, page)
}

// CreateSubmission accepts JSON, urlencoded or multipart payloads for a form addressed by id or slug.
func (handlers *PublicHandlers) CreateSubmission(context *gin.Context) {
	requestContext := context.Request.Context()
	form, err := handlers.ingestor.ResolveForm(requestContext, context.Param("id"))
	if err != nil {
		respondPublicError(context, handlers.logger, err)
		return
	}

	context.Request.Body = http.MaxBytesReader(context.Writer, context.Request.Body, maxSubmissionBodyBytes)
	payload, files, readErr := readSubmissionPayload(context)
	if readErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	if len(files) > 0 {
		if err := handlers.ingestor.CheckAccepting(requestContext, form); err != nil {
			respondError(context, handlers.logger, err)
			return
		}
		if err := handlers.storeFiles(requestContext, form, files, payload); err != nil {
			respondError(context, handlers.logger, err)
			return
		}
	}

	result, err := handlers.ingestor.Ingest(requestContext, form, payload, ingest.RequestMeta{
		IP:        context.ClientIP(),
		UserAgent: context.Request.UserAgent(),
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, gin.H{
		jsonKeyStatus:  "ok",
		"submissionId": result.Submission.ID,
		"message":      result.ThankYouMessage,
	})
}

// storeFiles writes uploaded images to the media store and records their URLs in payload.
func (handlers *PublicHandlers) storeFiles(ctx context.Context, form model.Form, files map[string]*multipart.FileHeader, payload map[string]any) error {
	settings := form.Settings.Data()
	if !settings.AllowFileUploads {
		return apperr.Validation(apperr.CodeFileUploadsDisabled, "form does not accept files")
	}
	if handlers.mediaStore == nil {
		return apperr.Validation(apperr.CodeMediaStoreUnavailable, "file storage is not configured")
	}
	maxFileSize := settings.MaxFileSizeBytes
	if maxFileSize <= 0 {
		maxFileSize = model.DefaultFormMaxFileSizeBytes
	}

	for fieldName, fileHeader := range files {
		if fileHeader.Size > maxFileSize {
			return apperr.Validation(apperr.CodeFileTooLarge, fmt.Sprintf("%s exceeds %d bytes", fieldName, maxFileSize))
		}
		contentType := fileHeader.Header.Get("Content-Type")
		key, keyErr := media.ImageKey(form.ProjectID, contentType)
		if keyErr != nil {
			return apperr.Validation(apperr.CodeInvalidInput, keyErr.Error())
		}
		data, readErr := readUploadedFile(fileHeader, maxFileSize)
		if readErr != nil {
			return readErr
		}
		fileURL, putErr := handlers.mediaStore.Put(ctx, key, contentType, data)
		if putErr != nil {
			handlers.logger.Error("store_submission_file", zap.Error(putErr), zap.String("form_id", form.ID))
			return apperr.Internal(putErr)
		}
		payload[uploadedFilePayloadKey+fieldName] = fileURL
	}
	return nil
}

func readUploadedFile(fileHeader *multipart.FileHeader, maxFileSize int64) ([]byte, error) {
	file, openErr := fileHeader.Open()
	if openErr != nil {
		return nil, apperr.Validation(apperr.CodeInvalidInput, openErr.Error())
	}
	defer file.Close()
	data, readErr := io.ReadAll(io.LimitReader(file, maxFileSize+1))
	if readErr != nil {
		return nil, apperr.Validation(apperr.CodeInvalidInput, readErr.Error())
	}
	if int64(len(data)) > maxFileSize {
		return nil, apperr.Validation(apperr.CodeFileTooLarge, "file exceeds the size limit")
	}
	return data, nil
}

// readSubmissionPayload flattens the request body into a payload map. Repeated form values are
// kept as lists; the first file of each multipart field is returned separately.
func readSubmissionPayload(context *gin.Context) (map[string]any, map[string]*multipart.FileHeader, error) {
	switch context.ContentType() {
	case contentTypeMultipartForm:
		if err := context.Request.ParseMultipartForm(multipartMemoryBytes); err != nil {
			return nil, nil, err
		}
		payload := flattenValues(context.Request.MultipartForm.Value)
		files := make(map[string]*multipart.FileHeader, len(context.Request.MultipartForm.File))
		for fieldName, headers := range context.Request.MultipartForm.File {
			if len(headers) > 0 {
				files[fieldName] = headers[0]
			}
		}
		return payload, files, nil
	case contentTypeURLEncoded:
		if err := context.Request.ParseForm(); err != nil {
			return nil, nil, err
		}
		return flattenValues(context.Request.PostForm), nil, nil
	default:
		var payload map[string]any
		if err := context.ShouldBindJSON(&payload); err != nil {
			return nil, nil, err
		}
		if payload == nil {
			return nil, nil, errors.New("empty payload")
		}
		return payload, nil, nil
	}
}

func flattenValues(values map[string][]string) map[string]any {
	payload := make(map[string]any, len(values))
	for key, entries := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || len(entries) == 0 {
			continue
		}
		if len(entries) == 1 {
			payload[trimmedKey] = entries[0]
			continue
		}
		list := make([]any, 0, len(entries))
		for _, entry := range entries {
			list = append(list, entry)
		}
		payload[trimmedKey] = list
	}
	return payload
}
