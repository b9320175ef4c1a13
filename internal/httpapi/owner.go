package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/projects"
)

const imageFormField = "image"

// OwnerHandlers serves the session authenticated owner API.
type OwnerHandlers struct {
	service     *projects.Service
	broadcaster *events.Broadcaster
	logger      *zap.Logger
}

// NewOwnerHandlers builds the owner API. broadcaster may be nil, which disables the event stream.
func NewOwnerHandlers(service *projects.Service, broadcaster *events.Broadcaster, logger *zap.Logger) *OwnerHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnerHandlers{service: service, broadcaster: broadcaster, logger: logger}
}

type createProjectRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	WebsiteURL string `json:"websiteUrl" validate:"omitempty,url,max=500"`
}

type pageSettingsRequest struct {
	Theme       string `json:"theme" validate:"required,oneof=light dark"`
	Layout      string `json:"layout" validate:"required,oneof=grid list carousel"`
	Headline    string `json:"headline" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
	ShowRating  bool   `json:"showRating"`
	ShowCompany bool   `json:"showCompany"`
	ShowTitle   bool   `json:"showTitle"`
	ShowImage   bool   `json:"showImage"`
	ShowDate    bool   `json:"showDate"`
}

type updateProjectRequest struct {
	Name       *string              `json:"name" validate:"omitempty,max=200"`
	WebsiteURL *string              `json:"websiteUrl" validate:"omitempty,max=500"`
	IsPublic   *bool                `json:"isPublic"`
	Slug       *string              `json:"slug"`
	Settings   *pageSettingsRequest `json:"settings"`
}

type createTestimonialRequest struct {
	GroupID          *string  `json:"groupId"`
	CustomerName     string   `json:"customerName" validate:"required,max=200"`
	CustomerEmail    string   `json:"customerEmail" validate:"required,email,max=320"`
	CustomerCompany  string   `json:"customerCompany" validate:"max=200"`
	CustomerTitle    string   `json:"customerTitle" validate:"max=200"`
	CustomerImageURL string   `json:"customerImageUrl" validate:"omitempty,url,max=1000"`
	Content          string   `json:"content" validate:"required,max=10000"`
	Rating           *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	IsPublic         *bool    `json:"isPublic"`
	Source           string   `json:"source" validate:"omitempty,oneof=manual import"`
	Tags             []string `json:"tags" validate:"max=20,dive,max=50"`
}

type updateTestimonialRequest struct {
	GroupID          *string   `json:"groupId"`
	CustomerName     *string   `json:"customerName" validate:"omitempty,max=200"`
	CustomerEmail    *string   `json:"customerEmail" validate:"omitempty,email,max=320"`
	CustomerCompany  *string   `json:"customerCompany" validate:"omitempty,max=200"`
	CustomerTitle    *string   `json:"customerTitle" validate:"omitempty,max=200"`
	CustomerImageURL *string   `json:"customerImageUrl" validate:"omitempty,max=1000"`
	Content          *string   `json:"content" validate:"omitempty,max=10000"`
	Rating           *int      `json:"rating" validate:"omitempty,min=1,max=5"`
	ClearRating      bool      `json:"clearRating"`
	IsPublic         *bool     `json:"isPublic"`
	Tags             *[]string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Status string   `json:"status" validate:"required"`
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"max=2000"`
}

type updateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type formRequest struct {
	Name        *string             `json:"name" validate:"omitempty,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=2000"`
	Fields      []model.FormField   `json:"fields" validate:"max=50"`
	Styling     *model.FormStyling  `json:"styling"`
	Settings    *model.FormSettings `json:"settings"`
	IsActive    *bool               `json:"isActive"`
}

// bindRequest decodes the JSON body into request and runs its validate tags.
func bindRequest(context *gin.Context, request any) error {
	if err := context.ShouldBindJSON(request); err != nil {
		return apperr.Validation(errorValueInvalidJSON, err.Error())
	}
	return validateRequest(request)
}

// ownerID reads the authenticated owner; RequireOwner guarantees it on owner routes.
func (handlers *OwnerHandlers) ownerID(context *gin.Context) (string, bool) {
	currentUser, ok := CurrentUserFromContext(context)
	if !ok {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: apperr.CodeUnauthorized})
		return "", false
	}
	return currentUser.OwnerID(), true
}

func (handlers *OwnerHandlers) CurrentUser(context *gin.Context) {
	currentUser, ok := CurrentUserFromContext(context)
	if !ok {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: apperr.CodeUnauthorized})
		return
	}
	context.JSON(http.StatusOK, currentUser)
}

func (handlers *OwnerHandlers) GetProject(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	project, err := handlers.service.Project(context.Request.Context(), ownerID)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toProjectResponse(project))
}

func (handlers *OwnerHandlers) CreateProject(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request createProjectRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	project, err := handlers.service.CreateProject(context.Request.Context(), ownerID, projects.ProjectInput{
		Name:       request.Name,
		WebsiteURL: request.WebsiteURL,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusCreated, toProjectResponse(project))
}

func (handlers *OwnerHandlers) UpdateProject(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request updateProjectRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	update := projects.SettingsUpdate{
		Name:       request.Name,
		WebsiteURL: request.WebsiteURL,
		IsPublic:   request.IsPublic,
		Slug:       request.Slug,
	}
	if request.Settings != nil {
		update.PageSettings = &model.PublicPageSettings{
			Theme:       request.Settings.Theme,
			Layout:      request.Settings.Layout,
			Headline:    request.Settings.Headline,
			Description: request.Settings.Description,
			ShowRating:  request.Settings.ShowRating,
			ShowCompany: request.Settings.ShowCompany,
			ShowTitle:   request.Settings.ShowTitle,
			ShowImage:   request.Settings.ShowImage,
			ShowDate:    request.Settings.ShowDate,
		}
	}
	project, err := handlers.service.UpdateSettings(context.Request.Context(), ownerID, update)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toProjectResponse(project))
}

func (handlers *OwnerHandlers) ProjectStats(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	stats, err := handlers.service.Stats(context.Request.Context(), ownerID)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, stats)
}

func (handlers *OwnerHandlers) ListTestimonials(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	testimonials, err := handlers.service.ListTestimonials(context.Request.Context(), ownerID, projects.ListFilter{
		Status:  context.Query("status"),
		GroupID: context.Query("groupId"),
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, gin.H{"testimonials": toTestimonialResponses(testimonials)})
}

func (handlers *OwnerHandlers) CreateTestimonial(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request createTestimonialRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	isPublic := true
	if request.IsPublic != nil {
		isPublic = *request.IsPublic
	}
	testimonial, err := handlers.service.CreateTestimonial(context.Request.Context(), ownerID, projects.TestimonialInput{
		GroupID:          request.GroupID,
		CustomerName:     request.CustomerName,
		CustomerEmail:    request.CustomerEmail,
		CustomerCompany:  request.CustomerCompany,
		CustomerTitle:    request.CustomerTitle,
		CustomerImageURL: request.CustomerImageURL,
		Content:          request.Content,
		Rating:           request.Rating,
		IsPublic:         isPublic,
		Source:           request.Source,
		Tags:             request.Tags,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusCreated, toTestimonialResponse(testimonial))
}

func (handlers *OwnerHandlers) UpdateTestimonial(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request updateTestimonialRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	update := projects.TestimonialUpdate{
		GroupID:          request.GroupID,
		CustomerName:     request.CustomerName,
		CustomerEmail:    request.CustomerEmail,
		CustomerCompany:  request.CustomerCompany,
		CustomerTitle:    request.CustomerTitle,
		CustomerImageURL: request.CustomerImageURL,
		Content:          request.Content,
		Rating:           request.Rating,
		ClearRating:      request.ClearRating,
		IsPublic:         request.IsPublic,
	}
	if request.Tags != nil {
		update.Tags = *request.Tags
		update.ReplaceTags = true
	}
	testimonial, err := handlers.service.UpdateTestimonial(context.Request.Context(), ownerID, context.Param("id"), update)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toTestimonialResponse(testimonial))
}

func (handlers *OwnerHandlers) DeleteTestimonial(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	if err := handlers.service.DeleteTestimonial(context.Request.Context(), ownerID, context.Param("id")); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.Status(http.StatusNoContent)
}

func (handlers *OwnerHandlers) SetTestimonialStatus(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request statusRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	testimonial, err := handlers.service.SetStatus(context.Request.Context(), ownerID, context.Param("id"), request.Status)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toTestimonialResponse(testimonial))
}

func (handlers *OwnerHandlers) SetTestimonialStatuses(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request bulkStatusRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	testimonials, err := handlers.service.SetStatusMany(context.Request.Context(), ownerID, request.IDs, request.Status)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, gin.H{"testimonials": toTestimonialResponses(testimonials)})
}

func (handlers *OwnerHandlers) UploadTestimonialImage(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	context.Request.Body = http.MaxBytesReader(context.Writer, context.Request.Body, projects.MaxImageBytes+multipartMemoryBytes)
	fileHeader, formErr := context.FormFile(imageFormField)
	if formErr != nil {
		respondError(context, handlers.logger, apperr.Validation(apperr.CodeInvalidInput, "image file is required"))
		return
	}
	if fileHeader.Size > projects.MaxImageBytes {
		respondError(context, handlers.logger, apperr.Validation(apperr.CodeFileTooLarge, "image exceeds the size limit"))
		return
	}
	file, openErr := fileHeader.Open()
	if openErr != nil {
		respondError(context, handlers.logger, apperr.Validation(apperr.CodeInvalidInput, openErr.Error()))
		return
	}
	defer file.Close()
	data, readErr := io.ReadAll(io.LimitReader(file, projects.MaxImageBytes+1))
	if readErr != nil {
		respondError(context, handlers.logger, apperr.Validation(apperr.CodeInvalidInput, readErr.Error()))
		return
	}

	testimonial, err := handlers.service.AttachImage(context.Request.Context(), ownerID, context.Param("id"), projects.ImageUpload{
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toTestimonialResponse(testimonial))
}

func (handlers *OwnerHandlers) ListGroups(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	groups, err := handlers.service.ListGroups(context.Request.Context(), ownerID)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	responses := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, toGroupResponse(group))
	}
	context.JSON(http.StatusOK, gin.H{"groups": responses})
}

func (handlers *OwnerHandlers) CreateGroup(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request createGroupRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	group, err := handlers.service.CreateGroup(context.Request.Context(), ownerID, projects.GroupInput{
		Name:        request.Name,
		Color:       request.Color,
		Description: request.Description,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusCreated, toGroupResponse(group))
}

func (handlers *OwnerHandlers) UpdateGroup(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request updateGroupRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	group, err := handlers.service.UpdateGroup(context.Request.Context(), ownerID, context.Param("id"), projects.GroupUpdate{
		Name:        request.Name,
		Color:       request.Color,
		Description: request.Description,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toGroupResponse(group))
}

func (handlers *OwnerHandlers) DeleteGroup(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	if err := handlers.service.DeleteGroup(context.Request.Context(), ownerID, context.Param("id")); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.Status(http.StatusNoContent)
}

func (handlers *OwnerHandlers) ListForms(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	forms, err := handlers.service.ListForms(context.Request.Context(), ownerID)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	responses := make([]formResponse, 0, len(forms))
	for _, form := range forms {
		responses = append(responses, toFormResponse(form))
	}
	context.JSON(http.StatusOK, gin.H{"forms": responses})
}

func (handlers *OwnerHandlers) CreateForm(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request formRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	if request.Name == nil {
		respondError(context, handlers.logger, apperr.Validation(apperr.CodeInvalidInput, "name is required"))
		return
	}
	input := projects.FormInput{
		Name:     *request.Name,
		Fields:   request.Fields,
		Styling:  request.Styling,
		Settings: request.Settings,
		IsActive: request.IsActive,
	}
	if request.Description != nil {
		input.Description = *request.Description
	}
	form, err := handlers.service.CreateForm(context.Request.Context(), ownerID, input)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusCreated, toFormResponse(form))
}

func (handlers *OwnerHandlers) UpdateForm(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	var request formRequest
	if err := bindRequest(context, &request); err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	form, err := handlers.service.UpdateForm(context.Request.Context(), ownerID, context.Param("id"), projects.FormUpdate{
		Name:        request.Name,
		Description: request.Description,
		Fields:      request.Fields,
		Styling:     request.Styling,
		Settings:    request.Settings,
		IsActive:    request.IsActive,
	})
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	context.JSON(http.StatusOK, toFormResponse(form))
}

func (handlers *OwnerHandlers) ListSubmissions(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	submissions, err := handlers.service.ListSubmissions(context.Request.Context(), ownerID, context.Param("id"))
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	responses := make([]submissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, toSubmissionResponse(submission))
	}
	context.JSON(http.StatusOK, gin.H{"submissions": responses})
}
