package projects

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

const (
	testimonialNameMaxLength  = 200
	testimonialFieldMaxLength = 200
	testimonialImageMaxLength = 1000
)

// TestimonialInput carries a manually entered testimonial.
type TestimonialInput struct {
	GroupID          *string
	CustomerName     string
	CustomerEmail    string
	CustomerCompany  string
	CustomerTitle    string
	CustomerImageURL string
	Content          string
	Rating           *int
	IsPublic         bool
	Source           string
	Tags             []string
}

// TestimonialUpdate lists the testimonial fields to change; nil fields stay untouched. An empty
// GroupID removes the testimonial from its group and ClearRating removes the rating.
type TestimonialUpdate struct {
	GroupID          *string
	CustomerName     *string
	CustomerEmail    *string
	CustomerCompany  *string
	CustomerTitle    *string
	CustomerImageURL *string
	Content          *string
	Rating           *int
	ClearRating      bool
	IsPublic         *bool
	Tags             []string
	ReplaceTags      bool
}

// ListFilter narrows ListTestimonials. Empty values match everything.
type ListFilter struct {
	Status  string
	GroupID string
}

// CreateTestimonial stores a pending testimonial entered by the owner.
func (service *Service) CreateTestimonial(ctx context.Context, ownerID string, input TestimonialInput) (model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Testimonial{}, err
	}

	source, sourceErr := model.ParseSource(input.Source)
	if sourceErr != nil {
		return model.Testimonial{}, validationError(sourceErr)
	}
	if source != model.SourceManual && source != model.SourceImport {
		return model.Testimonial{}, apperr.Validation(apperr.CodeInvalidInput, "source must be manual or import")
	}
	if err := service.requireGroup(ctx, project.ID, input.GroupID); err != nil {
		return model.Testimonial{}, err
	}

	testimonial, createErr := storage.CreateWithSlug(ctx, service.database, service.allocator,
		storage.ProjectSlugScope(&model.Testimonial{}, project.ID),
		func(slugValue string) (model.Testimonial, error) {
			return model.NewTestimonial(model.TestimonialInput{
				ProjectID:        project.ID,
				GroupID:          input.GroupID,
				Slug:             slugValue,
				CustomerName:     input.CustomerName,
				CustomerEmail:    input.CustomerEmail,
				CustomerCompany:  input.CustomerCompany,
				CustomerTitle:    input.CustomerTitle,
				CustomerImageURL: input.CustomerImageURL,
				Content:          input.Content,
				Rating:           input.Rating,
				IsPublic:         input.IsPublic,
				Source:           string(source),
				Tags:             input.Tags,
			})
		})
	if createErr != nil {
		return model.Testimonial{}, service.slugCreateError("create_testimonial", createErr)
	}

	events.PublishBestEffort(ctx, service.publisher, service.logger,
		events.NewEvent(events.TypeTestimonialCreated, project.ID, testimonial.ID, string(testimonial.Status)))
	return testimonial, nil
}

// Testimonial loads one testimonial of the owner's project.
func (service *Service) Testimonial(ctx context.Context, ownerID string, testimonialID string) (model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Testimonial{}, err
	}
	return service.loadTestimonial(ctx, project.ID, testimonialID)
}

// UpdateTestimonial edits the customer fields, content, rating, tags, group and public flag.
// Status changes go through SetStatus.
func (service *Service) UpdateTestimonial(ctx context.Context, ownerID string, testimonialID string, update TestimonialUpdate) (model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Testimonial{}, err
	}
	testimonial, err := service.loadTestimonial(ctx, project.ID, testimonialID)
	if err != nil {
		return model.Testimonial{}, err
	}

	changes := map[string]any{}
	if update.CustomerName != nil {
		name := strings.TrimSpace(*update.CustomerName)
		if name == "" || len(name) > testimonialNameMaxLength {
			return model.Testimonial{}, validationError(model.ErrInvalidCustomerName)
		}
		changes["customer_name"] = name
	}
	if update.CustomerEmail != nil {
		email, emailErr := model.NormalizeCustomerEmail(*update.CustomerEmail)
		if emailErr != nil {
			return model.Testimonial{}, validationError(emailErr)
		}
		changes["customer_email"] = email
	}
	optionalText := map[string]*string{
		"customer_company": update.CustomerCompany,
		"customer_title":   update.CustomerTitle,
	}
	for column, value := range optionalText {
		if value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*value)
		if len(trimmed) > testimonialFieldMaxLength {
			return model.Testimonial{}, validationError(model.ErrInvalidTestimonialCustomer)
		}
		changes[column] = trimmed
	}
	if update.CustomerImageURL != nil {
		imageURL := strings.TrimSpace(*update.CustomerImageURL)
		if len(imageURL) > testimonialImageMaxLength {
			return model.Testimonial{}, validationError(model.ErrInvalidTestimonialCustomer)
		}
		changes["customer_image_url"] = imageURL
	}
	if update.Content != nil {
		content, contentErr := model.NormalizeContent(*update.Content)
		if contentErr != nil {
			return model.Testimonial{}, validationError(contentErr)
		}
		changes["content"] = content
	}
	switch {
	case update.ClearRating:
		changes["rating"] = nil
	case update.Rating != nil:
		if ratingErr := model.ValidateRating(update.Rating); ratingErr != nil {
			return model.Testimonial{}, validationError(ratingErr)
		}
		changes["rating"] = *update.Rating
	}
	if update.IsPublic != nil {
		changes["is_public"] = *update.IsPublic
	}
	if update.ReplaceTags {
		tags, tagsErr := model.NormalizeTags(update.Tags)
		if tagsErr != nil {
			return model.Testimonial{}, validationError(tagsErr)
		}
		changes["tags"] = datatypes.NewJSONSlice(tags)
	}
	if update.GroupID != nil {
		groupID := strings.TrimSpace(*update.GroupID)
		if groupID == "" {
			changes["group_id"] = nil
		} else {
			if err := service.requireGroup(ctx, project.ID, &groupID); err != nil {
				return model.Testimonial{}, err
			}
			changes["group_id"] = groupID
		}
	}
	if len(changes) == 0 {
		return testimonial, nil
	}

	if err := service.database.WithContext(ctx).Model(&model.Testimonial{}).
		Where("id = ? AND project_id = ?", testimonial.ID, project.ID).
		Updates(changes).Error; err != nil {
		return model.Testimonial{}, service.internal("update_testimonial", err)
	}
	service.invalidate(ctx, project.ID)
	return service.loadTestimonial(ctx, project.ID, testimonial.ID)
}

// DeleteTestimonial removes a testimonial and detaches the submission that produced it.
func (service *Service) DeleteTestimonial(ctx context.Context, ownerID string, testimonialID string) error {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return err
	}
	testimonial, err := service.loadTestimonial(ctx, project.ID, testimonialID)
	if err != nil {
		return err
	}

	transactionErr := service.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Model(&model.FormSubmission{}).
			Where("testimonial_id = ?", testimonial.ID).
			Update("testimonial_id", nil).Error; err != nil {
			return err
		}
		return transaction.Where("id = ? AND project_id = ?", testimonial.ID, project.ID).Delete(&model.Testimonial{}).Error
	})
	if transactionErr != nil {
		return service.internal("delete_testimonial", transactionErr)
	}

	service.invalidate(ctx, project.ID)
	events.PublishBestEffort(ctx, service.publisher, service.logger,
		events.NewEvent(events.TypeTestimonialDeleted, project.ID, testimonial.ID, string(testimonial.Status)))
	return nil
}

// ListTestimonials returns the project's testimonials newest first.
func (service *Service) ListTestimonials(ctx context.Context, ownerID string, filter ListFilter) ([]model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	query := service.database.WithContext(ctx).Where("project_id = ?", project.ID)
	if strings.TrimSpace(filter.Status) != "" {
		status, statusErr := model.ParseStatus(filter.Status)
		if statusErr != nil {
			return nil, validationError(statusErr)
		}
		query = query.Where("status = ?", status)
	}
	if groupID := strings.TrimSpace(filter.GroupID); groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	var testimonials []model.Testimonial
	if err := query.Order("created_at DESC").Order("id").Find(&testimonials).Error; err != nil {
		return nil, service.internal("list_testimonials", err)
	}
	return testimonials, nil
}

// SetStatus moves one testimonial of the owner's project to status.
func (service *Service) SetStatus(ctx context.Context, ownerID string, testimonialID string, status string) (model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Testimonial{}, err
	}
	return service.engine.Transition(ctx, project.ID, testimonialID, model.TestimonialStatus(status))
}

// SetStatusMany moves several testimonials of the owner's project to status at once.
func (service *Service) SetStatusMany(ctx context.Context, ownerID string, testimonialIDs []string, status string) ([]model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return service.engine.TransitionMany(ctx, project.ID, testimonialIDs, model.TestimonialStatus(status))
}

func (service *Service) loadTestimonial(ctx context.Context, projectID string, testimonialID string) (model.Testimonial, error) {
	identifier := strings.TrimSpace(testimonialID)
	if identifier == "" {
		return model.Testimonial{}, apperr.NotFound(testimonialResource)
	}
	var testimonial model.Testimonial
	if err := service.database.WithContext(ctx).
		Where("id = ? AND project_id = ?", identifier, projectID).
		First(&testimonial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Testimonial{}, apperr.NotFound(testimonialResource)
		}
		return model.Testimonial{}, service.internal("load_testimonial", err)
	}
	return testimonial, nil
}

func (service *Service) slugCreateError(event string, err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, storage.ErrSlugExhausted):
		service.logger.Error(event, zap.Error(err))
		return apperr.Conflict(apperr.CodeSlugExhausted, "could not allocate a slug")
	case isModelError(err):
		return validationError(err)
	default:
		return service.internal(event, err)
	}
}
