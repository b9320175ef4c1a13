package projects

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

const formNameMaxLength = 200

// FormInput carries a new collection form. Empty fields select model.DefaultFormFields and a nil
// Settings selects model.DefaultFormSettings.
type FormInput struct {
	Name        string
	Description string
	Fields      []model.FormField
	Styling     *model.FormStyling
	Settings    *model.FormSettings
	IsActive    *bool
}

// FormUpdate lists the form attributes to change; nil values stay untouched.
type FormUpdate struct {
	Name        *string
	Description *string
	Fields      []model.FormField
	Styling     *model.FormStyling
	Settings    *model.FormSettings
	IsActive    *bool
}

func (service *Service) CreateForm(ctx context.Context, ownerID string, input FormInput) (model.Form, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Form{}, err
	}
	form, createErr := storage.CreateWithSlug(ctx, service.database, service.allocator,
		storage.GlobalSlugScope(&model.Form{}),
		func(slugValue string) (model.Form, error) {
			return model.NewForm(model.FormInput{
				ProjectID:   project.ID,
				Slug:        slugValue,
				Name:        input.Name,
				Description: input.Description,
				Fields:      input.Fields,
				Styling:     input.Styling,
				Settings:    input.Settings,
				IsActive:    input.IsActive,
			})
		})
	if createErr != nil {
		return model.Form{}, service.slugCreateError("create_form", createErr)
	}
	return form, nil
}

func (service *Service) UpdateForm(ctx context.Context, ownerID string, formID string, update FormUpdate) (model.Form, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Form{}, err
	}
	form, err := service.loadForm(ctx, project.ID, formID)
	if err != nil {
		return model.Form{}, err
	}

	changes := map[string]any{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" || len(name) > formNameMaxLength {
			return model.Form{}, validationError(model.ErrInvalidFormName)
		}
		changes["name"] = name
	}
	if update.Description != nil {
		changes["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Fields != nil {
		fields, fieldsErr := model.NormalizeFormFields(update.Fields)
		if fieldsErr != nil {
			return model.Form{}, validationError(fieldsErr)
		}
		if len(fields) == 0 {
			return model.Form{}, validationError(model.ErrInvalidFormFields)
		}
		changes["fields"] = datatypes.NewJSONSlice(fields)
	}
	if update.Styling != nil {
		changes["styling"] = datatypes.NewJSONType(*update.Styling)
	}
	if update.Settings != nil {
		if settingsErr := update.Settings.Validate(); settingsErr != nil {
			return model.Form{}, validationError(settingsErr)
		}
		changes["settings"] = datatypes.NewJSONType(*update.Settings)
	}
	if update.IsActive != nil {
		changes["is_active"] = *update.IsActive
	}
	if len(changes) == 0 {
		return form, nil
	}
	if err := service.database.WithContext(ctx).Model(&model.Form{}).
		Where("id = ? AND project_id = ?", form.ID, project.ID).
		Updates(changes).Error; err != nil {
		return model.Form{}, service.internal("update_form", err)
	}
	return service.loadForm(ctx, project.ID, form.ID)
}

func (service *Service) ListForms(ctx context.Context, ownerID string) ([]model.Form, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var forms []model.Form
	if err := service.database.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("created_at ASC").Order("id").
		Find(&forms).Error; err != nil {
		return nil, service.internal("list_forms", err)
	}
	return forms, nil
}

// ListSubmissions returns the raw submissions of one of the owner's forms, newest first.
func (service *Service) ListSubmissions(ctx context.Context, ownerID string, formID string) ([]model.FormSubmission, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	form, err := service.loadForm(ctx, project.ID, formID)
	if err != nil {
		return nil, err
	}
	var submissions []model.FormSubmission
	if err := service.database.WithContext(ctx).
		Where("form_id = ? AND project_id = ?", form.ID, project.ID).
		Order("created_at DESC").Order("id").
		Find(&submissions).Error; err != nil {
		return nil, service.internal("list_submissions", err)
	}
	return submissions, nil
}

func (service *Service) loadForm(ctx context.Context, projectID string, formID string) (model.Form, error) {
	identifier := strings.TrimSpace(formID)
	if identifier == "" {
		return model.Form{}, apperr.NotFound(formResource)
	}
	var form model.Form
	if err := service.database.WithContext(ctx).
		Where("id = ? AND project_id = ?", identifier, projectID).
		First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Form{}, apperr.NotFound(formResource)
		}
		return model.Form{}, service.internal("load_form", err)
	}
	return form, nil
}
