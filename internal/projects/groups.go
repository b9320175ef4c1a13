package projects

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

// GroupInput carries a new group. An empty color selects model.DefaultGroupColor.
type GroupInput struct {
	Name        string
	Color       string
	Description string
}

// GroupUpdate lists the group fields to change; nil fields stay untouched.
type GroupUpdate struct {
	Name        *string
	Color       *string
	Description *string
}

func (service *Service) CreateGroup(ctx context.Context, ownerID string, input GroupInput) (model.Group, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Group{}, err
	}
	group, createErr := storage.CreateWithSlug(ctx, service.database, service.allocator,
		storage.ProjectSlugScope(&model.Group{}, project.ID),
		func(slugValue string) (model.Group, error) {
			return model.NewGroup(model.GroupInput{
				ProjectID:   project.ID,
				Slug:        slugValue,
				Name:        input.Name,
				Color:       input.Color,
				Description: input.Description,
			})
		})
	if createErr != nil {
		return model.Group{}, service.slugCreateError("create_group", createErr)
	}
	return group, nil
}

// UpdateGroup edits name, color and description. The owning project never changes.
func (service *Service) UpdateGroup(ctx context.Context, ownerID string, groupID string, update GroupUpdate) (model.Group, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Group{}, err
	}
	group, err := service.loadGroup(ctx, project.ID, groupID)
	if err != nil {
		return model.Group{}, err
	}

	changes := map[string]any{}
	if update.Name != nil {
		name, nameErr := model.NormalizeGroupName(*update.Name)
		if nameErr != nil {
			return model.Group{}, validationError(nameErr)
		}
		changes["name"] = name
	}
	if update.Color != nil {
		color, colorErr := model.NormalizeGroupColor(*update.Color)
		if colorErr != nil {
			return model.Group{}, validationError(colorErr)
		}
		changes["color"] = color
	}
	if update.Description != nil {
		description, descriptionErr := model.NormalizeGroupDescription(*update.Description)
		if descriptionErr != nil {
			return model.Group{}, validationError(descriptionErr)
		}
		changes["description"] = description
	}
	if len(changes) == 0 {
		return group, nil
	}
	if err := service.database.WithContext(ctx).Model(&model.Group{}).
		Where("id = ? AND project_id = ?", group.ID, project.ID).
		Updates(changes).Error; err != nil {
		return model.Group{}, service.internal("update_group", err)
	}
	return service.loadGroup(ctx, project.ID, group.ID)
}

// DeleteGroup removes a group. Its testimonials stay in the project without a group.
func (service *Service) DeleteGroup(ctx context.Context, ownerID string, groupID string) error {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return err
	}
	group, err := service.loadGroup(ctx, project.ID, groupID)
	if err != nil {
		return err
	}
	transactionErr := service.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Model(&model.Testimonial{}).
			Where("project_id = ? AND group_id = ?", project.ID, group.ID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return transaction.Where("id = ? AND project_id = ?", group.ID, project.ID).Delete(&model.Group{}).Error
	})
	if transactionErr != nil {
		return service.internal("delete_group", transactionErr)
	}
	return nil
}

func (service *Service) ListGroups(ctx context.Context, ownerID string) ([]model.Group, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var groups []model.Group
	if err := service.database.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("created_at ASC").Order("id").
		Find(&groups).Error; err != nil {
		return nil, service.internal("list_groups", err)
	}
	return groups, nil
}

func (service *Service) loadGroup(ctx context.Context, projectID string, groupID string) (model.Group, error) {
	identifier := strings.TrimSpace(groupID)
	if identifier == "" {
		return model.Group{}, apperr.NotFound(groupResource)
	}
	var group model.Group
	if err := service.database.WithContext(ctx).
		Where("id = ? AND project_id = ?", identifier, projectID).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Group{}, apperr.NotFound(groupResource)
		}
		return model.Group{}, service.internal("load_group", err)
	}
	return group, nil
}

// requireGroup accepts a nil or empty group id, otherwise the group must belong to the project.
func (service *Service) requireGroup(ctx context.Context, projectID string, groupID *string) error {
	if groupID == nil || strings.TrimSpace(*groupID) == "" {
		return nil
	}
	_, err := service.loadGroup(ctx, projectID, *groupID)
	return err
}
