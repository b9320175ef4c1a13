// Package projects implements the owner commands: project settings, testimonial curation, groups
// and collection forms. Every command is scoped to the project of the authenticated owner.
package projects

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/lifecycle"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/media"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

const (
	projectResource     = "project"
	testimonialResource = "testimonial"
	groupResource       = "group"
	formResource        = "form"

	iconRefreshTimeout = 30 * time.Second
)

// IconResolver finds the icon of a website; an empty result means the site has none.
type IconResolver interface {
	Resolve(ctx context.Context, websiteURL string) (string, error)
}

type Service struct {
	database    *gorm.DB
	allocator   *slug.Allocator
	engine      *lifecycle.Engine
	invalidator lifecycle.Invalidator
	publisher   events.Publisher
	mediaStore  media.Store
	icons       IconResolver
	logger      *zap.Logger
}

// NewService wires the owner commands. mediaStore may be nil when image uploads are not configured.
func NewService(database *gorm.DB, engine *lifecycle.Engine, invalidator lifecycle.Invalidator, publisher events.Publisher, mediaStore media.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher = events.ResolvePublisher(publisher)
	if engine == nil {
		engine = lifecycle.NewEngine(database, logger, publisher, invalidator)
	}
	return &Service{
		database:    database,
		allocator:   slug.NewAllocator(),
		engine:      engine,
		invalidator: invalidator,
		publisher:   publisher,
		mediaStore:  mediaStore,
		logger:      logger,
	}
}

// WithIconResolver enables background icon discovery whenever a project's website changes.
func (service *Service) WithIconResolver(resolver IconResolver) *Service {
	service.icons = resolver
	return service
}

// ProjectInput carries the onboarding values of a new project.
type ProjectInput struct {
	Name       string
	WebsiteURL string
}

// SettingsUpdate lists the project settings to change; nil fields stay untouched.
type SettingsUpdate struct {
	Name         *string
	WebsiteURL   *string
	IsPublic     *bool
	Slug         *string
	PageSettings *model.PublicPageSettings
}

// Stats summarizes a project.
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Flagged  int64 `json:"flagged"`
	Groups   int64 `json:"groups"`
	Forms    int64 `json:"forms"`
}

func (service *Service) requireProject(ctx context.Context, ownerID string) (model.Project, error) {
	normalizedOwner := model.NormalizeOwnerID(ownerID)
	if normalizedOwner == "" {
		return model.Project{}, apperr.Unauthorized("missing owner")
	}
	var project model.Project
	if err := service.database.WithContext(ctx).Where("owner_id = ?", normalizedOwner).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Project{}, apperr.NotFound(projectResource)
		}
		return model.Project{}, service.internal("load_project", err)
	}
	return project, nil
}

// CreateProject onboards an owner. An owner has at most one project.
func (service *Service) CreateProject(ctx context.Context, ownerID string, input ProjectInput) (model.Project, error) {
	project, buildErr := model.NewProject(model.ProjectInput{
		OwnerID:    ownerID,
		Name:       input.Name,
		WebsiteURL: input.WebsiteURL,
	})
	if buildErr != nil {
		return model.Project{}, validationError(buildErr)
	}

	var existing int64
	if err := service.database.WithContext(ctx).Model(&model.Project{}).Where("owner_id = ?", project.OwnerID).Count(&existing).Error; err != nil {
		return model.Project{}, service.internal("count_projects", err)
	}
	if existing > 0 {
		return model.Project{}, apperr.Conflict(apperr.CodeProjectExists, "owner already has a project")
	}
	if err := service.database.WithContext(ctx).Create(&project).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return model.Project{}, apperr.Conflict(apperr.CodeProjectExists, "owner already has a project")
		}
		return model.Project{}, service.internal("create_project", err)
	}
	service.logger.Info("project_created", zap.String("project_id", project.ID), zap.String("owner_id", project.OwnerID))
	service.refreshIcon(project.ID, project.WebsiteURL)
	return project, nil
}

func (service *Service) Project(ctx context.Context, ownerID string) (model.Project, error) {
	return service.requireProject(ctx, ownerID)
}

// UpdateSettings applies update to the owner's project. Publishing a project without a public slug
// allocates one.
func (service *Service) UpdateSettings(ctx context.Context, ownerID string, update SettingsUpdate) (model.Project, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Project{}, err
	}

	if update.Name != nil {
		name, nameErr := model.NormalizeProjectName(*update.Name)
		if nameErr != nil {
			return model.Project{}, validationError(nameErr)
		}
		project.Name = name
	}
	websiteChanged := false
	if update.WebsiteURL != nil {
		websiteURL, websiteErr := model.NormalizeWebsiteURL(*update.WebsiteURL)
		if websiteErr != nil {
			return model.Project{}, validationError(websiteErr)
		}
		websiteChanged = websiteURL != project.WebsiteURL
		project.WebsiteURL = websiteURL
		if websiteChanged {
			project.IconURL = ""
		}
	}
	if update.PageSettings != nil {
		if settingsErr := update.PageSettings.Validate(); settingsErr != nil {
			return model.Project{}, validationError(settingsErr)
		}
		project.Settings = datatypes.NewJSONType(*update.PageSettings)
	}
	if update.IsPublic != nil {
		project.IsPublic = *update.IsPublic
	}
	if update.Slug != nil {
		requested := strings.TrimSpace(*update.Slug)
		if !slug.Valid(requested) {
			return model.Project{}, apperr.Validation(apperr.CodeInvalidSlug, "slug must be 6 characters of a-z and 0-9")
		}
		var taken int64
		if err := service.database.WithContext(ctx).Model(&model.Project{}).
			Where("slug = ? AND id <> ?", requested, project.ID).
			Count(&taken).Error; err != nil {
			return model.Project{}, service.internal("check_project_slug", err)
		}
		if taken > 0 {
			return model.Project{}, apperr.Conflict(apperr.CodeSlugTaken, "slug is already in use")
		}
		project.Slug = &requested
	}

	saved, saveErr := service.saveProject(ctx, project, update.Slug == nil)
	if saveErr != nil {
		return model.Project{}, saveErr
	}
	service.invalidate(ctx, saved.ID)
	if websiteChanged {
		service.refreshIcon(saved.ID, saved.WebsiteURL)
	}
	return saved, nil
}

// refreshIcon resolves the website icon in the background. The result is stored only if the
// project still points at the same website.
func (service *Service) refreshIcon(projectID string, websiteURL string) {
	if service.icons == nil || websiteURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), iconRefreshTimeout)
		defer cancel()
		iconURL, err := service.icons.Resolve(ctx, websiteURL)
		if err != nil {
			service.logger.Warn("resolve_site_icon", zap.Error(err), zap.String("project_id", projectID))
			return
		}
		if iconURL == "" {
			return
		}
		result := service.database.WithContext(ctx).Model(&model.Project{}).
			Where("id = ? AND website_url = ?", projectID, websiteURL).
			Update("icon_url", iconURL)
		if result.Error != nil {
			service.logger.Warn("store_site_icon", zap.Error(result.Error), zap.String("project_id", projectID))
			return
		}
		if result.RowsAffected > 0 {
			service.invalidate(ctx, projectID)
		}
	}()
}

// saveProject writes project, allocating a public slug for a public project that lacks one. A slug
// collision at write time is retried with a fresh slug only when the slug was allocated here.
func (service *Service) saveProject(ctx context.Context, project model.Project, mayAllocate bool) (model.Project, error) {
	for attempt := 0; attempt < storage.SlugInsertAttempts; attempt++ {
		allocated := false
		if project.IsPublic && project.Slug == nil {
			candidate := service.allocator.Allocate(ctx, storage.GlobalSlugScope(&model.Project{}).Exists(service.database))
			project.Slug = &candidate
			allocated = true
		}
		saveErr := service.database.WithContext(ctx).Model(&model.Project{}).Where("id = ?", project.ID).Updates(map[string]any{
			"name":        project.Name,
			"website_url": project.WebsiteURL,
			"icon_url":    project.IconURL,
			"is_public":   project.IsPublic,
			"slug":        project.Slug,
			"settings":    project.Settings,
		}).Error
		if saveErr == nil {
			return service.requireProject(ctx, project.OwnerID)
		}
		if !storage.IsUniqueViolation(saveErr) {
			return model.Project{}, service.internal("update_project", saveErr)
		}
		if !allocated || !mayAllocate {
			return model.Project{}, apperr.Conflict(apperr.CodeSlugTaken, "slug is already in use")
		}
		project.Slug = nil
	}
	return model.Project{}, apperr.Conflict(apperr.CodeSlugExhausted, "could not allocate a public slug")
}

// Stats counts the project's testimonials per status plus its groups and forms.
func (service *Service) Stats(ctx context.Context, ownerID string) (Stats, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}

	var rows []struct {
		Status model.TestimonialStatus
		Count  int64
	}
	if err := service.database.WithContext(ctx).Model(&model.Testimonial{}).
		Select("status, COUNT(*) AS count").
		Where("project_id = ?", project.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return Stats{}, service.internal("count_testimonials", err)
	}

	var stats Stats
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case model.StatusPending:
			stats.Pending = row.Count
		case model.StatusApproved:
			stats.Approved = row.Count
		case model.StatusRejected:
			stats.Rejected = row.Count
		case model.StatusFlagged:
			stats.Flagged = row.Count
		}
	}
	if err := service.database.WithContext(ctx).Model(&model.Group{}).Where("project_id = ?", project.ID).Count(&stats.Groups).Error; err != nil {
		return Stats{}, service.internal("count_groups", err)
	}
	if err := service.database.WithContext(ctx).Model(&model.Form{}).Where("project_id = ?", project.ID).Count(&stats.Forms).Error; err != nil {
		return Stats{}, service.internal("count_forms", err)
	}
	return stats, nil
}

func (service *Service) invalidate(ctx context.Context, projectID string) {
	if service.invalidator == nil {
		return
	}
	if err := service.invalidator.InvalidateProject(ctx, projectID); err != nil {
		service.logger.Warn("invalidate_widget_cache", zap.Error(err), zap.String("project_id", projectID))
	}
}

func (service *Service) internal(event string, err error) error {
	service.logger.Error(event, zap.Error(err))
	return apperr.Internal(err)
}
