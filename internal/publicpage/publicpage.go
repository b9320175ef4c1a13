// Package publicpage reads the hosted public pages of a project. Every failure is reported as
// not found so responses never reveal whether a private resource exists.
package publicpage

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/visibility"
)

const (
	projectResource     = "project"
	groupResource       = "group"
	testimonialResource = "testimonial"
)

// ProjectView holds the project fields a public page may display.
type ProjectView struct {
	Name       string                   `json:"name"`
	Slug       string                   `json:"slug"`
	WebsiteURL string                   `json:"websiteUrl"`
	IconURL    string                   `json:"iconUrl"`
	Settings   model.PublicPageSettings `json:"settings"`
}

type GroupView struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// TestimonialView omits customer email, moderation state and source metadata.
type TestimonialView struct {
	ID               string     `json:"id"`
	Slug             string     `json:"slug"`
	CustomerName     string     `json:"customerName"`
	CustomerCompany  string     `json:"customerCompany"`
	CustomerTitle    string     `json:"customerTitle"`
	CustomerImageURL string     `json:"customerImageUrl"`
	Content          string     `json:"content"`
	Rating           *int       `json:"rating"`
	Tags             []string   `json:"tags"`
	CreatedAt        time.Time  `json:"createdAt"`
	ApprovedAt       *time.Time `json:"approvedAt"`
}

type ProjectPage struct {
	Project      ProjectView       `json:"project"`
	Testimonials []TestimonialView `json:"testimonials"`
}

type GroupPage struct {
	Project      ProjectView       `json:"project"`
	Group        GroupView         `json:"group"`
	Testimonials []TestimonialView `json:"testimonials"`
}

type TestimonialPage struct {
	Project     ProjectView     `json:"project"`
	Testimonial TestimonialView `json:"testimonial"`
}

type Reader struct {
	database *gorm.DB
	logger   *zap.Logger
}

func NewReader(database *gorm.DB, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{database: database, logger: logger}
}

// ProjectPage lists the visible testimonials of a public project, oldest first.
func (reader *Reader) ProjectPage(ctx context.Context, projectSlug string) (ProjectPage, error) {
	project, err := reader.publicProject(ctx, projectSlug)
	if err != nil {
		return ProjectPage{}, err
	}

	var testimonials []model.Testimonial
	if err := reader.database.WithContext(ctx).
		Scopes(visibility.PageScope(project)).
		Order("created_at ASC").
		Find(&testimonials).Error; err != nil {
		return ProjectPage{}, reader.internal("public_project_testimonials", err)
	}

	return ProjectPage{
		Project:      projectView(project),
		Testimonials: testimonialViews(visibility.FilterPublic(testimonials, project)),
	}, nil
}

// GroupPage lists the visible testimonials of one group of a public project, oldest first.
func (reader *Reader) GroupPage(ctx context.Context, projectSlug string, groupSlug string) (GroupPage, error) {
	project, err := reader.publicProject(ctx, projectSlug)
	if err != nil {
		return GroupPage{}, err
	}
	if !slug.Valid(groupSlug) {
		return GroupPage{}, apperr.NotFound(groupResource)
	}

	var group model.Group
	if err := reader.database.WithContext(ctx).
		Where("project_id = ? AND slug = ?", project.ID, groupSlug).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GroupPage{}, apperr.NotFound(groupResource)
		}
		return GroupPage{}, reader.internal("public_group", err)
	}

	var testimonials []model.Testimonial
	if err := reader.database.WithContext(ctx).
		Scopes(visibility.PageScope(project)).
		Where("group_id = ?", group.ID).
		Order("created_at ASC").
		Find(&testimonials).Error; err != nil {
		return GroupPage{}, reader.internal("public_group_testimonials", err)
	}

	return GroupPage{
		Project: projectView(project),
		Group: GroupView{
			Name:        group.Name,
			Slug:        group.Slug,
			Color:       group.Color,
			Description: group.Description,
		},
		Testimonials: testimonialViews(visibility.FilterPublic(testimonials, project)),
	}, nil
}

// Testimonial returns one visible testimonial addressed by id or by its per-project slug. The
// testimonial must belong to the project named by projectSlug.
func (reader *Reader) Testimonial(ctx context.Context, projectSlug string, idOrSlug string) (TestimonialPage, error) {
	project, err := reader.publicProject(ctx, projectSlug)
	if err != nil {
		return TestimonialPage{}, err
	}
	identifier := strings.TrimSpace(idOrSlug)
	if identifier == "" {
		return TestimonialPage{}, apperr.NotFound(testimonialResource)
	}

	query := reader.database.WithContext(ctx).Where("project_id = ?", project.ID)
	if slug.Valid(identifier) {
		query = query.Where("id = ? OR slug = ?", identifier, identifier)
	} else {
		query = query.Where("id = ?", identifier)
	}
	var testimonial model.Testimonial
	if err := query.First(&testimonial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TestimonialPage{}, apperr.NotFound(testimonialResource)
		}
		return TestimonialPage{}, reader.internal("public_testimonial", err)
	}
	if testimonial.ProjectID != project.ID || !visibility.IsPubliclyVisible(testimonial, project) {
		return TestimonialPage{}, apperr.NotFound(testimonialResource)
	}

	return TestimonialPage{
		Project:     projectView(project),
		Testimonial: testimonialView(testimonial),
	}, nil
}

func (reader *Reader) publicProject(ctx context.Context, projectSlug string) (model.Project, error) {
	if !slug.Valid(projectSlug) {
		return model.Project{}, apperr.NotFound(projectResource)
	}
	var project model.Project
	if err := reader.database.WithContext(ctx).Where("slug = ?", projectSlug).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Project{}, apperr.NotFound(projectResource)
		}
		return model.Project{}, reader.internal("public_project", err)
	}
	if !project.IsPublic {
		return model.Project{}, apperr.NotFound(projectResource)
	}
	return project, nil
}

func (reader *Reader) internal(event string, err error) error {
	reader.logger.Error(event, zap.Error(err))
	return apperr.Internal(err)
}

func projectView(project model.Project) ProjectView {
	return ProjectView{
		Name:       project.Name,
		Slug:       project.PublicSlug(),
		WebsiteURL: project.WebsiteURL,
		IconURL:    project.IconURL,
		Settings:   project.Settings.Data(),
	}
}

func testimonialViews(testimonials []model.Testimonial) []TestimonialView {
	views := make([]TestimonialView, 0, len(testimonials))
	for _, testimonial := range testimonials {
		views = append(views, testimonialView(testimonial))
	}
	return views
}

func testimonialView(testimonial model.Testimonial) TestimonialView {
	tags := []string(testimonial.Tags)
	if tags == nil {
		tags = []string{}
	}
	return TestimonialView{
		ID:               testimonial.ID,
		Slug:             testimonial.Slug,
		CustomerName:     testimonial.CustomerName,
		CustomerCompany:  testimonial.CustomerCompany,
		CustomerTitle:    testimonial.CustomerTitle,
		CustomerImageURL: testimonial.CustomerImageURL,
		Content:          testimonial.Content,
		Rating:           testimonial.Rating,
		Tags:             tags,
		CreatedAt:        testimonial.CreatedAt.UTC(),
		ApprovedAt:       testimonial.ApprovedAt,
	}
}
