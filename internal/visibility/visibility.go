// Package visibility decides which testimonials unauthenticated surfaces may serve.
//
// Two policies exist. The page policy guards the hosted public pages and requires the project to
// be public. The widget policy guards the embeddable widget, which is authorized by domain, so the
// project flag does not apply there. Both policies require an approved testimonial the owner marked
// public. Each policy exists as a predicate and as a query scope; the two forms must agree.
package visibility

import (
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

// IsPubliclyVisible applies the page policy.
func IsPubliclyVisible(testimonial model.Testimonial, project model.Project) bool {
	return project.IsPublic && IsWidgetVisible(testimonial)
}

// IsWidgetVisible applies the widget policy.
func IsWidgetVisible(testimonial model.Testimonial) bool {
	return testimonial.Status == model.StatusApproved && testimonial.IsPublic
}

// FilterPublic keeps the project's testimonials that pass the page policy, preserving order.
func FilterPublic(testimonials []model.Testimonial, project model.Project) []model.Testimonial {
	visible := make([]model.Testimonial, 0, len(testimonials))
	for _, testimonial := range testimonials {
		if testimonial.ProjectID == project.ID && IsPubliclyVisible(testimonial, project) {
			visible = append(visible, testimonial)
		}
	}
	return visible
}

// WidgetScope restricts a testimonial query to the widget policy within one project.
func WidgetScope(projectID string) func(*gorm.DB) *gorm.DB {
	return func(database *gorm.DB) *gorm.DB {
		return database.
			Where("project_id = ?", projectID).
			Where("status = ?", model.StatusApproved).
			Where("is_public = ?", true)
	}
}

// PageScope restricts a testimonial query to the page policy. A private project yields no rows.
func PageScope(project model.Project) func(*gorm.DB) *gorm.DB {
	return func(database *gorm.DB) *gorm.DB {
		if !project.IsPublic {
			return database.Where("1 = 0")
		}
		return WidgetScope(project.ID)(database)
	}
}
