package storage

import (
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

// backfillTestimonialDefaults repairs rows written by imports that bypassed the model constructors.
func backfillTestimonialDefaults(database *gorm.DB) error {
	if err := database.Model(&model.Testimonial{}).
		Where("source IS NULL OR TRIM(source) = ''").
		Update("source", string(model.SourceImport)).Error; err != nil {
		return err
	}

	return database.Model(&model.Testimonial{}).
		Where("status <> ? AND approved_at IS NOT NULL", model.StatusApproved).
		Update("approved_at", nil).Error
}
