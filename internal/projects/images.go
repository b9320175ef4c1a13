package projects

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/media"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

// MaxImageBytes bounds customer image uploads.
const MaxImageBytes = model.DefaultFormMaxFileSizeBytes

// ImageUpload is an image received from the owner.
type ImageUpload struct {
	ContentType string
	Data        []byte
}

// AttachImage stores upload in the media store and points the testimonial's customer image at it.
func (service *Service) AttachImage(ctx context.Context, ownerID string, testimonialID string, upload ImageUpload) (model.Testimonial, error) {
	project, err := service.requireProject(ctx, ownerID)
	if err != nil {
		return model.Testimonial{}, err
	}
	testimonial, err := service.loadTestimonial(ctx, project.ID, testimonialID)
	if err != nil {
		return model.Testimonial{}, err
	}
	if service.mediaStore == nil {
		return model.Testimonial{}, apperr.Validation(apperr.CodeMediaStoreUnavailable, "image uploads are not configured")
	}
	if len(upload.Data) == 0 {
		return model.Testimonial{}, apperr.Validation(apperr.CodeInvalidInput, "empty image")
	}
	if len(upload.Data) > MaxImageBytes {
		return model.Testimonial{}, apperr.Validation(apperr.CodeFileTooLarge, "image exceeds the size limit")
	}

	key, keyErr := media.ImageKey(project.ID, upload.ContentType)
	if keyErr != nil {
		if errors.Is(keyErr, media.ErrUnsupportedContentType) {
			return model.Testimonial{}, apperr.Validation(apperr.CodeInvalidInput, keyErr.Error())
		}
		return model.Testimonial{}, service.internal("build_image_key", keyErr)
	}
	imageURL, putErr := service.mediaStore.Put(ctx, key, upload.ContentType, upload.Data)
	if putErr != nil {
		return model.Testimonial{}, service.internal("store_image", putErr)
	}

	if err := service.database.WithContext(ctx).Model(&model.Testimonial{}).
		Where("id = ? AND project_id = ?", testimonial.ID, project.ID).
		Update("customer_image_url", imageURL).Error; err != nil {
		return model.Testimonial{}, service.internal("update_testimonial_image", err)
	}
	service.invalidate(ctx, project.ID)
	return service.loadTestimonial(ctx, project.ID, testimonial.ID)
}
