package projects

import (
	"errors"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

// validationError maps a model constructor error to a validation error with a stable code.
func validationError(err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidStatus):
		return apperr.Validation(apperr.CodeInvalidStatus, err.Error())
	case errors.Is(err, model.ErrInvalidGroupColor):
		return apperr.Validation(apperr.CodeInvalidColor, err.Error())
	case errors.Is(err, model.ErrInvalidGroupSlug),
		errors.Is(err, model.ErrInvalidFormSlug),
		errors.Is(err, model.ErrInvalidTestimonialSlug):
		return apperr.Validation(apperr.CodeInvalidSlug, err.Error())
	default:
		return apperr.Validation(apperr.CodeInvalidInput, err.Error())
	}
}

var modelErrors = []error{
	model.ErrInvalidFormProject,
	model.ErrInvalidFormSlug,
	model.ErrInvalidFormName,
	model.ErrInvalidFormDesc,
	model.ErrInvalidFormFields,
	model.ErrInvalidFormSettings,
	model.ErrInvalidGroupProject,
	model.ErrInvalidGroupSlug,
	model.ErrInvalidGroupName,
	model.ErrInvalidGroupColor,
	model.ErrInvalidGroupDescription,
	model.ErrInvalidProjectOwner,
	model.ErrInvalidProjectName,
	model.ErrInvalidProjectWebsite,
	model.ErrInvalidPageSettings,
	model.ErrInvalidStatus,
	model.ErrInvalidSource,
	model.ErrInvalidTestimonialProject,
	model.ErrInvalidTestimonialSlug,
	model.ErrInvalidCustomerName,
	model.ErrInvalidCustomerEmail,
	model.ErrInvalidTestimonialContent,
	model.ErrInvalidTestimonialRating,
	model.ErrInvalidTestimonialTags,
	model.ErrInvalidTestimonialCustomer,
}

func isModelError(err error) bool {
	for _, candidate := range modelErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
