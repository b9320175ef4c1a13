package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
)

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// fieldErrorCodes gives fields with a dedicated error code precedence over invalid_input.
var fieldErrorCodes = map[string]string{
	"Color":  apperr.CodeInvalidColor,
	"Slug":   apperr.CodeInvalidSlug,
	"Status": apperr.CodeInvalidStatus,
}

// validateRequest checks the validate tags of request and reports the first failing field.
func validateRequest(request any) error {
	validationErr := requestValidator.Struct(request)
	if validationErr == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(validationErr, &fieldErrors) || len(fieldErrors) == 0 {
		return apperr.Validation(apperr.CodeInvalidInput, validationErr.Error())
	}

	messages := make([]string, 0, len(fieldErrors))
	code := apperr.CodeInvalidInput
	for index, fieldError := range fieldErrors {
		messages = append(messages, fmt.Sprintf("%s failed %s", fieldError.Field(), fieldError.Tag()))
		if index == 0 {
			if fieldCode, special := fieldErrorCodes[fieldError.StructField()]; special {
				code = fieldCode
			}
		}
	}
	return apperr.Validation(code, strings.Join(messages, "; "))
}
