package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
)

// FormFieldType enumerates the input controls a collection form may render.
type FormFieldType string

const (
	FieldTypeText     FormFieldType = "text"
	FieldTypeTextarea FormFieldType = "textarea"
	FieldTypeEmail    FormFieldType = "email"
	FieldTypeRating   FormFieldType = "rating"
	FieldTypeFile     FormFieldType = "file"
	FieldTypeSelect   FormFieldType = "select"
	FieldTypeCheckbox FormFieldType = "checkbox"
)

const (
	formNameMaxLength        = 200
	formDescriptionMaxLength = 2000
	formFieldNameMaxLength   = 100
	formFieldLabelMaxLength  = 200
	formMaxFields            = 50

	DefaultFormMaxFileSizeBytes = 5 << 20
)

var (
	ErrInvalidFormProject  = errors.New("invalid_form_project")
	ErrInvalidFormSlug     = errors.New("invalid_form_slug")
	ErrInvalidFormName     = errors.New("invalid_form_name")
	ErrInvalidFormDesc     = errors.New("invalid_form_description")
	ErrInvalidFormFields   = errors.New("invalid_form_fields")
	ErrInvalidFormSettings = errors.New("invalid_form_settings")
)

// FormField describes one input of a collection form.
type FormField struct {
	Name     string        `json:"name"`
	Type     FormFieldType `json:"type"`
	Label    string        `json:"label"`
	Required bool          `json:"required"`
	Options  []string      `json:"options,omitempty"`
}

// FormStyling captures the visual configuration of a hosted form.
type FormStyling struct {
	PrimaryColor    string `json:"primary_color"`
	BackgroundColor string `json:"background_color"`
	FontFamily      string `json:"font_family"`
	ButtonText      string `json:"button_text"`
}

// FormSettings captures submission policy for a form.
type FormSettings struct {
	MaxSubmissions   int    `json:"max_submissions"`
	SpamProtection   bool   `json:"spam_protection"`
	AllowFileUploads bool   `json:"allow_file_uploads"`
	MaxFileSizeBytes int64  `json:"max_file_size_bytes"`
	ThankYouMessage  string `json:"thank_you_message"`
}

// Form collects submissions that the ingestor turns into testimonials.
type Form struct {
	ID          string                         `gorm:"primaryKey;size:36"`
	ProjectID   string                         `gorm:"not null;size:36;index"`
	Slug        string                         `gorm:"not null;size:6;uniqueIndex"`
	Name        string                         `gorm:"not null;size:200"`
	Description string                         `gorm:"size:2000"`
	Fields      datatypes.JSONSlice[FormField] `gorm:"type:json"`
	Styling     datatypes.JSONType[FormStyling]
	Settings    datatypes.JSONType[FormSettings]
	IsActive    bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// RequiredFieldNames lists the names of fields marked required, in definition order.
func (form Form) RequiredFieldNames() []string {
	var names []string
	for _, field := range form.Fields {
		if field.Required {
			names = append(names, field.Name)
		}
	}
	return names
}

// DefaultFormFields returns the field set a new form starts with.
func DefaultFormFields() []FormField {
	return []FormField{
		{Name: "name", Type: FieldTypeText, Label: "Your name", Required: true},
		{Name: "email", Type: FieldTypeEmail, Label: "Email", Required: true},
		{Name: "company", Type: FieldTypeText, Label: "Company"},
		{Name: "title", Type: FieldTypeText, Label: "Job title"},
		{Name: "testimonial", Type: FieldTypeTextarea, Label: "Your testimonial", Required: true},
		{Name: "rating", Type: FieldTypeRating, Label: "Rating"},
	}
}

// DefaultFormSettings returns the submission policy a new form starts with.
func DefaultFormSettings() FormSettings {
	return FormSettings{
		SpamProtection:   true,
		MaxFileSizeBytes: DefaultFormMaxFileSizeBytes,
		ThankYouMessage:  "Thank you for your testimonial!",
	}
}

// FormInput holds the raw values used to construct a Form.
type FormInput struct {
	ProjectID   string
	Slug        string
	Name        string
	Description string
	Fields      []FormField
	Styling     *FormStyling
	Settings    *FormSettings
	IsActive    *bool
}

// NewForm constructs an active Form with validated fields and defaults applied.
func NewForm(input FormInput) (Form, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Form{}, ErrInvalidFormProject
	}

	slugValue := strings.TrimSpace(input.Slug)
	if !slug.Valid(slugValue) {
		return Form{}, fmt.Errorf("%w: %q", ErrInvalidFormSlug, input.Slug)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > formNameMaxLength {
		return Form{}, ErrInvalidFormName
	}

	description := strings.TrimSpace(input.Description)
	if len(description) > formDescriptionMaxLength {
		return Form{}, ErrInvalidFormDesc
	}

	fields := input.Fields
	if len(fields) == 0 {
		fields = DefaultFormFields()
	}
	normalizedFields, fieldsErr := NormalizeFormFields(fields)
	if fieldsErr != nil {
		return Form{}, fieldsErr
	}

	styling := FormStyling{}
	if input.Styling != nil {
		styling = *input.Styling
	}

	settings := DefaultFormSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := settings.Validate(); err != nil {
		return Form{}, err
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	return Form{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Slug:        slugValue,
		Name:        name,
		Description: description,
		Fields:      datatypes.NewJSONSlice(normalizedFields),
		Styling:     datatypes.NewJSONType(styling),
		Settings:    datatypes.NewJSONType(settings),
		IsActive:    isActive,
	}, nil
}

// Validate checks submission policy bounds.
func (settings FormSettings) Validate() error {
	if settings.MaxSubmissions < 0 {
		return fmt.Errorf("%w: max_submissions", ErrInvalidFormSettings)
	}
	if settings.MaxFileSizeBytes < 0 {
		return fmt.Errorf("%w: max_file_size_bytes", ErrInvalidFormSettings)
	}
	return nil
}

// NormalizeFormFields validates field definitions and rejects duplicate names.
func NormalizeFormFields(fields []FormField) ([]FormField, error) {
	if len(fields) > formMaxFields {
		return nil, fmt.Errorf("%w: too many fields", ErrInvalidFormFields)
	}
	seenNames := make(map[string]struct{}, len(fields))
	normalized := make([]FormField, 0, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" || len(name) > formFieldNameMaxLength {
			return nil, fmt.Errorf("%w: field name %q", ErrInvalidFormFields, field.Name)
		}
		if _, duplicate := seenNames[name]; duplicate {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidFormFields, name)
		}
		seenNames[name] = struct{}{}

		switch field.Type {
		case FieldTypeText, FieldTypeTextarea, FieldTypeEmail, FieldTypeRating, FieldTypeFile, FieldTypeSelect, FieldTypeCheckbox:
		default:
			return nil, fmt.Errorf("%w: field type %q", ErrInvalidFormFields, field.Type)
		}

		label := strings.TrimSpace(field.Label)
		if label == "" {
			label = name
		}
		if len(label) > formFieldLabelMaxLength {
			return nil, fmt.Errorf("%w: field label too long", ErrInvalidFormFields)
		}

		normalized = append(normalized, FormField{
			Name:     name,
			Type:     field.Type,
			Label:    label,
			Required: field.Required,
			Options:  field.Options,
		})
	}
	return normalized, nil
}
