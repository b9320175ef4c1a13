package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	submissionIPMaxLength        = 64
	submissionUserAgentMaxLength = 400
)

var ErrInvalidSubmissionForm = errors.New("invalid_submission_form")

// FormSubmission is the immutable audit record of one raw form payload.
type FormSubmission struct {
	ID            string            `gorm:"primaryKey;size:36"`
	FormID        string            `gorm:"not null;size:36;index"`
	ProjectID     string            `gorm:"not null;size:36;index"`
	Payload       datatypes.JSONMap `gorm:"type:json"`
	IP            string            `gorm:"size:64"`
	UserAgent     string            `gorm:"size:400"`
	IsSpam        bool              `gorm:"not null"`
	TestimonialID *string           `gorm:"size:36;uniqueIndex"`
	CreatedAt     time.Time         `gorm:"autoCreateTime;index"`
}

// SubmissionInput holds the raw values used to construct a FormSubmission.
type SubmissionInput struct {
	FormID    string
	ProjectID string
	Payload   map[string]any
	IP        string
	UserAgent string
	IsSpam    bool
}

// NewFormSubmission constructs a FormSubmission, truncating request metadata to column limits.
func NewFormSubmission(input SubmissionInput) (FormSubmission, error) {
	formID := strings.TrimSpace(input.FormID)
	projectID := strings.TrimSpace(input.ProjectID)
	if formID == "" || projectID == "" {
		return FormSubmission{}, ErrInvalidSubmissionForm
	}

	payload := datatypes.JSONMap{}
	for key, value := range input.Payload {
		payload[key] = value
	}

	return FormSubmission{
		ID:        uuid.NewString(),
		FormID:    formID,
		ProjectID: projectID,
		Payload:   payload,
		IP:        truncate(strings.TrimSpace(input.IP), submissionIPMaxLength),
		UserAgent: truncate(strings.TrimSpace(input.UserAgent), submissionUserAgentMaxLength),
		IsSpam:    input.IsSpam,
	}, nil
}

func truncate(input string, max int) string {
	if len(input) <= max {
		return input
	}
	return input[:max]
}
