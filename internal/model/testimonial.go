package model

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
)

// TestimonialStatus is the moderation state of a testimonial.
type TestimonialStatus string

const (
	StatusPending  TestimonialStatus = "pending"
	StatusApproved TestimonialStatus = "approved"
	StatusRejected TestimonialStatus = "rejected"
	StatusFlagged  TestimonialStatus = "flagged"
)

// TestimonialSource records how a testimonial entered the system.
type TestimonialSource string

const (
	SourceForm   TestimonialSource = "form"
	SourceManual TestimonialSource = "manual"
	SourceImport TestimonialSource = "import"
	SourceScrape TestimonialSource = "scrape"
)

const (
	MinRating = 1
	MaxRating = 5

	testimonialNameMaxLength    = 200
	testimonialEmailMaxLength   = 320
	testimonialCompanyMaxLength = 200
	testimonialTitleMaxLength   = 200
	testimonialImageMaxLength   = 1000
	testimonialContentMaxLength = 10000
	testimonialTagMaxLength     = 50
	testimonialMaxTags          = 20
)

var (
	ErrInvalidStatus              = errors.New("invalid_status")
	ErrInvalidSource              = errors.New("invalid_source")
	ErrInvalidTestimonialProject  = errors.New("invalid_testimonial_project")
	ErrInvalidTestimonialSlug     = errors.New("invalid_testimonial_slug")
	ErrInvalidCustomerName        = errors.New("invalid_customer_name")
	ErrInvalidCustomerEmail       = errors.New("invalid_customer_email")
	ErrInvalidTestimonialContent  = errors.New("invalid_testimonial_content")
	ErrInvalidTestimonialRating   = errors.New("invalid_testimonial_rating")
	ErrInvalidTestimonialTags     = errors.New("invalid_testimonial_tags")
	ErrInvalidTestimonialCustomer = errors.New("invalid_testimonial_customer")
)

// ParseStatus validates a raw status value against the enumerated set.
func ParseStatus(raw string) (TestimonialStatus, error) {
	status := TestimonialStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusFlagged:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// ParseSource validates a raw source value; empty defaults to manual.
func ParseSource(raw string) (TestimonialSource, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return SourceManual, nil
	}
	source := TestimonialSource(trimmed)
	switch source {
	case SourceForm, SourceManual, SourceImport, SourceScrape:
		return source, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, raw)
	}
}

// Testimonial is a single customer statement owned by a project.
type Testimonial struct {
	ID               string                      `gorm:"primaryKey;size:36"`
	ProjectID        string                      `gorm:"not null;size:36;uniqueIndex:idx_testimonials_project_slug"`
	GroupID          *string                     `gorm:"size:36;index"`
	Slug             string                      `gorm:"not null;size:6;uniqueIndex:idx_testimonials_project_slug"`
	CustomerName     string                      `gorm:"not null;size:200"`
	CustomerEmail    string                      `gorm:"size:320"`
	CustomerCompany  string                      `gorm:"size:200"`
	CustomerTitle    string                      `gorm:"size:200"`
	CustomerImageURL string                      `gorm:"size:1000"`
	Content          string                      `gorm:"not null;type:text"`
	Rating           *int                        `gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)"`
	Status           TestimonialStatus           `gorm:"not null;size:16;index"`
	IsPublic         bool                        `gorm:"not null"`
	Source           TestimonialSource           `gorm:"not null;size:16"`
	SourceMetadata   datatypes.JSONMap           `gorm:"type:json"`
	Tags             datatypes.JSONSlice[string] `gorm:"type:json"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time                   `gorm:"autoUpdateTime"`
	ApprovedAt       *time.Time
}

// HasAnyTag reports whether the testimonial carries at least one of the given normalized tags.
func (testimonial Testimonial) HasAnyTag(tags []string) bool {
	for _, ownTag := range testimonial.Tags {
		for _, wantedTag := range tags {
			if ownTag == wantedTag {
				return true
			}
		}
	}
	return false
}

// TestimonialInput holds the raw values used to construct a Testimonial.
type TestimonialInput struct {
	ProjectID        string
	GroupID          *string
	Slug             string
	CustomerName     string
	CustomerEmail    string
	CustomerCompany  string
	CustomerTitle    string
	CustomerImageURL string
	Content          string
	Rating           *int
	IsPublic         bool
	Source           string
	SourceMetadata   map[string]any
	Tags             []string
}

// NewTestimonial constructs a pending Testimonial with validated, normalized fields.
func NewTestimonial(input TestimonialInput) (Testimonial, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Testimonial{}, ErrInvalidTestimonialProject
	}

	slugValue := strings.TrimSpace(input.Slug)
	if !slug.Valid(slugValue) {
		return Testimonial{}, fmt.Errorf("%w: %q", ErrInvalidTestimonialSlug, input.Slug)
	}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" || len(name) > testimonialNameMaxLength {
		return Testimonial{}, ErrInvalidCustomerName
	}

	email, emailErr := NormalizeCustomerEmail(input.CustomerEmail)
	if emailErr != nil {
		return Testimonial{}, emailErr
	}

	content, contentErr := NormalizeContent(input.Content)
	if contentErr != nil {
		return Testimonial{}, contentErr
	}

	if err := ValidateRating(input.Rating); err != nil {
		return Testimonial{}, err
	}

	source, sourceErr := ParseSource(input.Source)
	if sourceErr != nil {
		return Testimonial{}, sourceErr
	}

	tags, tagsErr := NormalizeTags(input.Tags)
	if tagsErr != nil {
		return Testimonial{}, tagsErr
	}

	company := strings.TrimSpace(input.CustomerCompany)
	title := strings.TrimSpace(input.CustomerTitle)
	imageURL := strings.TrimSpace(input.CustomerImageURL)
	if len(company) > testimonialCompanyMaxLength || len(title) > testimonialTitleMaxLength || len(imageURL) > testimonialImageMaxLength {
		return Testimonial{}, ErrInvalidTestimonialCustomer
	}

	metadata := datatypes.JSONMap{}
	for key, value := range input.SourceMetadata {
		metadata[key] = value
	}

	return Testimonial{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		GroupID:          normalizeOptionalID(input.GroupID),
		Slug:             slugValue,
		CustomerName:     name,
		CustomerEmail:    email,
		CustomerCompany:  company,
		CustomerTitle:    title,
		CustomerImageURL: imageURL,
		Content:          content,
		Rating:           input.Rating,
		Status:           StatusPending,
		IsPublic:         input.IsPublic,
		Source:           source,
		SourceMetadata:   metadata,
		Tags:             datatypes.NewJSONSlice(tags),
	}, nil
}

// NormalizeCustomerEmail lowercases and validates a customer email address.
func NormalizeCustomerEmail(rawEmail string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	if email == "" || len(email) > testimonialEmailMaxLength {
		return "", fmt.Errorf("%w: empty or too long", ErrInvalidCustomerEmail)
	}
	if _, parseErr := mail.ParseAddress(email); parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCustomerEmail, parseErr)
	}
	return email, nil
}

// NormalizeContent trims testimonial text and enforces non-empty, bounded content.
func NormalizeContent(rawContent string) (string, error) {
	content := strings.TrimSpace(rawContent)
	if content == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTestimonialContent)
	}
	if len(content) > testimonialContentMaxLength {
		return "", fmt.Errorf("%w: too long", ErrInvalidTestimonialContent)
	}
	return content, nil
}

// ValidateRating accepts a nil rating or an integer within [MinRating, MaxRating].
func ValidateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	if *rating < MinRating || *rating > MaxRating {
		return fmt.Errorf("%w: %d", ErrInvalidTestimonialRating, *rating)
	}
	return nil
}

// NormalizeTags trims, lowercases, de-duplicates and sorts tags.
func NormalizeTags(rawTags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(rawTags))
	tags := make([]string, 0, len(rawTags))
	for _, rawTag := range rawTags {
		tag := strings.ToLower(strings.TrimSpace(rawTag))
		if tag == "" {
			continue
		}
		if len(tag) > testimonialTagMaxLength {
			return nil, fmt.Errorf("%w: tag too long", ErrInvalidTestimonialTags)
		}
		if _, duplicate := seen[tag]; duplicate {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) > testimonialMaxTags {
		return nil, fmt.Errorf("%w: too many tags", ErrInvalidTestimonialTags)
	}
	sort.Strings(tags)
	return tags, nil
}

// ValidTags normalizes rawTags like NormalizeTags but drops tags it would reject instead of
// failing: overlong tags are skipped and only the first allowed number of distinct tags is kept.
func ValidTags(rawTags []string) []string {
	seen := make(map[string]struct{}, len(rawTags))
	tags := make([]string, 0, len(rawTags))
	for _, rawTag := range rawTags {
		tag := strings.ToLower(strings.TrimSpace(rawTag))
		if tag == "" || len(tag) > testimonialTagMaxLength {
			continue
		}
		if _, duplicate := seen[tag]; duplicate {
			continue
		}
		if len(tags) == testimonialMaxTags {
			break
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// FilterTags normalizes a tag filter without length or count limits. Tags a testimonial could
// never carry stay in the filter and simply match nothing.
func FilterTags(rawTags []string) []string {
	seen := make(map[string]struct{}, len(rawTags))
	tags := make([]string, 0, len(rawTags))
	for _, rawTag := range rawTags {
		tag := strings.ToLower(strings.TrimSpace(rawTag))
		if tag == "" {
			continue
		}
		if _, duplicate := seen[tag]; !duplicate {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// SplitTags parses a comma separated tag list into normalized tags, dropping invalid entries.
func SplitTags(rawList string) []string {
	if strings.TrimSpace(rawList) == "" {
		return nil
	}
	return ValidTags(strings.Split(rawList, ","))
}

func normalizeOptionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
