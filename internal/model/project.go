package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PageThemeLight = "light"
	PageThemeDark  = "dark"

	PageLayoutGrid     = "grid"
	PageLayoutList     = "list"
	PageLayoutCarousel = "carousel"

	projectOwnerMaxLength   = 320
	projectNameMaxLength    = 200
	projectWebsiteMaxLength = 500
)

var (
	ErrInvalidProjectOwner   = errors.New("invalid_project_owner")
	ErrInvalidProjectName    = errors.New("invalid_project_name")
	ErrInvalidProjectWebsite = errors.New("invalid_project_website")
	ErrInvalidPageSettings   = errors.New("invalid_page_settings")
)

// PublicPageSettings controls how the hosted public page renders a project.
type PublicPageSettings struct {
	Theme       string `json:"theme"`
	Layout      string `json:"layout"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	ShowRating  bool   `json:"show_rating"`
	ShowCompany bool   `json:"show_company"`
	ShowTitle   bool   `json:"show_title"`
	ShowImage   bool   `json:"show_image"`
	ShowDate    bool   `json:"show_date"`
}

// DefaultPublicPageSettings returns the settings a project starts with at onboarding.
func DefaultPublicPageSettings() PublicPageSettings {
	return PublicPageSettings{
		Theme:       PageThemeLight,
		Layout:      PageLayoutGrid,
		ShowRating:  true,
		ShowCompany: true,
		ShowTitle:   true,
		ShowImage:   true,
	}
}

// Validate checks the enumerated settings values.
func (settings PublicPageSettings) Validate() error {
	switch settings.Theme {
	case PageThemeLight, PageThemeDark:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidPageSettings, settings.Theme)
	}
	switch settings.Layout {
	case PageLayoutGrid, PageLayoutList, PageLayoutCarousel:
	default:
		return fmt.Errorf("%w: layout %q", ErrInvalidPageSettings, settings.Layout)
	}
	return nil
}

// Project owns the testimonials, groups and forms of exactly one owner.
type Project struct {
	ID         string  `gorm:"primaryKey;size:36"`
	OwnerID    string  `gorm:"not null;size:320;uniqueIndex"`
	Name       string  `gorm:"not null;size:200"`
	Slug       *string `gorm:"size:6;uniqueIndex"`
	IsPublic   bool    `gorm:"not null"`
	WebsiteURL string  `gorm:"size:500"`
	IconURL    string  `gorm:"size:1000"`
	Settings   datatypes.JSONType[PublicPageSettings]
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// PublicSlug returns the project's public slug or an empty string.
func (project Project) PublicSlug() string {
	if project.Slug == nil {
		return ""
	}
	return *project.Slug
}

// ProjectInput holds the raw values used to construct a Project.
type ProjectInput struct {
	OwnerID    string
	Name       string
	WebsiteURL string
	Settings   *PublicPageSettings
}

// NewProject constructs a private Project with validated, normalized fields.
func NewProject(input ProjectInput) (Project, error) {
	ownerID := NormalizeOwnerID(input.OwnerID)
	if ownerID == "" || len(ownerID) > projectOwnerMaxLength {
		return Project{}, ErrInvalidProjectOwner
	}

	name, nameErr := NormalizeProjectName(input.Name)
	if nameErr != nil {
		return Project{}, nameErr
	}

	websiteURL, websiteErr := NormalizeWebsiteURL(input.WebsiteURL)
	if websiteErr != nil {
		return Project{}, websiteErr
	}

	settings := DefaultPublicPageSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := settings.Validate(); err != nil {
		return Project{}, err
	}

	return Project{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		WebsiteURL: websiteURL,
		Settings:   datatypes.NewJSONType(settings),
	}, nil
}

func NormalizeProjectName(rawName string) (string, error) {
	name := strings.TrimSpace(rawName)
	if name == "" || len(name) > projectNameMaxLength {
		return "", ErrInvalidProjectName
	}
	return name, nil
}

// NormalizeOwnerID lowercases and trims an owner identity.
func NormalizeOwnerID(ownerID string) string {
	return strings.ToLower(strings.TrimSpace(ownerID))
}

// NormalizeWebsiteURL accepts an empty value or an absolute http(s) URL.
func NormalizeWebsiteURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > projectWebsiteMaxLength {
		return "", fmt.Errorf("%w: too long", ErrInvalidProjectWebsite)
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProjectWebsite, parseErr)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidProjectWebsite, trimmed)
	}
	return trimmed, nil
}
