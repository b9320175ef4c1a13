package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
)

// DefaultGroupColor is applied when a group is created without a color.
const DefaultGroupColor = "#3B82F6"

const (
	groupNameMaxLength        = 200
	groupDescriptionMaxLength = 2000
)

var (
	ErrInvalidGroupProject     = errors.New("invalid_group_project")
	ErrInvalidGroupSlug        = errors.New("invalid_group_slug")
	ErrInvalidGroupName        = errors.New("invalid_group_name")
	ErrInvalidGroupColor       = errors.New("invalid_group_color")
	ErrInvalidGroupDescription = errors.New("invalid_group_description")
)

var groupColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Group collects testimonials of one project under a shared public page.
type Group struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ProjectID   string    `gorm:"not null;size:36;uniqueIndex:idx_groups_project_slug"`
	Slug        string    `gorm:"not null;size:6;uniqueIndex:idx_groups_project_slug"`
	Name        string    `gorm:"not null;size:200"`
	Color       string    `gorm:"not null;size:7"`
	Description string    `gorm:"size:2000"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// GroupInput holds the raw values used to construct a Group.
type GroupInput struct {
	ProjectID   string
	Slug        string
	Name        string
	Color       string
	Description string
}

// NewGroup constructs a Group with validated, normalized fields.
func NewGroup(input GroupInput) (Group, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Group{}, ErrInvalidGroupProject
	}

	slugValue := strings.TrimSpace(input.Slug)
	if !slug.Valid(slugValue) {
		return Group{}, fmt.Errorf("%w: %q", ErrInvalidGroupSlug, input.Slug)
	}

	name, nameErr := NormalizeGroupName(input.Name)
	if nameErr != nil {
		return Group{}, nameErr
	}

	color, colorErr := NormalizeGroupColor(input.Color)
	if colorErr != nil {
		return Group{}, colorErr
	}

	description, descriptionErr := NormalizeGroupDescription(input.Description)
	if descriptionErr != nil {
		return Group{}, descriptionErr
	}

	return Group{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Slug:        slugValue,
		Name:        name,
		Color:       color,
		Description: description,
	}, nil
}

func NormalizeGroupName(rawName string) (string, error) {
	name := strings.TrimSpace(rawName)
	if name == "" || len(name) > groupNameMaxLength {
		return "", ErrInvalidGroupName
	}
	return name, nil
}

// NormalizeGroupColor returns DefaultGroupColor for an empty value and rejects anything but #RRGGBB.
func NormalizeGroupColor(rawColor string) (string, error) {
	color := strings.TrimSpace(rawColor)
	if color == "" {
		return DefaultGroupColor, nil
	}
	if !groupColorPattern.MatchString(color) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroupColor, rawColor)
	}
	return strings.ToUpper(color), nil
}

func NormalizeGroupDescription(rawDescription string) (string, error) {
	description := strings.TrimSpace(rawDescription)
	if len(description) > groupDescriptionMaxLength {
		return "", ErrInvalidGroupDescription
	}
	return description, nil
}
