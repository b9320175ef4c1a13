package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
)

// SlugInsertAttempts bounds how many fresh slugs CreateWithSlug tries after unique violations.
const SlugInsertAttempts = 5

// ErrSlugExhausted is returned when every insert attempt hit a unique violation.
var ErrSlugExhausted = errors.New("storage: slug attempts exhausted")

// IsUniqueViolation reports whether err came from a unique constraint on either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value") ||
		strings.Contains(message, "sqlstate 23505")
}

// SlugScope names the table and the namespace a slug must be unique in.
type SlugScope struct {
	Model      any
	Column     string
	Conditions map[string]any
}

// ProjectSlugScope scopes slugs to one project, as used by testimonials and groups.
func ProjectSlugScope(record any, projectID string) SlugScope {
	return SlugScope{Model: record, Column: "slug", Conditions: map[string]any{"project_id": projectID}}
}

// GlobalSlugScope scopes slugs to a whole table, as used by forms and projects.
func GlobalSlugScope(record any) SlugScope {
	return SlugScope{Model: record, Column: "slug"}
}

// Exists returns the existence check the allocator calls for candidates in this scope.
func (scope SlugScope) Exists(database *gorm.DB) slug.ExistsFunc {
	column := scope.Column
	if column == "" {
		column = "slug"
	}
	return func(ctx context.Context, candidate string) (bool, error) {
		query := database.WithContext(ctx).Model(scope.Model)
		if len(scope.Conditions) > 0 {
			query = query.Where(scope.Conditions)
		}
		var count int64
		if err := query.Where(column+" = ?", candidate).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}
}

// CreateWithSlug allocates a slug in scope, builds the record for it and inserts the record. An
// insert rejected by a unique index is retried with a fresh slug.
func CreateWithSlug[T any](ctx context.Context, database *gorm.DB, allocator *slug.Allocator, scope SlugScope, build func(slugValue string) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < SlugInsertAttempts; attempt++ {
		candidate := allocator.Allocate(ctx, scope.Exists(database))
		record, buildErr := build(candidate)
		if buildErr != nil {
			return zero, buildErr
		}
		createErr := database.WithContext(ctx).Create(&record).Error
		if createErr == nil {
			return record, nil
		}
		if !IsUniqueViolation(createErr) {
			return zero, createErr
		}
	}
	return zero, fmt.Errorf("%w: %d attempts", ErrSlugExhausted, SlugInsertAttempts)
}
