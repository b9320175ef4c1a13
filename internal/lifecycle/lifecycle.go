// Package lifecycle moves testimonials through the moderation states.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

const testimonialResource = "testimonial"

// Invalidator drops cached public views of a project after its testimonials change.
type Invalidator interface {
	InvalidateProject(ctx context.Context, projectID string) error
}

// Apply sets the target status on testimonial. Every status is reachable from every other.
// Entering approved stamps approvedAt with now, leaving approved clears it, and any other
// transition leaves it untouched.
func Apply(testimonial *model.Testimonial, target model.TestimonialStatus, now time.Time) error {
	status, parseErr := model.ParseStatus(string(target))
	if parseErr != nil {
		return apperr.Validation(apperr.CodeInvalidStatus, parseErr.Error())
	}
	previous := testimonial.Status
	testimonial.Status = status
	switch {
	case status == model.StatusApproved:
		approvedAt := now.UTC()
		testimonial.ApprovedAt = &approvedAt
	case previous == model.StatusApproved:
		testimonial.ApprovedAt = nil
	}
	return nil
}

// Engine persists transitions. Callers verify that the acting owner owns projectID; the engine
// only guarantees the testimonial belongs to that project.
type Engine struct {
	database    *gorm.DB
	logger      *zap.Logger
	publisher   events.Publisher
	invalidator Invalidator
	clock       func() time.Time
}

func NewEngine(database *gorm.DB, logger *zap.Logger, publisher events.Publisher, invalidator Invalidator) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		database:    database,
		logger:      logger,
		publisher:   events.ResolvePublisher(publisher),
		invalidator: invalidator,
		clock:       time.Now,
	}
}

// Transition applies one status change as a locked read-modify-write. Concurrent transitions of
// the same testimonial serialize and the last writer wins.
func (engine *Engine) Transition(ctx context.Context, projectID string, testimonialID string, target model.TestimonialStatus) (model.Testimonial, error) {
	updated, err := engine.TransitionMany(ctx, projectID, []string{testimonialID}, target)
	if err != nil {
		return model.Testimonial{}, err
	}
	return updated[0], nil
}

// TransitionMany applies the same status change to several testimonials in one transaction. The
// whole batch fails when any id is not part of the project.
func (engine *Engine) TransitionMany(ctx context.Context, projectID string, testimonialIDs []string, target model.TestimonialStatus) ([]model.Testimonial, error) {
	if _, parseErr := model.ParseStatus(string(target)); parseErr != nil {
		return nil, apperr.Validation(apperr.CodeInvalidStatus, parseErr.Error())
	}
	identifiers := uniqueIdentifiers(testimonialIDs)
	if len(identifiers) == 0 {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "no testimonials selected")
	}

	now := engine.clock()
	var updated []model.Testimonial
	transactionErr := engine.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var records []model.Testimonial
		if err := transaction.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("project_id = ? AND id IN ?", projectID, identifiers).
			Find(&records).Error; err != nil {
			return err
		}
		if len(records) != len(identifiers) {
			return apperr.NotFound(testimonialResource)
		}

		byID := make(map[string]model.Testimonial, len(records))
		for _, record := range records {
			if err := Apply(&record, target, now); err != nil {
				return err
			}
			if err := transaction.Model(&model.Testimonial{}).
				Where("id = ? AND project_id = ?", record.ID, projectID).
				Updates(map[string]any{
					"status":      record.Status,
					"approved_at": record.ApprovedAt,
					"updated_at":  now.UTC(),
				}).Error; err != nil {
				return err
			}
			record.UpdatedAt = now.UTC()
			byID[record.ID] = record
		}
		updated = make([]model.Testimonial, 0, len(identifiers))
		for _, identifier := range identifiers {
			updated = append(updated, byID[identifier])
		}
		return nil
	})
	if transactionErr != nil {
		var appErr *apperr.Error
		if errors.As(transactionErr, &appErr) {
			return nil, appErr
		}
		engine.logger.Error("transition_status", zap.Error(transactionErr), zap.String("project_id", projectID))
		return nil, apperr.Internal(transactionErr)
	}

	engine.afterCommit(ctx, projectID, updated)
	return updated, nil
}

func (engine *Engine) afterCommit(ctx context.Context, projectID string, updated []model.Testimonial) {
	if engine.invalidator != nil {
		if err := engine.invalidator.InvalidateProject(ctx, projectID); err != nil {
			engine.logger.Warn("invalidate_widget_cache", zap.Error(err), zap.String("project_id", projectID))
		}
	}
	for _, testimonial := range updated {
		metrics.ObserveTransition(string(testimonial.Status))
		events.PublishBestEffort(ctx, engine.publisher, engine.logger,
			events.NewEvent(events.TypeTestimonialStatusChanged, projectID, testimonial.ID, string(testimonial.Status)))
	}
}

func uniqueIdentifiers(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	unique := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		if identifier == "" {
			continue
		}
		if _, duplicate := seen[identifier]; duplicate {
			continue
		}
		seen[identifier] = struct{}{}
		unique = append(unique, identifier)
	}
	return unique
}
