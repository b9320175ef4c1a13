// Package ingest turns raw form submissions into pending testimonials.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
)

const (
	formResource = "form"

	metadataFormID        = "form_id"
	metadataFormName      = "form_name"
	metadataSubmissionID  = "submission_id"
	metadataMissingFields = "missing_fields"
)

// errTestimonialRejected marks payloads the testimonial constructor refused, as opposed to store
// failures.
var errTestimonialRejected = errors.New("ingest: testimonial rejected")

// RequestMeta carries the transport details stored with every submission.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Result describes what a submission produced. Testimonial is nil when the payload was
// incomplete, flagged as spam, or could not be turned into a testimonial.
type Result struct {
	Submission      model.FormSubmission
	Testimonial     *model.Testimonial
	ThankYouMessage string
}

type Ingestor struct {
	database  *gorm.DB
	allocator *slug.Allocator
	publisher events.Publisher
	logger    *zap.Logger
}

func NewIngestor(database *gorm.DB, allocator *slug.Allocator, publisher events.Publisher, logger *zap.Logger) *Ingestor {
	if allocator == nil {
		allocator = slug.NewAllocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		database:  database,
		allocator: allocator,
		publisher: events.ResolvePublisher(publisher),
		logger:    logger,
	}
}

// ResolveForm finds a form by id or by its global slug.
func (ingestor *Ingestor) ResolveForm(ctx context.Context, idOrSlug string) (model.Form, error) {
	identifier := strings.TrimSpace(idOrSlug)
	if identifier == "" {
		return model.Form{}, apperr.NotFound(formResource)
	}
	var form model.Form
	query := ingestor.database.WithContext(ctx)
	if slug.Valid(identifier) {
		query = query.Where("id = ? OR slug = ?", identifier, identifier)
	} else {
		query = query.Where("id = ?", identifier)
	}
	if err := query.First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Form{}, apperr.NotFound(formResource)
		}
		ingestor.logger.Error("load_form", zap.Error(err), zap.String("form", identifier))
		return model.Form{}, apperr.Internal(err)
	}
	return form, nil
}

// CheckAccepting fails when the form is inactive or has reached its submission limit.
func (ingestor *Ingestor) CheckAccepting(ctx context.Context, form model.Form) error {
	if !form.IsActive {
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		return apperr.Validation(apperr.CodeFormInactive, "form is not accepting submissions")
	}

	maxSubmissions := form.Settings.Data().MaxSubmissions
	if maxSubmissions <= 0 {
		return nil
	}
	var submissionCount int64
	if err := ingestor.database.WithContext(ctx).Model(&model.FormSubmission{}).
		Where("form_id = ?", form.ID).
		Count(&submissionCount).Error; err != nil {
		ingestor.logger.Error("count_submissions", zap.Error(err), zap.String("form_id", form.ID))
		return apperr.Internal(err)
	}
	if submissionCount >= int64(maxSubmissions) {
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		return apperr.Conflict(apperr.CodeSubmissionLimit, "form reached its submission limit")
	}
	return nil
}

// Ingest records the submission and, when the payload resolves to both content and an email,
// creates a pending testimonial linked back to it. Once the submission is stored the call
// succeeds even if no testimonial results.
func (ingestor *Ingestor) Ingest(ctx context.Context, form model.Form, payload map[string]any, meta RequestMeta) (Result, error) {
	if err := ingestor.CheckAccepting(ctx, form); err != nil {
		return Result{}, err
	}

	settings := form.Settings.Data()
	isSpam := settings.SpamProtection && IsHoneypotTripped(payload)
	submission, submissionErr := model.NewFormSubmission(model.SubmissionInput{
		FormID:    form.ID,
		ProjectID: form.ProjectID,
		Payload:   payload,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		IsSpam:    isSpam,
	})
	if submissionErr != nil {
		return Result{}, apperr.Validation(apperr.CodeInvalidInput, submissionErr.Error())
	}
	if err := ingestor.database.WithContext(ctx).Create(&submission).Error; err != nil {
		ingestor.logger.Error("save_submission", zap.Error(err), zap.String("form_id", form.ID))
		metrics.ObserveSubmission(metrics.OutcomeFailed)
		return Result{}, apperr.Internal(err)
	}

	result := Result{Submission: submission, ThankYouMessage: settings.ThankYouMessage}
	if isSpam {
		metrics.ObserveSubmission(metrics.OutcomeSpam)
		return result, nil
	}

	fields := ExtractFields(payload)
	if !fields.Complete() {
		metrics.ObserveSubmission(metrics.OutcomeRecorded)
		return result, nil
	}

	testimonial, createErr := ingestor.createTestimonial(ctx, form, submission, fields, MissingFields(form, payload))
	if createErr != nil {
		logFields := []zap.Field{zap.Error(createErr), zap.String("form_id", form.ID), zap.String("submission_id", submission.ID)}
		if errors.Is(createErr, errTestimonialRejected) {
			ingestor.logger.Info("submission_without_testimonial", logFields...)
			metrics.ObserveSubmission(metrics.OutcomeRecorded)
		} else {
			ingestor.logger.Error("create_form_testimonial", logFields...)
			metrics.ObserveSubmission(metrics.OutcomeFailed)
		}
		return result, nil
	}

	testimonialID := testimonial.ID
	if err := ingestor.database.WithContext(ctx).Model(&model.FormSubmission{}).
		Where("id = ?", submission.ID).
		Update("testimonial_id", testimonialID).Error; err != nil {
		ingestor.logger.Error("link_submission", zap.Error(err), zap.String("submission_id", submission.ID), zap.String("testimonial_id", testimonialID))
	} else {
		result.Submission.TestimonialID = &testimonialID
	}

	result.Testimonial = &testimonial
	metrics.ObserveSubmission(metrics.OutcomeCreated)
	events.PublishBestEffort(ctx, ingestor.publisher, ingestor.logger,
		events.NewEvent(events.TypeTestimonialCreated, form.ProjectID, testimonial.ID, string(testimonial.Status)))
	return result, nil
}

func (ingestor *Ingestor) createTestimonial(ctx context.Context, form model.Form, submission model.FormSubmission, fields Fields, missingFields []string) (model.Testimonial, error) {
	metadata := map[string]any{
		metadataFormID:       form.ID,
		metadataFormName:     form.Name,
		metadataSubmissionID: submission.ID,
	}
	if len(missingFields) > 0 {
		metadata[metadataMissingFields] = missingFields
	}

	return storage.CreateWithSlug(ctx, ingestor.database, ingestor.allocator,
		storage.ProjectSlugScope(&model.Testimonial{}, form.ProjectID),
		func(slugValue string) (model.Testimonial, error) {
			testimonial, err := model.NewTestimonial(model.TestimonialInput{
				ProjectID:        form.ProjectID,
				Slug:             slugValue,
				CustomerName:     fields.CustomerName,
				CustomerEmail:    fields.CustomerEmail,
				CustomerCompany:  fields.CustomerCompany,
				CustomerTitle:    fields.CustomerTitle,
				CustomerImageURL: fields.CustomerImageURL,
				Content:          fields.Content,
				Rating:           fields.Rating,
				IsPublic:         true,
				Source:           string(model.SourceForm),
				SourceMetadata:   metadata,
				Tags:             fields.Tags,
			})
			if err != nil {
				return testimonial, fmt.Errorf("%w: %w", errTestimonialRejected, err)
			}
			return testimonial, nil
		})
}
