package projects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/ingest"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/projects"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
)

func TestCreateFormAppliesDefaults(t *testing.T) {
	harness := newServiceHarness(t)

	form, err := harness.service.CreateForm(context.Background(), ownerEmail, projects.FormInput{Name: "Customer stories"})
	require.NoError(t, err)
	require.True(t, form.IsActive)
	require.True(t, slug.Valid(form.Slug))
	require.Equal(t, []string{"name", "email", "testimonial"}, form.RequiredFieldNames())
	require.Equal(t, model.DefaultFormSettings(), form.Settings.Data())

	_, err = harness.service.CreateForm(context.Background(), ownerEmail, projects.FormInput{
		Name:   "Broken",
		Fields: []model.FormField{{Name: "a", Type: "slider"}},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateFormChangesSettingsAndActivation(t *testing.T) {
	harness := newServiceHarness(t)
	ctx := context.Background()
	form, err := harness.service.CreateForm(ctx, ownerEmail, projects.FormInput{Name: "Customer stories"})
	require.NoError(t, err)

	settings := model.DefaultFormSettings()
	settings.MaxSubmissions = 10
	updated, err := harness.service.UpdateForm(ctx, ownerEmail, form.ID, projects.FormUpdate{
		Settings: &settings,
		IsActive: boolPointer(false),
		Fields:   []model.FormField{{Name: "testimonial", Type: model.FieldTypeTextarea, Required: true}},
	})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.Equal(t, 10, updated.Settings.Data().MaxSubmissions)
	require.Equal(t, []string{"testimonial"}, updated.RequiredFieldNames())
	require.Equal(t, form.Slug, updated.Slug)

	negative := model.DefaultFormSettings()
	negative.MaxSubmissions = -1
	_, err = harness.service.UpdateForm(ctx, ownerEmail, form.ID, projects.FormUpdate{Settings: &negative})
	require.ErrorIs(t, err, apperr.ErrValidation)

	forms, err := harness.service.ListForms(ctx, ownerEmail)
	require.NoError(t, err)
	require.Len(t, forms, 1)
}

func TestListSubmissionsIsScopedToOwner(t *testing.T) {
	harness := newServiceHarness(t)
	ctx := context.Background()
	form, err := harness.service.CreateForm(ctx, ownerEmail, projects.FormInput{Name: "Customer stories"})
	require.NoError(t, err)

	ingestor := ingest.NewIngestor(harness.database, nil, nil, nil)
	result, err := ingestor.Ingest(ctx, form, map[string]any{
		"name":        "Ada",
		"email":       "ada@example.com",
		"testimonial": "Wonderful",
	}, ingest.RequestMeta{IP: "203.0.113.9", UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, result.Testimonial)

	submissions, err := harness.service.ListSubmissions(ctx, ownerEmail, form.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	require.Equal(t, result.Testimonial.ID, *submissions[0].TestimonialID)

	_, err = harness.service.CreateProject(ctx, otherOwner, projects.ProjectInput{Name: "Rival"})
	require.NoError(t, err)
	_, err = harness.service.ListSubmissions(ctx, otherOwner, form.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, harness.service.DeleteTestimonial(ctx, ownerEmail, result.Testimonial.ID))
	submissions, err = harness.service.ListSubmissions(ctx, ownerEmail, form.ID)
	require.NoError(t, err)
	require.Nil(t, submissions[0].TestimonialID)
}
