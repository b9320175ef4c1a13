package publicpage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/publicpage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/testutil"
)

const (
	testProjectSlug = "acme01"
	testGroupSlug   = "grp001"
)

type pageHarness struct {
	database *gorm.DB
	reader   *publicpage.Reader
	project  model.Project
	group    model.Group
	clock    time.Time
}

func newPageHarness(t *testing.T, projectPublic bool) *pageHarness {
	t.Helper()
	database := testutil.NewMigratedDatabase(t)

	project, err := model.NewProject(model.ProjectInput{OwnerID: "owner@example.com", Name: "Acme"})
	require.NoError(t, err)
	projectSlug := testProjectSlug
	project.Slug = &projectSlug
	project.IsPublic = projectPublic
	require.NoError(t, database.Create(&project).Error)

	group, err := model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: testGroupSlug, Name: "Enterprise"})
	require.NoError(t, err)
	require.NoError(t, database.Create(&group).Error)

	return &pageHarness{
		database: database,
		reader:   publicpage.NewReader(database, nil),
		project:  project,
		group:    group,
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (harness *pageHarness) add(t *testing.T, projectID string, slugValue string, status model.TestimonialStatus, isPublic bool, groupID *string) model.Testimonial {
	t.Helper()
	testimonial, err := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     projectID,
		GroupID:       groupID,
		Slug:          slugValue,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Content:       "Great " + slugValue,
		IsPublic:      isPublic,
	})
	require.NoError(t, err)
	testimonial.Status = status
	harness.clock = harness.clock.Add(time.Minute)
	testimonial.CreatedAt = harness.clock
	require.NoError(t, harness.database.Create(&testimonial).Error)
	return testimonial
}

func viewIDs(views []publicpage.TestimonialView) []string {
	identifiers := make([]string, 0, len(views))
	for _, view := range views {
		identifiers = append(identifiers, view.ID)
	}
	return identifiers
}

func TestProjectPageListsVisibleTestimonialsOldestFirst(t *testing.T) {
	harness := newPageHarness(t, true)
	later := harness.add(t, harness.project.ID, "tst001", model.StatusApproved, true, nil)
	harness.add(t, harness.project.ID, "tst002", model.StatusApproved, false, nil)
	harness.add(t, harness.project.ID, "tst003", model.StatusPending, true, nil)
	harness.add(t, harness.project.ID, "tst004", model.StatusFlagged, true, nil)
	newest := harness.add(t, harness.project.ID, "tst005", model.StatusApproved, true, &harness.group.ID)

	page, err := harness.reader.ProjectPage(context.Background(), testProjectSlug)
	require.NoError(t, err)
	require.Equal(t, []string{later.ID, newest.ID}, viewIDs(page.Testimonials))
	require.Equal(t, "Acme", page.Project.Name)
	require.Equal(t, testProjectSlug, page.Project.Slug)
	require.Equal(t, model.DefaultPublicPageSettings(), page.Project.Settings)
}

func TestProjectPageHidesPrivateAndUnknownProjects(t *testing.T) {
	harness := newPageHarness(t, false)
	harness.add(t, harness.project.ID, "tst001", model.StatusApproved, true, nil)

	for _, projectSlug := range []string{testProjectSlug, "zzzzzz", "not-a-slug", ""} {
		_, err := harness.reader.ProjectPage(context.Background(), projectSlug)
		require.ErrorIs(t, err, apperr.ErrNotFound, projectSlug)
	}
}

func TestGroupPageListsVisibleGroupTestimonials(t *testing.T) {
	harness := newPageHarness(t, true)
	inGroup := harness.add(t, harness.project.ID, "tst001", model.StatusApproved, true, &harness.group.ID)
	harness.add(t, harness.project.ID, "tst002", model.StatusPending, true, &harness.group.ID)
	harness.add(t, harness.project.ID, "tst003", model.StatusApproved, true, nil)

	page, err := harness.reader.GroupPage(context.Background(), testProjectSlug, testGroupSlug)
	require.NoError(t, err)
	require.Equal(t, []string{inGroup.ID}, viewIDs(page.Testimonials))
	require.Equal(t, "Enterprise", page.Group.Name)
	require.Equal(t, model.DefaultGroupColor, page.Group.Color)

	_, err = harness.reader.GroupPage(context.Background(), testProjectSlug, "zzzzzz")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = harness.reader.GroupPage(context.Background(), testProjectSlug, "bad")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGroupPageRequiresPublicProject(t *testing.T) {
	harness := newPageHarness(t, false)
	harness.add(t, harness.project.ID, "tst001", model.StatusApproved, true, &harness.group.ID)

	_, err := harness.reader.GroupPage(context.Background(), testProjectSlug, testGroupSlug)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTestimonialByIDOrSlug(t *testing.T) {
	harness := newPageHarness(t, true)
	visible := harness.add(t, harness.project.ID, "tst001", model.StatusApproved, true, nil)

	byID, err := harness.reader.Testimonial(context.Background(), testProjectSlug, visible.ID)
	require.NoError(t, err)
	require.Equal(t, visible.ID, byID.Testimonial.ID)

	bySlug, err := harness.reader.Testimonial(context.Background(), testProjectSlug, visible.Slug)
	require.NoError(t, err)
	require.Equal(t, visible.ID, bySlug.Testimonial.ID)
}

func TestTestimonialFailuresAreIndistinguishable(t *testing.T) {
	harness := newPageHarness(t, true)
	pending := harness.add(t, harness.project.ID, "tst001", model.StatusPending, true, nil)
	private := harness.add(t, harness.project.ID, "tst002", model.StatusApproved, false, nil)

	otherProject, err := model.NewProject(model.ProjectInput{OwnerID: "other@example.com", Name: "Other"})
	require.NoError(t, err)
	otherSlug := "other1"
	otherProject.Slug = &otherSlug
	otherProject.IsPublic = true
	require.NoError(t, harness.database.Create(&otherProject).Error)
	foreign := harness.add(t, otherProject.ID, "tst003", model.StatusApproved, true, nil)

	testCases := []struct {
		name        string
		projectSlug string
		identifier  string
	}{
		{name: "pending", projectSlug: testProjectSlug, identifier: pending.ID},
		{name: "private", projectSlug: testProjectSlug, identifier: private.Slug},
		{name: "foreign project", projectSlug: testProjectSlug, identifier: foreign.ID},
		{name: "missing", projectSlug: testProjectSlug, identifier: "zzzzzz"},
		{name: "unknown project", projectSlug: "zzzzzz", identifier: foreign.ID},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, lookupErr := harness.reader.Testimonial(context.Background(), testCase.projectSlug, testCase.identifier)
			require.ErrorIs(testingT, lookupErr, apperr.ErrNotFound)
			require.Equal(testingT, apperr.CodeNotFound, apperr.Code(lookupErr))
		})
	}

	foreignPage, err := harness.reader.Testimonial(context.Background(), otherSlug, foreign.ID)
	require.NoError(t, err)
	require.Equal(t, foreign.ID, foreignPage.Testimonial.ID)
}
