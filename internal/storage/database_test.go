package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/testutil"
)

const (
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
	testOwnerEmailValue              = "owner@example.com"
	testProjectNameValue             = "Acme"
	testCustomerNameValue            = "Ada"
	testCustomerEmailValue           = "ada@example.com"
	testContentValue                 = "Wonderful service"
	testTakenSlugValue               = "taken1"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	database, openErr := storage.OpenDatabase(testutil.SQLiteConfig(t))
	require.NoError(t, openErr)
	database = testutil.QuietSession(t, database)

	require.NoError(t, storage.AutoMigrate(database))

	project := createProject(t, database)

	testimonial, err := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     project.ID,
		Slug:          "abc123",
		CustomerName:  testCustomerNameValue,
		CustomerEmail: testCustomerEmailValue,
		Content:       testContentValue,
		Tags:          []string{"saas"},
	})
	require.NoError(t, err)
	require.NoError(t, database.Create(&testimonial).Error)

	var fetched model.Testimonial
	require.NoError(t, database.First(&fetched, "id = ?", testimonial.ID).Error)
	require.Equal(t, testContentValue, fetched.Content)
	require.Equal(t, []string{"saas"}, []string(fetched.Tags))
	require.Equal(t, model.StatusPending, fetched.Status)

	var fetchedProject model.Project
	require.NoError(t, database.First(&fetchedProject, "id = ?", project.ID).Error)
	require.Equal(t, model.DefaultPublicPageSettings(), fetchedProject.Settings.Data())
}

func TestOpenDatabaseValidation(t *testing.T) {
	dataSourceName := testutil.SQLiteConfig(t).DataSourceName

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: dataSourceName,
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: dataSourceName,
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
		{
			name: "missing postgres data source",
			configuration: storage.Config{
				DriverName: storage.DriverNamePostgres,
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}

func TestProjectOwnerIsUnique(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)

	createProject(t, database)

	duplicate, err := model.NewProject(model.ProjectInput{OwnerID: testOwnerEmailValue, Name: "Second"})
	require.NoError(t, err)
	duplicateErr := database.Create(&duplicate).Error
	require.Error(t, duplicateErr)
	require.True(t, storage.IsUniqueViolation(duplicateErr))
}

func TestTestimonialSlugIsUniquePerProject(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	firstProject := createProject(t, database)
	secondProject, err := model.NewProject(model.ProjectInput{OwnerID: "other@example.com", Name: testProjectNameValue})
	require.NoError(t, err)
	require.NoError(t, database.Create(&secondProject).Error)

	insert := func(projectID string) error {
		testimonial, buildErr := model.NewTestimonial(model.TestimonialInput{
			ProjectID:     projectID,
			Slug:          testTakenSlugValue,
			CustomerName:  testCustomerNameValue,
			CustomerEmail: testCustomerEmailValue,
			Content:       testContentValue,
		})
		require.NoError(t, buildErr)
		return database.Create(&testimonial).Error
	}

	require.NoError(t, insert(firstProject.ID))
	require.True(t, storage.IsUniqueViolation(insert(firstProject.ID)))
	require.NoError(t, insert(secondProject.ID))
}

func TestCreateWithSlugRetriesAfterUniqueViolation(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	project := createProject(t, database)

	existing, err := model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: testTakenSlugValue, Name: "Existing"})
	require.NoError(t, err)
	require.NoError(t, database.Create(&existing).Error)

	buildCalls := 0
	group, err := storage.CreateWithSlug(context.Background(), database, slug.NewAllocator(),
		storage.ProjectSlugScope(&model.Group{}, project.ID),
		func(slugValue string) (model.Group, error) {
			buildCalls++
			if buildCalls == 1 {
				// simulate a concurrent writer that claimed the checked slug first
				slugValue = testTakenSlugValue
			}
			return model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: slugValue, Name: "Fresh"})
		})
	require.NoError(t, err)
	require.Equal(t, 2, buildCalls)
	require.True(t, slug.Valid(group.Slug))
	require.NotEqual(t, testTakenSlugValue, group.Slug)

	var count int64
	require.NoError(t, database.Model(&model.Group{}).Where("project_id = ?", project.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestCreateWithSlugGivesUpAfterBoundedAttempts(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	project := createProject(t, database)

	existing, err := model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: testTakenSlugValue, Name: "Existing"})
	require.NoError(t, err)
	require.NoError(t, database.Create(&existing).Error)

	buildCalls := 0
	_, err = storage.CreateWithSlug(context.Background(), database, slug.NewAllocator(),
		storage.ProjectSlugScope(&model.Group{}, project.ID),
		func(string) (model.Group, error) {
			buildCalls++
			return model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: testTakenSlugValue, Name: "Fresh"})
		})
	require.ErrorIs(t, err, storage.ErrSlugExhausted)
	require.Equal(t, storage.SlugInsertAttempts, buildCalls)
}

func TestSlugScopeExistsHonorsNamespace(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	project := createProject(t, database)

	group, err := model.NewGroup(model.GroupInput{ProjectID: project.ID, Slug: testTakenSlugValue, Name: "Existing"})
	require.NoError(t, err)
	require.NoError(t, database.Create(&group).Error)

	ctx := context.Background()
	taken, err := storage.ProjectSlugScope(&model.Group{}, project.ID).Exists(database)(ctx, testTakenSlugValue)
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = storage.ProjectSlugScope(&model.Group{}, "another-project").Exists(database)(ctx, testTakenSlugValue)
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = storage.GlobalSlugScope(&model.Group{}).Exists(database)(ctx, testTakenSlugValue)
	require.NoError(t, err)
	require.True(t, taken)
}

func TestAutoMigrateClearsStaleApprovalTimestamps(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	project := createProject(t, database)

	testimonial, err := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     project.ID,
		Slug:          "abc123",
		CustomerName:  testCustomerNameValue,
		CustomerEmail: testCustomerEmailValue,
		Content:       testContentValue,
	})
	require.NoError(t, err)
	staleApproval := time.Now().UTC()
	testimonial.ApprovedAt = &staleApproval
	require.NoError(t, database.Create(&testimonial).Error)
	require.NoError(t, database.Model(&model.Testimonial{}).Where("id = ?", testimonial.ID).Update("source", "").Error)

	require.NoError(t, storage.AutoMigrate(database))

	var refreshed model.Testimonial
	require.NoError(t, database.First(&refreshed, "id = ?", testimonial.ID).Error)
	require.Nil(t, refreshed.ApprovedAt)
	require.Equal(t, model.SourceImport, refreshed.Source)
}

func TestIsUniqueViolationIgnoresOtherErrors(t *testing.T) {
	require.False(t, storage.IsUniqueViolation(nil))
	require.False(t, storage.IsUniqueViolation(errors.New("connection refused")))
	require.True(t, storage.IsUniqueViolation(errors.New("UNIQUE constraint failed: groups.slug")))
}

func createProject(t *testing.T, database *gorm.DB) model.Project {
	t.Helper()
	project, err := model.NewProject(model.ProjectInput{OwnerID: testOwnerEmailValue, Name: testProjectNameValue})
	require.NoError(t, err)
	require.NoError(t, database.Create(&project).Error)
	return project
}
