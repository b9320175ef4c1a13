package projects_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/projects"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/testutil"
)

const (
	iconWaitTimeout  = 2 * time.Second
	iconPollInterval = 10 * time.Millisecond
)

type staticIconResolver map[string]string

func (resolver staticIconResolver) Resolve(_ context.Context, websiteURL string) (string, error) {
	iconURL, found := resolver[websiteURL]
	if !found {
		return "", errors.New("unreachable")
	}
	return iconURL, nil
}

func TestWebsiteChangesRefreshProjectIcon(t *testing.T) {
	database := testutil.NewMigratedDatabase(t)
	invalidator := &recordingInvalidator{}
	service := projects.NewService(database, nil, invalidator, nil, nil, nil).WithIconResolver(staticIconResolver{
		"https://acme.example.com":    "https://acme.example.com/favicon.ico",
		"https://brand.example.com":   "https://cdn.example.com/brand.png",
		"https://no-icon.example.com": "",
	})

	iconEventually := func(expected string) {
		t.Helper()
		require.Eventually(t, func() bool {
			project, err := service.Project(context.Background(), ownerEmail)
			return err == nil && project.IconURL == expected
		}, iconWaitTimeout, iconPollInterval)
	}

	_, err := service.CreateProject(context.Background(), ownerEmail, projects.ProjectInput{
		Name:       "Acme",
		WebsiteURL: "https://acme.example.com",
	})
	require.NoError(t, err)
	iconEventually("https://acme.example.com/favicon.ico")

	brandWebsite := "https://brand.example.com"
	updated, err := service.UpdateSettings(context.Background(), ownerEmail, projects.SettingsUpdate{WebsiteURL: &brandWebsite})
	require.NoError(t, err)
	require.Empty(t, updated.IconURL)
	iconEventually("https://cdn.example.com/brand.png")

	name := "Acme Inc"
	renamed, err := service.UpdateSettings(context.Background(), ownerEmail, projects.SettingsUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/brand.png", renamed.IconURL)

	unreachableWebsite := "https://down.example.com"
	cleared, err := service.UpdateSettings(context.Background(), ownerEmail, projects.SettingsUpdate{WebsiteURL: &unreachableWebsite})
	require.NoError(t, err)
	require.Empty(t, cleared.IconURL)
	require.Never(t, func() bool {
		project, projectErr := service.Project(context.Background(), ownerEmail)
		return projectErr != nil || project.IconURL != ""
	}, 5*iconPollInterval, iconPollInterval)
}
