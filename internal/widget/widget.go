// Package widget serves the testimonials an embeddable widget may display on an authorized domain.
package widget

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/visibility"
)

const projectResource = "project"

// ProjectSummary is the only project data a widget receives.
type ProjectSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebsiteURL string `json:"websiteUrl"`
	IconURL    string `json:"iconUrl"`
}

// Item is one testimonial as rendered by a widget.
type Item struct {
	ID              string    `json:"id"`
	CustomerName    string    `json:"customerName"`
	CustomerCompany string    `json:"customerCompany"`
	CustomerTitle   string    `json:"customerTitle"`
	Content         string    `json:"content"`
	Rating          *int      `json:"rating"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Response struct {
	Project      ProjectSummary `json:"project"`
	Testimonials []Item         `json:"testimonials"`
}

// Controller authorizes widget requests by domain and selects widget-visible testimonials.
type Controller struct {
	database *gorm.DB
	cache    Cache
	logger   *zap.Logger
}

func NewController(database *gorm.DB, cache Cache, logger *zap.Logger) *Controller {
	if cache == nil {
		cache = NoopCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{database: database, cache: cache, logger: logger}
}

// Resolve returns the widget payload for projectID. An empty requestingDomain skips the domain
// check. A non-empty tagFilter keeps testimonials carrying at least one of the tags.
func (controller *Controller) Resolve(ctx context.Context, projectID string, requestingDomain string, tagFilter []string) (Response, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Response{}, apperr.Validation(apperr.CodeInvalidInput, "projectId is required")
	}
	tags := model.FilterTags(tagFilter)
	domain := NormalizeDomain(requestingDomain)

	generation, generationErr := controller.cache.Generation(ctx, projectID)
	cacheUsable := generationErr == nil
	if generationErr != nil {
		controller.logger.Warn("widget_cache_generation", zap.Error(generationErr), zap.String("project_id", projectID))
	}
	key := Key{ProjectID: projectID, Generation: generation, Domain: domain, Tags: tags}
	if cacheUsable {
		cached, found, getErr := controller.cache.Get(ctx, key)
		if getErr != nil {
			controller.logger.Warn("widget_cache_get", zap.Error(getErr), zap.String("project_id", projectID))
		}
		if found {
			metrics.ObserveWidgetRequest(metrics.OutcomeCacheHit)
			return cached, nil
		}
	}

	response, resolveErr := controller.resolveFromStore(ctx, projectID, domain, tags)
	if resolveErr != nil {
		switch {
		case errors.Is(resolveErr, apperr.ErrNotFound):
			metrics.ObserveWidgetRequest(metrics.OutcomeNotFound)
		case errors.Is(resolveErr, apperr.ErrForbidden):
			metrics.ObserveWidgetRequest(metrics.OutcomeForbidden)
		default:
			metrics.ObserveWidgetRequest(metrics.OutcomeFailed)
		}
		return Response{}, resolveErr
	}

	if cacheUsable {
		if setErr := controller.cache.Set(ctx, key, response); setErr != nil {
			controller.logger.Warn("widget_cache_set", zap.Error(setErr), zap.String("project_id", projectID))
		}
	}
	metrics.ObserveWidgetRequest(metrics.OutcomeServed)
	return response, nil
}

// InvalidateProject retires cached responses of a project.
func (controller *Controller) InvalidateProject(ctx context.Context, projectID string) error {
	return controller.cache.InvalidateProject(ctx, projectID)
}

func (controller *Controller) resolveFromStore(ctx context.Context, projectID string, domain string, tags []string) (Response, error) {
	var project model.Project
	if err := controller.database.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Response{}, apperr.NotFound(projectResource)
		}
		controller.logger.Error("widget_load_project", zap.Error(err), zap.String("project_id", projectID))
		return Response{}, apperr.Internal(err)
	}

	if domain != "" && !DomainAuthorized(domain, project.WebsiteURL) {
		return Response{}, apperr.Forbidden(apperr.CodeDomainNotAuthorized, "domain not authorized")
	}

	var testimonials []model.Testimonial
	if err := controller.database.WithContext(ctx).
		Scopes(visibility.WidgetScope(project.ID)).
		Order("created_at DESC").
		Find(&testimonials).Error; err != nil {
		controller.logger.Error("widget_load_testimonials", zap.Error(err), zap.String("project_id", projectID))
		return Response{}, apperr.Internal(err)
	}

	items := make([]Item, 0, len(testimonials))
	for _, testimonial := range testimonials {
		if !visibility.IsWidgetVisible(testimonial) {
			continue
		}
		if len(tags) > 0 && !testimonial.HasAnyTag(tags) {
			continue
		}
		itemTags := []string(testimonial.Tags)
		if itemTags == nil {
			itemTags = []string{}
		}
		items = append(items, Item{
			ID:              testimonial.ID,
			CustomerName:    testimonial.CustomerName,
			CustomerCompany: testimonial.CustomerCompany,
			CustomerTitle:   testimonial.CustomerTitle,
			Content:         testimonial.Content,
			Rating:          testimonial.Rating,
			Tags:            itemTags,
			CreatedAt:       testimonial.CreatedAt.UTC(),
		})
	}

	return Response{
		Project: ProjectSummary{
			ID:         project.ID,
			Name:       project.Name,
			WebsiteURL: project.WebsiteURL,
			IconURL:    project.IconURL,
		},
		Testimonials: items,
	}, nil
}

// NormalizeDomain strips the scheme, port and anything after the host. Case is preserved.
func NormalizeDomain(rawDomain string) string {
	domain := strings.TrimSpace(rawDomain)
	if schemeIndex := strings.Index(domain, "://"); schemeIndex >= 0 {
		domain = domain[schemeIndex+3:]
	}
	if cutIndex := strings.IndexAny(domain, "/?#"); cutIndex >= 0 {
		domain = domain[:cutIndex]
	}
	if host, _, splitErr := net.SplitHostPort(domain); splitErr == nil {
		domain = host
	}
	return domain
}

// DomainAuthorized compares a normalized domain with the host of the project's website URL.
// The comparison is case-sensitive and a project without a website URL authorizes no domain.
func DomainAuthorized(domain string, websiteURL string) bool {
	if strings.TrimSpace(websiteURL) == "" {
		return false
	}
	parsed, parseErr := url.Parse(strings.TrimSpace(websiteURL))
	if parseErr != nil {
		return false
	}
	host := parsed.Hostname()
	return host != "" && host == domain
}
