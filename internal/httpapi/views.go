package httpapi

import (
	"time"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

type projectResponse struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Slug       *string                  `json:"slug"`
	IsPublic   bool                     `json:"isPublic"`
	WebsiteURL string                   `json:"websiteUrl"`
	IconURL    string                   `json:"iconUrl"`
	Settings   model.PublicPageSettings `json:"settings"`
	CreatedAt  time.Time                `json:"createdAt"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

type testimonialResponse struct {
	ID               string         `json:"id"`
	Slug             string         `json:"slug"`
	GroupID          *string        `json:"groupId"`
	CustomerName     string         `json:"customerName"`
	CustomerEmail    string         `json:"customerEmail"`
	CustomerCompany  string         `json:"customerCompany"`
	CustomerTitle    string         `json:"customerTitle"`
	CustomerImageURL string         `json:"customerImageUrl"`
	Content          string         `json:"content"`
	Rating           *int           `json:"rating"`
	Status           string         `json:"status"`
	IsPublic         bool           `json:"isPublic"`
	Source           string         `json:"source"`
	SourceMetadata   map[string]any `json:"sourceMetadata"`
	Tags             []string       `json:"tags"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	ApprovedAt       *time.Time     `json:"approvedAt"`
}

type groupResponse struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type formResponse struct {
	ID          string             `json:"id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Fields      []model.FormField  `json:"fields"`
	Styling     model.FormStyling  `json:"styling"`
	Settings    model.FormSettings `json:"settings"`
	IsActive    bool               `json:"isActive"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type submissionResponse struct {
	ID            string         `json:"id"`
	FormID        string         `json:"formId"`
	Payload       map[string]any `json:"payload"`
	IP            string         `json:"ip"`
	UserAgent     string         `json:"userAgent"`
	IsSpam        bool           `json:"isSpam"`
	TestimonialID *string        `json:"testimonialId"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func toProjectResponse(project model.Project) projectResponse {
	return projectResponse{
		ID:         project.ID,
		Name:       project.Name,
		Slug:       project.Slug,
		IsPublic:   project.IsPublic,
		WebsiteURL: project.WebsiteURL,
		IconURL:    project.IconURL,
		Settings:   project.Settings.Data(),
		CreatedAt:  project.CreatedAt,
		UpdatedAt:  project.UpdatedAt,
	}
}

func toTestimonialResponse(testimonial model.Testimonial) testimonialResponse {
	tags := []string(testimonial.Tags)
	if tags == nil {
		tags = []string{}
	}
	metadata := map[string]any(testimonial.SourceMetadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return testimonialResponse{
		ID:               testimonial.ID,
		Slug:             testimonial.Slug,
		GroupID:          testimonial.GroupID,
		CustomerName:     testimonial.CustomerName,
		CustomerEmail:    testimonial.CustomerEmail,
		CustomerCompany:  testimonial.CustomerCompany,
		CustomerTitle:    testimonial.CustomerTitle,
		CustomerImageURL: testimonial.CustomerImageURL,
		Content:          testimonial.Content,
		Rating:           testimonial.Rating,
		Status:           string(testimonial.Status),
		IsPublic:         testimonial.IsPublic,
		Source:           string(testimonial.Source),
		SourceMetadata:   metadata,
		Tags:             tags,
		CreatedAt:        testimonial.CreatedAt,
		UpdatedAt:        testimonial.UpdatedAt,
		ApprovedAt:       testimonial.ApprovedAt,
	}
}

func toTestimonialResponses(testimonials []model.Testimonial) []testimonialResponse {
	responses := make([]testimonialResponse, 0, len(testimonials))
	for _, testimonial := range testimonials {
		responses = append(responses, toTestimonialResponse(testimonial))
	}
	return responses
}

func toGroupResponse(group model.Group) groupResponse {
	return groupResponse{
		ID:          group.ID,
		Slug:        group.Slug,
		Name:        group.Name,
		Color:       group.Color,
		Description: group.Description,
		CreatedAt:   group.CreatedAt,
	}
}

func toFormResponse(form model.Form) formResponse {
	fields := []model.FormField(form.Fields)
	if fields == nil {
		fields = []model.FormField{}
	}
	return formResponse{
		ID:          form.ID,
		Slug:        form.Slug,
		Name:        form.Name,
		Description: form.Description,
		Fields:      fields,
		Styling:     form.Styling.Data(),
		Settings:    form.Settings.Data(),
		IsActive:    form.IsActive,
		CreatedAt:   form.CreatedAt,
	}
}

func toSubmissionResponse(submission model.FormSubmission) submissionResponse {
	return submissionResponse{
		ID:            submission.ID,
		FormID:        submission.FormID,
		Payload:       map[string]any(submission.Payload),
		IP:            submission.IP,
		UserAgent:     submission.UserAgent,
		IsSpam:        submission.IsSpam,
		TestimonialID: submission.TestimonialID,
		CreatedAt:     submission.CreatedAt,
	}
}
