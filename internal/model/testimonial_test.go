package model

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testTestimonialProjectID = "project-123"
	testTestimonialSlug      = "abc123"
	testTestimonialName      = "Ada Lovelace"
	testTestimonialEmail     = "ADA@Example.com"
	testTestimonialContent   = "The analytical engine weaves patterns."
)

func validTestimonialInput() TestimonialInput {
	return TestimonialInput{
		ProjectID:     testTestimonialProjectID,
		Slug:          testTestimonialSlug,
		CustomerName:  testTestimonialName,
		CustomerEmail: testTestimonialEmail,
		Content:       testTestimonialContent,
	}
}

func TestNewTestimonialValidatesAndNormalizes(t *testing.T) {
	rating := 5
	groupID := "  group-1 "
	input := validTestimonialInput()
	input.Content = "  " + testTestimonialContent + "\n"
	input.Rating = &rating
	input.GroupID = &groupID
	input.Tags = []string{" Enterprise", "saas", "enterprise", ""}
	input.SourceMetadata = map[string]any{"form_id": "form-1"}

	testimonial, err := NewTestimonial(input)
	require.NoError(t, err)

	require.NotEmpty(t, testimonial.ID)
	require.Equal(t, testTestimonialProjectID, testimonial.ProjectID)
	require.Equal(t, testTestimonialSlug, testimonial.Slug)
	require.Equal(t, strings.ToLower(testTestimonialEmail), testimonial.CustomerEmail)
	require.Equal(t, testTestimonialContent, testimonial.Content)
	require.Equal(t, StatusPending, testimonial.Status)
	require.Equal(t, SourceManual, testimonial.Source)
	require.Nil(t, testimonial.ApprovedAt)
	require.NotNil(t, testimonial.GroupID)
	require.Equal(t, "group-1", *testimonial.GroupID)
	require.Equal(t, []string{"enterprise", "saas"}, []string(testimonial.Tags))
	require.Equal(t, "form-1", testimonial.SourceMetadata["form_id"])
}

func TestNewTestimonialDropsBlankGroup(t *testing.T) {
	blankGroup := "   "
	input := validTestimonialInput()
	input.GroupID = &blankGroup

	testimonial, err := NewTestimonial(input)
	require.NoError(t, err)
	require.Nil(t, testimonial.GroupID)
}

func TestNewTestimonialRejectsInvalidInput(t *testing.T) {
	outOfRange := 6
	zero := 0

	testCases := []struct {
		name        string
		mutate      func(input *TestimonialInput)
		expectedErr error
	}{
		{name: "missing project", mutate: func(input *TestimonialInput) { input.ProjectID = "" }, expectedErr: ErrInvalidTestimonialProject},
		{name: "short slug", mutate: func(input *TestimonialInput) { input.Slug = "abc" }, expectedErr: ErrInvalidTestimonialSlug},
		{name: "slug outside alphabet", mutate: func(input *TestimonialInput) { input.Slug = "AB-C!1" }, expectedErr: ErrInvalidTestimonialSlug},
		{name: "missing name", mutate: func(input *TestimonialInput) { input.CustomerName = " " }, expectedErr: ErrInvalidCustomerName},
		{name: "missing email", mutate: func(input *TestimonialInput) { input.CustomerEmail = "" }, expectedErr: ErrInvalidCustomerEmail},
		{name: "malformed email", mutate: func(input *TestimonialInput) { input.CustomerEmail = "not-an-email" }, expectedErr: ErrInvalidCustomerEmail},
		{name: "blank content", mutate: func(input *TestimonialInput) { input.Content = " \n\t" }, expectedErr: ErrInvalidTestimonialContent},
		{name: "rating above range", mutate: func(input *TestimonialInput) { input.Rating = &outOfRange }, expectedErr: ErrInvalidTestimonialRating},
		{name: "rating below range", mutate: func(input *TestimonialInput) { input.Rating = &zero }, expectedErr: ErrInvalidTestimonialRating},
		{name: "unknown source", mutate: func(input *TestimonialInput) { input.Source = "carrier-pigeon" }, expectedErr: ErrInvalidSource},
		{name: "long tag", mutate: func(input *TestimonialInput) { input.Tags = []string{strings.Repeat("t", testimonialTagMaxLength+1)} }, expectedErr: ErrInvalidTestimonialTags},
		{name: "long company", mutate: func(input *TestimonialInput) { input.CustomerCompany = strings.Repeat("c", testimonialCompanyMaxLength+1) }, expectedErr: ErrInvalidTestimonialCustomer},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			input := validTestimonialInput()
			testCase.mutate(&input)
			_, err := NewTestimonial(input)
			require.ErrorIs(testingT, err, testCase.expectedErr)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "APPROVED", " rejected ", "flagged"} {
		_, err := ParseStatus(raw)
		require.NoError(t, err, raw)
	}

	_, err := ParseStatus("archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSplitTagsNormalizes(t *testing.T) {
	require.Equal(t, []string{"b2b", "saas"}, SplitTags(" SaaS, b2b,,saas "))
	require.Nil(t, SplitTags("  "))
	require.Equal(t, []string{"saas"}, SplitTags("saas,"+strings.Repeat("x", 51)))
}

func TestFilterTagsKeepsTagsNoTestimonialCanCarry(t *testing.T) {
	overlong := strings.Repeat("x", 51)
	require.Equal(t, []string{"retail", overlong}, FilterTags([]string{" Retail", overlong, "retail", ""}))
	require.Empty(t, FilterTags([]string{"", " "}))

	many := make([]string, 0, 21)
	for index := 0; index < 21; index++ {
		many = append(many, fmt.Sprintf("nomatch%d", index))
	}
	require.Len(t, FilterTags(many), 21)
}

func TestHasAnyTagUsesLogicalOr(t *testing.T) {
	testimonial, err := NewTestimonial(TestimonialInput{
		ProjectID:     testTestimonialProjectID,
		Slug:          testTestimonialSlug,
		CustomerName:  testTestimonialName,
		CustomerEmail: testTestimonialEmail,
		Content:       testTestimonialContent,
		Tags:          []string{"saas"},
	})
	require.NoError(t, err)

	require.True(t, testimonial.HasAnyTag([]string{"enterprise", "saas"}))
	require.False(t, testimonial.HasAnyTag([]string{"enterprise"}))
	require.False(t, testimonial.HasAnyTag(nil))
}
