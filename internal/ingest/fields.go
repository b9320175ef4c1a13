package ingest

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

const (
	anonymousCustomerName = "Anonymous"
	honeypotKey           = "_hp"
	tagsKey               = "tags"
	fileKeyPrefix         = "file_"
	profileImageKey       = "profile_image"
)

// Candidate keys per logical field, most preferred first.
var (
	nameKeys    = []string{"name", "customerName", "customer_name"}
	emailKeys   = []string{"email", "customerEmail", "customer_email"}
	contentKeys = []string{"testimonial", "content", "message"}
	ratingKeys  = []string{"rating"}
	companyKeys = []string{"company", "customerCompany", "customer_company"}
	titleKeys   = []string{"title", "jobTitle", "customerTitle", "customer_title"}
	imageKeys   = []string{profileImageKey, "customerImageUrl", "customerImageURL"}
)

// Fields holds the testimonial values resolved from a raw submission payload.
type Fields struct {
	CustomerName     string
	CustomerEmail    string
	CustomerCompany  string
	CustomerTitle    string
	CustomerImageURL string
	Content          string
	Rating           *int
	Tags             []string
}

// Complete reports whether the payload carries enough to become a testimonial.
func (fields Fields) Complete() bool {
	return fields.Content != "" && fields.CustomerEmail != ""
}

// ExtractFields resolves testimonial values from payload using the candidate key tables.
func ExtractFields(payload map[string]any) Fields {
	name := firstValue(payload, nameKeys)
	if name == "" {
		name = anonymousCustomerName
	}
	return Fields{
		CustomerName:     name,
		CustomerEmail:    firstValue(payload, emailKeys),
		CustomerCompany:  firstValue(payload, companyKeys),
		CustomerTitle:    firstValue(payload, titleKeys),
		CustomerImageURL: resolveImageURL(payload),
		Content:          firstValue(payload, contentKeys),
		Rating:           parseRating(firstValue(payload, ratingKeys)),
		Tags:             parseTags(payload[tagsKey]),
	}
}

// MissingFields lists required field names that resolve to an empty value.
func MissingFields(form model.Form, payload map[string]any) []string {
	var missing []string
	for _, fieldName := range form.RequiredFieldNames() {
		if stringValue(payload[fieldName]) == "" {
			missing = append(missing, fieldName)
		}
	}
	return missing
}

// IsHoneypotTripped reports whether the hidden field bots fill in carries a value.
func IsHoneypotTripped(payload map[string]any) bool {
	return stringValue(payload[honeypotKey]) != ""
}

func firstValue(payload map[string]any, keys []string) string {
	for _, key := range keys {
		if value := stringValue(payload[key]); value != "" {
			return value
		}
	}
	return ""
}

func resolveImageURL(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		if strings.HasPrefix(key, fileKeyPrefix) || key == profileImageKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := stringValue(payload[key]); value != "" {
			return value
		}
	}
	return firstValue(payload, imageKeys)
}

func parseRating(raw string) *int {
	if raw == "" {
		return nil
	}
	parsed, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil || parsed != math.Trunc(parsed) {
		return nil
	}
	rating := int(parsed)
	if model.ValidateRating(&rating) != nil {
		return nil
	}
	return &rating
}

func parseTags(raw any) []string {
	switch typed := raw.(type) {
	case string:
		return model.SplitTags(typed)
	case []any:
		values := make([]string, 0, len(typed))
		for _, element := range typed {
			values = append(values, stringValue(element))
		}
		return model.ValidTags(values)
	case []string:
		return model.ValidTags(typed)
	default:
		return nil
	}
}

func stringValue(raw any) string {
	switch typed := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		if !typed {
			return ""
		}
		return strconv.FormatBool(typed)
	case []string:
		if len(typed) == 0 {
			return ""
		}
		return strings.TrimSpace(typed[0])
	case []any:
		if len(typed) == 0 {
			return ""
		}
		return stringValue(typed[0])
	default:
		return ""
	}
}
