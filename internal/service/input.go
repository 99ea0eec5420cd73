package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"postfeed/models"
)

// CreatePostInput is the validated-on-create payload of a new post.
type CreatePostInput struct {
	Title    string
	Slug     string
	Excerpt  string
	Image    string
	Featured bool
	Tags     []string
}

// Validate reports the missing required fields, if any.
func (in CreatePostInput) Validate() error {
	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Slug == "" {
		missing = append(missing, "slug")
	}
	if len(missing) > 0 {
		return models.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// DecodeCreateInput parses a create request body. A body that is not JSON is
// a MALFORMED_INPUT error. Any other JSON value is accepted here and left to
// Validate: text fields count only when they are strings, featured follows
// JSON truthiness and tags are kept only when they form an array.
func DecodeCreateInput(body []byte) (CreatePostInput, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return CreatePostInput{}, models.NewMalformedInputError(err)
	}

	fields, _ := raw.(map[string]any)
	return CreatePostInput{
		Title:    stringField(fields, "title"),
		Slug:     stringField(fields, "slug"),
		Excerpt:  stringField(fields, "excerpt"),
		Image:    stringField(fields, "image"),
		Featured: truthy(fields["featured"]),
		Tags:     tagsField(fields["tags"]),
	}, nil
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

// truthy treats false, 0, "", null and absent values as false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func tagsField(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			tags = append(tags, t)
		case nil:
			tags = append(tags, "null")
		default:
			tags = append(tags, fmt.Sprint(t))
		}
	}
	return tags
}
