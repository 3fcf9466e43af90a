package handler

import (
	"strings"
	"unicode/utf8"

	dErrors "iplist/pkg/domain-errors"
)

const (
	maxTextLength     = 512
	maxCategoryLength = 64
)

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

func (r *IngestRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
	r.Category = strings.TrimSpace(r.Category)
}

// Validate implements httputil.Preparable.
func (r *IngestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Text == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if utf8.RuneCountInString(r.Text) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "text must be at most 512 characters")
	}
	if len(r.Category) > maxCategoryLength {
		return dErrors.New(dErrors.CodeValidation, "category must be at most 64 characters")
	}
	return nil
}
