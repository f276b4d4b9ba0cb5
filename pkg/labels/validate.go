// Package labels derives a project-wide page-label taxonomy and assigns
// labels from it. One validator serves both the AI assignment path and user
// edits coming through the API.
package labels

import (
	"fmt"
	"strings"
)

// Validation error codes surfaced to API clients.
const (
	CodeInvalidLabels = "invalid_labels"
	CodeTooFewLabels  = "too_few_labels"
	CodeTooManyLabels = "too_many_labels"
	CodeNoTaxonomy    = "no_taxonomy"
)

// Bounds on how many labels one page carries.
const (
	MinLabelsPerPage = 2
	MaxLabelsPerPage = 5
)

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ValidationResult carries the normalized labels alongside the verdict so
// callers persist exactly what was validated.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Labels []string          `json:"labels"`
	Errors []ValidationError `json:"errors"`
}

// Normalize lowercases, trims, and de-duplicates preserving first
// occurrence order. Blank entries are dropped.
func Normalize(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		n := strings.ToLower(strings.TrimSpace(label))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Validate checks a label assignment against the taxonomy's label names.
// The returned Labels are normalized, so validating them again yields the
// same output.
func Validate(labels []string, taxonomy []string) ValidationResult {
	normalized := Normalize(labels)
	result := ValidationResult{Labels: normalized, Errors: []ValidationError{}}

	if len(taxonomy) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeNoTaxonomy,
			Message: "the project has no label taxonomy; generate one first",
		})
		return result
	}

	allowed := make(map[string]bool, len(taxonomy))
	for _, name := range Normalize(taxonomy) {
		allowed[name] = true
	}
	var unknown []string
	for _, label := range normalized {
		if !allowed[label] {
			unknown = append(unknown, label)
		}
	}
	if len(unknown) > 0 {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeInvalidLabels,
			Message: fmt.Sprintf("%d label(s) are not in the taxonomy", len(unknown)),
			Details: unknown,
		})
	}
	if len(normalized) < MinLabelsPerPage {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeTooFewLabels,
			Message: fmt.Sprintf("a page needs at least %d labels, got %d", MinLabelsPerPage, len(normalized)),
		})
	}
	if len(normalized) > MaxLabelsPerPage {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeTooManyLabels,
			Message: fmt.Sprintf("a page takes at most %d labels, got %d", MaxLabelsPerPage, len(normalized)),
		})
	}

	result.Valid = len(result.Errors) == 0
	return result
}
