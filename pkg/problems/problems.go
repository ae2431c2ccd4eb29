package problems

import (
	"os"
	"strings"
)

const (
	AuthenticationFailed    = "authentication-failed"
	DispatchFailed          = "dispatch-failed"
	ConfigurationIncomplete = "configuration-incomplete"
)

// Problem is the RFC 7807 style payload attached to failure results and API errors.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

func New(slug, title, detail string) *Problem {
	return &Problem{Type: Type(slug), Title: title, Detail: detail}
}
