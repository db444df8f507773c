package reports

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips disallowed markup from free-text fields before they are
// persisted. The state machine only sees the interface.
type Sanitizer interface {
	Sanitize(value string) string
}

// HTMLSanitizer is the production Sanitizer: a bluemonday policy limited to
// the rich-text subset report fields may carry.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds the report field sanitisation policy.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u",
		"ul", "ol", "li", "h1", "h2", "h3", "h4", "blockquote", "span")
	p.AllowAttrs("class").OnElements("span")
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	return &HTMLSanitizer{policy: p}
}

// Sanitize returns value with disallowed tags and attributes stripped.
func (s *HTMLSanitizer) Sanitize(value string) string {
	if value == "" {
		return value
	}
	return s.policy.Sanitize(value)
}

func sanitizeContent(s Sanitizer, c Content) Content {
	if s == nil {
		return c
	}
	c.Accomplishments = s.Sanitize(c.Accomplishments)
	c.GoalsNextWeek = s.Sanitize(c.GoalsNextWeek)
	c.Blockers = s.Sanitize(c.Blockers)
	c.SupportNeeded = s.Sanitize(c.SupportNeeded)
	c.AdditionalNotes = s.Sanitize(c.AdditionalNotes)
	return c
}
