package biometric

import "github.com/noah-isme/bioattend-api/internal/models"

// Matcher decides whether two templates belong to the same subject.
type Matcher interface {
	Matches(a, b Template) bool
}

// ExactMatcher accepts only identical templates.
type ExactMatcher struct{}

// Matches implements Matcher.
func (ExactMatcher) Matches(a, b Template) bool {
	return a != "" && a == b
}

// Match scans candidates in order and returns the first accepted one.
// Templates are unique at enrollment, so at most one can match an exact
// matcher; ok is false when nobody is recognised.
func Match(m Matcher, probe Template, candidates []models.SubjectTemplate) (models.SubjectTemplate, bool) {
	if m == nil {
		m = ExactMatcher{}
	}
	for _, candidate := range candidates {
		if m.Matches(probe, Template(candidate.Template)) {
			return candidate, true
		}
	}
	return models.SubjectTemplate{}, false
}
