package normalize

import (
	"strings"

	"github.com/sells-group/metrics-cli/internal/model"
)

// roleWords mark a fragment as a job title rather than a name.
var roleWords = []string{
	"ceo", "cfo", "coo", "cto", "chief", "officer", "president",
	"chair", "chairman", "chairwoman", "director", "founder", "co-founder",
}

// parsePerson splits leadership text into role + name where extractable:
// "CEO: Tim Cook", "Tim Cook (CEO)", "Tim Cook, Chief Executive Officer".
// Free-text blurbs that cannot be structured are retained verbatim in Text
// as a raw fallback, never discarded.
func parsePerson(raw string) model.CanonicalValue {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, ":"); i > 0 {
		role, name := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if isRole(role) && name != "" {
			return model.CanonicalValue{Kind: model.KindPerson, Role: role, Name: name}
		}
	}

	if open := strings.Index(s, "("); open > 0 && strings.HasSuffix(s, ")") {
		name, role := strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1:len(s)-1])
		if isRole(role) && name != "" {
			return model.CanonicalValue{Kind: model.KindPerson, Role: role, Name: name}
		}
	}

	if i := strings.Index(s, ","); i > 0 {
		name, role := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if isRole(role) && name != "" {
			return model.CanonicalValue{Kind: model.KindPerson, Role: role, Name: name}
		}
	}

	// Bare name with no role marker: keep it as a name if it looks like
	// one, otherwise retain the blurb.
	if len(strings.Fields(s)) <= 4 && !isRole(s) {
		return model.CanonicalValue{Kind: model.KindPerson, Name: s}
	}
	return model.CanonicalValue{Kind: model.KindPerson, Text: s}
}

func isRole(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range roleWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
