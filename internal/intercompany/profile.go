package intercompany

import "strings"

// Profile describes how one organization is referred to in the other's ledger
type Profile struct {
	OrgID        string
	Name         string
	Aliases      []string
	ExcludeTerms []string
}

// Terms returns the lowercase name and aliases, without blanks or duplicates
func (p Profile) Terms() []string {
	seen := make(map[string]bool, len(p.Aliases)+1)
	terms := make([]string, 0, len(p.Aliases)+1)
	for _, t := range append([]string{p.Name}, p.Aliases...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// MentionedIn reports whether text refers to this organization.
// Text containing an exclusion term never counts as a reference.
func (p Profile) MentionedIn(text string) bool {
	lower := strings.ToLower(text)
	if lower == "" {
		return false
	}
	for _, ex := range p.ExcludeTerms {
		if ex = strings.ToLower(strings.TrimSpace(ex)); ex != "" && strings.Contains(lower, ex) {
			return false
		}
	}
	for _, term := range p.Terms() {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
