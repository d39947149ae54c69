package skills

import (
	"sort"
	"strings"

	"github.com/spigell/career-mentor/internal/taxonomy"
)

// Profile is the set of skills detected in a document.
type Profile struct {
	// RawSkills mirrors ValidatedSkills. It is kept for API compatibility.
	RawSkills       []string `json:"raw_skills"`
	ValidatedSkills []string `json:"validated_skills"`
	InferredDomains []string `json:"inferred_domains"`
}

// Extractor matches taxonomy entries against document text.
type Extractor struct {
	taxonomy *taxonomy.Snapshot
}

func NewExtractor(snapshot *taxonomy.Snapshot) *Extractor {
	return &Extractor{taxonomy: snapshot}
}

// Extract scans text for every canonical name and alias. A hit on any candidate adds
// the normalized canonical name and the entry's category. Matching is a plain
// case-insensitive substring search.
func (e *Extractor) Extract(text string) Profile {
	lower := strings.ToLower(text)
	validated := make(map[string]struct{})
	domains := make(map[string]struct{})

	if e.taxonomy != nil {
		e.taxonomy.Each(func(_ string, entry taxonomy.Entry) {
			if !containsAny(lower, entry.Candidates()) {
				return
			}
			name, ok := e.taxonomy.Normalize(entry.Canonical)
			if !ok {
				return
			}
			validated[name] = struct{}{}
			if category := strings.TrimSpace(entry.Category); category != "" {
				domains[category] = struct{}{}
			}
		})
	}

	skills := sortedKeys(validated)
	return Profile{
		RawSkills:       append([]string{}, skills...),
		ValidatedSkills: skills,
		InferredDomains: sortedKeys(domains),
	}
}

func containsAny(text string, candidates []string) bool {
	for _, candidate := range candidates {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if strings.Contains(text, candidate) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
