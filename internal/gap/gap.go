package gap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/career-mentor/internal/roles"
	"github.com/spigell/career-mentor/internal/skills"
)

const maxCoreExamples = 5

// Report compares a skill profile with a role profile.
type Report struct {
	Strengths         []string `json:"strengths"`
	MissingCore       []string `json:"missing_core"`
	MissingNiceToHave []string `json:"missing_nice_to_have"`
	Summary           string   `json:"summary"`
	// Profile is the resolved role key. Empty when the target role is unknown.
	Profile string `json:"profile,omitempty"`
}

// Analyzer computes gap reports. It holds no mutable state.
type Analyzer struct {
	roles *roles.Registry
}

func NewAnalyzer(registry *roles.Registry) *Analyzer {
	return &Analyzer{roles: registry}
}

// Analyze resolves targetRole and splits the validated skills into strengths and gaps.
func (a *Analyzer) Analyze(profile skills.Profile, targetRole string) Report {
	validated := toSet(profile.ValidatedSkills)

	var (
		role roles.Profile
		ok   bool
	)
	if a.roles != nil {
		role, ok = a.roles.Resolve(targetRole)
	}

	if !ok {
		return Report{
			Strengths:         sortedSet(validated),
			MissingCore:       []string{},
			MissingNiceToHave: []string{},
			Summary:           unresolvedSummary(targetRole),
		}
	}

	core := toSet(role.Core)
	nice := toSet(role.Nice)

	strengths := make(map[string]struct{})
	for s := range validated {
		if _, ok := core[s]; ok {
			strengths[s] = struct{}{}
		}
		if _, ok := nice[s]; ok {
			strengths[s] = struct{}{}
		}
	}

	missingCore := sortedSet(difference(core, validated))
	missingNice := sortedSet(difference(nice, validated))

	return Report{
		Strengths:         sortedSet(strengths),
		MissingCore:       missingCore,
		MissingNiceToHave: missingNice,
		Summary: resolvedSummary(
			targetRole,
			len(intersection(core, validated)),
			len(intersection(nice, validated)),
			missingCore,
			missingNice,
		),
		Profile: role.Name,
	}
}

func unresolvedSummary(targetRole string) string {
	return fmt.Sprintf(
		"For the target role '%s', no specific role profile was found. All detected skills are treated as strengths. "+
			"You can still use the roadmap and project suggestions, but consider refining the target role name "+
			"(e.g. 'Data Scientist', 'ML Engineer', 'Backend Engineer', 'Cloud Engineer').",
		targetRole,
	)
}

func resolvedSummary(targetRole string, coreMatched, niceMatched int, missingCore, missingNice []string) string {
	parts := []string{
		fmt.Sprintf("For the target role '%s', %d core skills and %d nice-to-have skills were matched from your CV.",
			targetRole, coreMatched, niceMatched),
	}

	if len(missingCore) > 0 {
		examples := missingCore
		if len(examples) > maxCoreExamples {
			examples = examples[:maxCoreExamples]
		}
		parts = append(parts, fmt.Sprintf(
			"There are %d important core skills currently missing from your profile (e.g., %s).",
			len(missingCore), strings.Join(examples, ", "),
		))
	} else {
		parts = append(parts, "You already cover most of the core skills for this role, which is a strong signal.")
	}

	if len(missingNice) > 0 {
		parts = append(parts, fmt.Sprintf(
			"In addition, %d nice-to-have skills are missing. These are not mandatory but would significantly strengthen your profile.",
			len(missingNice),
		))
	}

	parts = append(parts, "Use the learning roadmap and suggested projects to close these gaps over the next weeks.")
	return strings.Join(parts, " ")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		set[item] = struct{}{}
	}
	return set
}

func difference(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func intersection(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
