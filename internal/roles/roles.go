package roles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Profile lists the skills a role requires (Core) and the ones that help (Nice).
type Profile struct {
	Name string   `json:"name"`
	Core []string `json:"core"`
	Nice []string `json:"nice"`
}

// ErrInvalidRolesFile is returned when a roles file does not match the expected schema.
var ErrInvalidRolesFile = errors.New("invalid roles file")

const rolesSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "core": {"type": "array", "items": {"type": "string"}},
      "nice": {"type": "array", "items": {"type": "string"}}
    },
    "required": ["core"]
  }
}`

var builtin = []Profile{
	{
		Name: "data scientist",
		Core: []string{"python", "pandas", "numpy", "sql", "statistics", "probability", "machine learning",
			"supervised learning", "unsupervised learning", "scikit-learn"},
		Nice: []string{"deep learning", "tensorflow", "pytorch", "natural language processing", "nlp", "time series",
			"mlops", "docker", "kubernetes", "aws", "azure", "gcp", "power bi", "tableau", "mlflow"},
	},
	{
		Name: "ml engineer",
		Core: []string{"python", "tensorflow", "pytorch", "deep learning", "mlops", "docker", "kubernetes", "ci/cd",
			"rest api", "fastapi", "flask", "git", "linux", "cloud"},
		Nice: []string{"feature store", "kafka", "spark", "airflow", "aws", "azure", "gcp", "monitoring", "ml observability"},
	},
	{
		Name: "backend engineer",
		Core: []string{"java", "python", "rest api", "sql", "postgresql", "mysql", "git", "docker", "clean code",
			"design patterns"},
		Nice: []string{"spring boot", "fastapi", "microservices", "kubernetes", "aws", "azure", "gcp", "redis", "rabbitmq"},
	},
	{
		Name: "cloud engineer",
		Core: []string{"cloud", "aws", "azure", "gcp", "networking", "linux", "terraform", "infrastructure as code",
			"docker", "kubernetes", "security"},
		Nice: []string{"ansible", "lambda", "cloudwatch", "devops", "ci/cd", "jenkins", "monitoring"},
	},
}

// Registry resolves free-form role names to profiles. It is immutable once built.
type Registry struct {
	order    []string
	profiles map[string]Profile
}

// NewRegistry returns a registry holding the built-in profiles followed by extra.
// An extra profile whose name matches an existing one replaces its skill lists in place.
func NewRegistry(extra ...Profile) *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for _, p := range builtin {
		r.add(p)
	}
	for _, p := range extra {
		r.add(p)
	}
	return r
}

func (r *Registry) add(p Profile) {
	key := normalizeRole(p.Name)
	if key == "" {
		return
	}
	p.Name = key
	p.Core = cleanSkills(p.Core)
	p.Nice = cleanSkills(p.Nice)
	if _, exists := r.profiles[key]; !exists {
		r.order = append(r.order, key)
	}
	r.profiles[key] = p
}

// Names returns role keys in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get returns the profile registered under the exact key.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.profiles[normalizeRole(name)]
	return p, ok
}

// Resolve maps a target role to a profile. Exact keys win, then the first key contained
// in the target, then keyword heuristics. Unknown roles report false.
func (r *Registry) Resolve(target string) (Profile, bool) {
	role := normalizeRole(target)
	if role == "" || len(r.profiles) == 0 {
		return Profile{}, false
	}

	if p, ok := r.profiles[role]; ok {
		return p, true
	}

	for _, key := range r.order {
		if strings.Contains(role, key) {
			return r.profiles[key], true
		}
	}

	var guess string
	switch {
	case strings.Contains(role, "data") && strings.Contains(role, "scientist"):
		guess = "data scientist"
	case strings.Contains(role, "ml") || strings.Contains(role, "machine learning"):
		guess = "ml engineer"
	case strings.Contains(role, "backend"):
		guess = "backend engineer"
	case strings.Contains(role, "cloud"):
		guess = "cloud engineer"
	}

	if p, ok := r.profiles[guess]; ok {
		return p, true
	}
	return Profile{}, false
}

// LoadFile reads extra profiles from a JSON object of the form
// {"role": {"core": [...], "nice": [...]}}. Profiles are returned sorted by name.
func LoadFile(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roles file %q: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rolesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRolesFile, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidRolesFile, strings.Join(details, "; "))
	}

	var doc map[string]struct {
		Core []string `json:"core"`
		Nice []string `json:"nice"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRolesFile, err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, Profile{Name: name, Core: doc[name].Core, Nice: doc[name].Nice})
	}
	return profiles, nil
}

// Load builds a registry from the built-in profiles and the optional roles file.
// A broken file is logged and ignored.
func Load(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return NewRegistry()
	}

	extra, err := LoadFile(path)
	if err != nil {
		logger.Warn("ignoring roles file", zap.String("path", path), zap.Error(err))
		return NewRegistry()
	}

	logger.Info("roles file loaded", zap.String("path", path), zap.Int("roles", len(extra)))
	return NewRegistry(extra...)
}

func normalizeRole(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func cleanSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
