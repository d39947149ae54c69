package taxonomy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

//go:embed skills_taxonomy.json
var defaultTaxonomy []byte

// Status describes how a snapshot was obtained.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusMalformed   Status = "malformed"
)

// Entry is a single canonical skill with its aliases.
type Entry struct {
	Canonical string   `mapstructure:"canonical" json:"canonical"`
	Aliases   []string `mapstructure:"aliases" json:"aliases,omitempty"`
	Category  string   `mapstructure:"category" json:"category,omitempty"`
}

// Candidates returns the canonical name followed by every alias.
func (e Entry) Candidates() []string {
	out := make([]string, 0, len(e.Aliases)+1)
	out = append(out, e.Canonical)
	return append(out, e.Aliases...)
}

// Snapshot is an immutable view of the taxonomy. It is safe for concurrent use.
type Snapshot struct {
	entries map[string]Entry
	keys    []string
	status  Status
}

// NewSnapshot builds a snapshot from already decoded entries. Keys are lower-cased
// and entries without a canonical name use their key.
func NewSnapshot(entries map[string]Entry) *Snapshot {
	s := &Snapshot{entries: make(map[string]Entry, len(entries)), status: StatusOK}
	for key, entry := range entries {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if strings.TrimSpace(entry.Canonical) == "" {
			entry.Canonical = key
		}
		entry.Aliases = append([]string(nil), entry.Aliases...)
		s.entries[key] = entry
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)
	return s
}

func emptySnapshot(status Status) *Snapshot {
	return &Snapshot{entries: map[string]Entry{}, status: status}
}

// Parse decodes a JSON taxonomy document. Anything that is not a JSON object yields
// an empty snapshot marked malformed. Entries that are not objects are skipped.
func Parse(data []byte) *Snapshot {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return emptySnapshot(StatusMalformed)
	}

	raw, ok := doc.(map[string]any)
	if !ok {
		return emptySnapshot(StatusMalformed)
	}

	entries := make(map[string]Entry, len(raw))
	for key, value := range raw {
		meta, ok := value.(map[string]any)
		if !ok {
			continue
		}

		var entry Entry
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &entry,
		})
		if err != nil {
			continue
		}
		if err := decoder.Decode(meta); err != nil {
			continue
		}
		entries[key] = entry
	}

	return NewSnapshot(entries)
}

// Status reports whether the snapshot was loaded successfully.
func (s *Snapshot) Status() Status { return s.status }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.keys) }

// Keys returns the lower-cased entry keys in sorted order.
func (s *Snapshot) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Entry returns the entry stored under key.
func (s *Snapshot) Entry(key string) (Entry, bool) {
	e, ok := s.entries[strings.ToLower(strings.TrimSpace(key))]
	return e, ok
}

// Each calls fn for every entry in key order.
func (s *Snapshot) Each(fn func(key string, e Entry)) {
	for _, key := range s.keys {
		fn(key, s.entries[key])
	}
}

// Normalize maps a raw skill name to its canonical form. Keys are matched first,
// then aliases case-insensitively. Unknown skills and empty taxonomies return the
// trimmed input. Blank input reports false.
func (s *Snapshot) Normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return "", false
	}

	if s == nil || len(s.entries) == 0 {
		return trimmed, true
	}

	if e, ok := s.entries[lower]; ok {
		return e.Canonical, true
	}

	for _, key := range s.keys {
		e := s.entries[key]
		for _, alias := range e.Aliases {
			if strings.ToLower(strings.TrimSpace(alias)) == lower {
				return e.Canonical, true
			}
		}
	}

	return trimmed, true
}

// Store loads the taxonomy once per process and hands out the same snapshot afterwards.
type Store struct {
	path   string
	logger *zap.Logger

	once     sync.Once
	snapshot *Snapshot
}

// NewStore creates a store reading from path. An empty path selects the bundled taxonomy.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: strings.TrimSpace(path), logger: logger}
}

// Load returns the cached snapshot, reading the source on first use.
func (s *Store) Load() *Snapshot {
	s.once.Do(func() {
		s.snapshot = s.read()
		s.logger.Info("skills taxonomy loaded",
			zap.String("source", s.source()),
			zap.String("status", string(s.snapshot.Status())),
			zap.Int("entries", s.snapshot.Len()),
		)
	})
	return s.snapshot
}

func (s *Store) read() *Snapshot {
	if s.path == "" {
		return Parse(defaultTaxonomy)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("skills taxonomy file not found", zap.String("path", s.path))
		} else {
			s.logger.Warn("reading skills taxonomy", zap.String("path", s.path), zap.Error(err))
		}
		return emptySnapshot(StatusUnavailable)
	}

	snap := Parse(data)
	if snap.Status() == StatusMalformed {
		s.logger.Warn("skills taxonomy is not a JSON object", zap.String("path", s.path))
	}
	return snap
}

func (s *Store) source() string {
	if s.path == "" {
		return "embedded"
	}
	return s.path
}
