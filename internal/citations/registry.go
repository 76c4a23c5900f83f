// Package citations provides the source registry that backs technique
// recommendations with published evidence.
//
// The registry ships with an embedded TOML database of consulting and
// operations-management literature. Deployments can replace it with their own
// database via the citations.path config key; the file uses the same schema as
// the embedded one.
package citations

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed sources.toml
var defaultSources []byte

// Sentinel errors for registry loading.
var (
	ErrInvalidTOML   = fmt.Errorf("invalid sources TOML")
	ErrUnknownSource = fmt.Errorf("technique references unknown source")
)

// Citation is a single published source backing a technique recommendation.
type Citation struct {
	Key         string   `toml:"key" json:"key"`
	Title       string   `toml:"title" json:"title"`
	Authors     []string `toml:"authors" json:"authors"`
	Year        int      `toml:"year" json:"year"`
	Publication string   `toml:"publication" json:"publication"`
	Finding     string   `toml:"finding" json:"finding"`
}

// Registry maps technique keys to their supporting citations.
//
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	sources    map[string]Citation
	order      []string
	techniques map[string][]string
}

// sourcesFile is the on-disk/embedded schema.
type sourcesFile struct {
	Sources    []Citation          `toml:"source"`
	Techniques map[string][]string `toml:"techniques"`
}

// NewRegistry builds a registry from the embedded source database.
func NewRegistry() (*Registry, error) {
	return parse(defaultSources)
}

// NewRegistryFromFile builds a registry from a replacement TOML database.
func NewRegistryFromFile(path string) (*Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat sources file: %w", err)
	}

	var file sourcesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	return build(&file)
}

func parse(data []byte) (*Registry, error) {
	var file sourcesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	return build(&file)
}

func build(file *sourcesFile) (*Registry, error) {
	r := &Registry{
		sources:    make(map[string]Citation, len(file.Sources)),
		order:      make([]string, 0, len(file.Sources)),
		techniques: file.Techniques,
	}

	for _, src := range file.Sources {
		if src.Key == "" {
			return nil, fmt.Errorf("%w: source with empty key (title %q)", ErrInvalidTOML, src.Title)
		}
		if _, dup := r.sources[src.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate source key %q", ErrInvalidTOML, src.Key)
		}
		r.sources[src.Key] = src
		r.order = append(r.order, src.Key)
	}

	// Every technique mapping must resolve (fail-fast on registry load, not on
	// first lookup mid-run).
	for technique, keys := range r.techniques {
		for _, key := range keys {
			if _, ok := r.sources[key]; !ok {
				return nil, fmt.Errorf("%w: technique %q references %q", ErrUnknownSource, technique, key)
			}
		}
	}

	return r, nil
}

// ForTechnique returns the citations backing a technique, in mapping order.
// Unknown techniques return an empty slice.
func (r *Registry) ForTechnique(technique string) []Citation {
	keys := r.techniques[technique]
	out := make([]Citation, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.sources[key])
	}
	return out
}

// All returns every citation in database order.
func (r *Registry) All() []Citation {
	out := make([]Citation, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.sources[key])
	}
	return out
}

// Has reports whether the registry maps the given technique to any sources.
func (r *Registry) Has(technique string) bool {
	return len(r.techniques[technique]) > 0
}

// Len returns the number of sources in the database.
func (r *Registry) Len() int {
	return len(r.sources)
}
