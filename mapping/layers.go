package mapping

import (
	"sync"

	"github.com/greenscale93/IIsys/jsonfile"
)

// Tables is the lexical mapping document. The same shape is used for the
// defaults file, the user file and the merged in-memory view.
type Tables struct {
	EntityEN2RU    map[string]string   `json:"entity_en2ru"`
	EntityRU2Canon map[string]string   `json:"entity_ru2canon"`
	FieldRU2Canon  map[string]string   `json:"field_ru2canon"`
	FieldAliases   map[string][]string `json:"field_aliases"`
}

// NewTables returns an empty document with all maps allocated.
func NewTables() *Tables {
	return &Tables{
		EntityEN2RU:    map[string]string{},
		EntityRU2Canon: map[string]string{},
		FieldRU2Canon:  map[string]string{},
		FieldAliases:   map[string][]string{},
	}
}

// Clone returns a deep copy.
func (t *Tables) Clone() *Tables {
	out := NewTables()
	if t == nil {
		return out
	}
	for k, v := range t.EntityEN2RU {
		out.EntityEN2RU[k] = v
	}
	for k, v := range t.EntityRU2Canon {
		out.EntityRU2Canon[k] = v
	}
	for k, v := range t.FieldRU2Canon {
		out.FieldRU2Canon[k] = v
	}
	for k, v := range t.FieldAliases {
		out.FieldAliases[k] = append([]string(nil), v...)
	}
	return out
}

// DefaultsLayer is the read-only tier shipped with the application.
type DefaultsLayer interface {
	Load() (*Tables, error)
}

// UserLayer is the mutable tier. It receives the full merged document on
// every mutation.
type UserLayer interface {
	DefaultsLayer
	Save(*Tables) error
}

// Merge overlays user on defaults. Scalar maps: user wins, keys are
// normalized. Alias lists: union in first-seen order, duplicates dropped.
func Merge(defaults, user *Tables) *Tables {
	out := NewTables()
	for _, src := range []*Tables{defaults, user} {
		if src == nil {
			continue
		}
		overlay(out.EntityEN2RU, src.EntityEN2RU)
		overlay(out.EntityRU2Canon, src.EntityRU2Canon)
		overlay(out.FieldRU2Canon, src.FieldRU2Canon)
		for canon, aliases := range src.FieldAliases {
			out.FieldAliases[canon] = unionAliases(out.FieldAliases[canon], aliases)
		}
	}
	return out
}

func overlay(dst, src map[string]string) {
	for k, v := range src {
		dst[Normalize(k)] = v
	}
}

func unionAliases(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, a := range list {
			key := Normalize(a)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a)
		}
	}
	return out
}

// FileLayer reads and writes a JSON document on disk. A missing file
// loads as an empty document.
type FileLayer struct {
	Path string
}

func (f FileLayer) Load() (*Tables, error) {
	t := NewTables()
	if err := jsonfile.Read(f.Path, t); err != nil {
		return nil, err
	}
	return Merge(nil, t), nil
}

func (f FileLayer) Save(t *Tables) error {
	return jsonfile.WriteAtomic(f.Path, t)
}

// MemoryLayer keeps the document in memory. Used for embedded defaults
// and in tests.
type MemoryLayer struct {
	mu sync.Mutex
	t  *Tables
}

// NewMemoryLayer seeds a layer with a copy of t (nil means empty).
func NewMemoryLayer(t *Tables) *MemoryLayer {
	return &MemoryLayer{t: t.Clone()}
}

func (m *MemoryLayer) Load() (*Tables, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.Clone(), nil
}

func (m *MemoryLayer) Save(t *Tables) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t.Clone()
	return nil
}
