package mapping

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/jsonfile"
)

// DictionaryLookup finds the reference dictionary behind an entity field.
// schema.Index satisfies it.
type DictionaryLookup interface {
	ReferenceDictionary(entity, field string) (string, bool)
}

// ValueDocument maps a dictionary name (or "entity.field") to
// {folded alias: canonical value}.
type ValueDocument map[string]map[string]string

// Resolution is the outcome of a value lookup.
type Resolution struct {
	Value string // canonical value, or the raw input when nothing matched
	Key   string // namespace that produced the hit
	Hit   bool
}

// AddResult reports where a value alias was written. Degraded is set when
// no reference dictionary was known and the entity.field namespace was used.
type AddResult struct {
	Key      string
	Degraded bool
}

// ValueAlias is one stored value alias, for listings.
type ValueAlias struct {
	Key       string
	Alias     string
	Canonical string
}

// FallbackKey is the namespace used when a field has no known dictionary.
func FallbackKey(entity, field string) string {
	return entity + "." + field
}

// ValueStore keeps value aliases keyed by reference dictionary so that
// several entities pointing at the same dictionary share them.
type ValueStore struct {
	path   string
	dicts  DictionaryLookup
	logger *zap.Logger

	mu   sync.Mutex
	snap atomic.Pointer[ValueDocument]
}

// NewValueStore loads the value document at path. An empty path keeps
// everything in memory.
func NewValueStore(path string, dicts DictionaryLookup, logger *zap.Logger) (*ValueStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &ValueStore{path: path, dicts: dicts, logger: logger.Named("values")}
	if err := v.Reload(); err != nil {
		return nil, err
	}
	return v, nil
}

// Reload re-reads the document from disk.
func (v *ValueStore) Reload() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	doc, err := v.load()
	if err != nil {
		return err
	}
	v.snap.Store(&doc)
	return nil
}

func (v *ValueStore) load() (ValueDocument, error) {
	doc := ValueDocument{}
	if v.path == "" {
		if cur := v.snap.Load(); cur != nil {
			return cloneValues(*cur), nil
		}
		return doc, nil
	}
	if err := jsonfile.Read(v.path, &doc); err != nil {
		return nil, err
	}
	out := ValueDocument{}
	for key, aliases := range doc {
		m := make(map[string]string, len(aliases))
		for a, c := range aliases {
			m[Normalize(a)] = c
		}
		out[key] = m
	}
	return out, nil
}

func cloneValues(doc ValueDocument) ValueDocument {
	out := make(ValueDocument, len(doc))
	for k, m := range doc {
		cp := make(map[string]string, len(m))
		for a, c := range m {
			cp[a] = c
		}
		out[k] = cp
	}
	return out
}

func (v *ValueStore) dictionaryKey(entity, field string) (string, bool) {
	if v.dicts == nil {
		return "", false
	}
	d, ok := v.dicts.ReferenceDictionary(entity, field)
	if !ok || strings.TrimSpace(d) == "" {
		return "", false
	}
	return d, true
}

// Resolve maps raw to a canonical value: the dictionary namespace first,
// then entity.field, then raw unchanged.
func (v *ValueStore) Resolve(entity, field, raw string) Resolution {
	doc := *v.snap.Load()
	alias := Normalize(raw)
	if key, ok := v.dictionaryKey(entity, field); ok {
		if c, ok := doc[key][alias]; ok {
			return Resolution{Value: c, Key: key, Hit: true}
		}
	}
	fb := FallbackKey(entity, field)
	if c, ok := doc[fb][alias]; ok {
		return Resolution{Value: c, Key: fb, Hit: true}
	}
	return Resolution{Value: raw}
}

// Add stores alias → canonical, preferring the dictionary namespace.
func (v *ValueStore) Add(entity, field, alias, canonical string) (AddResult, error) {
	a := Normalize(alias)
	if a == "" || strings.TrimSpace(canonical) == "" {
		return AddResult{}, errors.New("value alias and canonical value must not be empty")
	}
	res := AddResult{}
	if key, ok := v.dictionaryKey(entity, field); ok {
		res.Key = key
	} else {
		res.Key = FallbackKey(entity, field)
		res.Degraded = true
	}
	err := v.mutate(func(doc ValueDocument) error {
		if doc[res.Key] == nil {
			doc[res.Key] = map[string]string{}
		}
		doc[res.Key][a] = canonical
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	v.logger.Info("value alias added",
		zap.String("key", res.Key),
		zap.String("alias", a),
		zap.String("canonical", canonical),
		zap.Bool("degraded", res.Degraded))
	return res, nil
}

// Remove deletes alias from whichever namespace holds it for entity.field.
func (v *ValueStore) Remove(entity, field, alias string) error {
	a := Normalize(alias)
	keys := []string{FallbackKey(entity, field)}
	if key, ok := v.dictionaryKey(entity, field); ok {
		keys = append([]string{key}, keys...)
	}
	return v.mutate(func(doc ValueDocument) error {
		for _, key := range keys {
			if _, ok := doc[key][a]; ok {
				delete(doc[key], a)
				if len(doc[key]) == 0 {
					delete(doc, key)
				}
				v.logger.Info("value alias removed", zap.String("key", key), zap.String("alias", a))
				return nil
			}
		}
		return apperrors.NewAliasNotFound("value", alias)
	})
}

func (v *ValueStore) mutate(fn func(ValueDocument) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	doc, err := v.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if v.path != "" {
		if err := jsonfile.WriteAtomic(v.path, doc); err != nil {
			return errors.Wrap(err, "persist value aliases")
		}
	}
	v.snap.Store(&doc)
	return nil
}

// List returns every stored value alias ordered by namespace and alias.
func (v *ValueStore) List() []ValueAlias {
	doc := *v.snap.Load()
	var out []ValueAlias
	for key, m := range doc {
		for a, c := range m {
			out = append(out, ValueAlias{Key: key, Alias: a, Canonical: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Alias < out[j].Alias
	})
	return out
}
