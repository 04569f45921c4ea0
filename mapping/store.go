// Package mapping is the lexical mapping store: it canonicalizes entity,
// field and value phrases and persists learned aliases.
//
// Design decisions:
//   - The store is an explicit object built at startup and passed to every
//     resolver; there is no package-level state.
//   - Persistence is two-tier. The defaults layer is read-only; every
//     mutation re-reads both layers, merges them, applies the change and
//     writes the merged document to the user layer under one mutex.
//   - Readers use an atomically swapped snapshot and never take the lock.
package mapping

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
)

// ErrNothingToUndo is returned by UndoLast when no mutation is recorded.
var ErrNothingToUndo = errors.New("nothing to undo")

// Store holds entity and field alias tables.
type Store struct {
	defaults DefaultsLayer
	user     UserLayer
	logger   *zap.Logger

	mu   sync.Mutex // serializes load-merge-save
	undo *Tables

	snap atomic.Pointer[Tables]
}

// NewStore loads and merges both layers.
func NewStore(defaults DefaultsLayer, user UserLayer, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		defaults: defaults,
		user:     user,
		logger:   logger.Named("mapping"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both layers and swaps the snapshot.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := s.loadMerged()
	if err != nil {
		return err
	}
	s.snap.Store(merged)
	return nil
}

func (s *Store) loadMerged() (*Tables, error) {
	d, err := s.defaults.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load mapping defaults")
	}
	u, err := s.user.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load user mappings")
	}
	return Merge(d, u), nil
}

// Snapshot returns the current merged tables. Callers must not modify it.
func (s *Store) Snapshot() *Tables {
	return s.snap.Load()
}

// mutate is the single write path: load, merge, apply fn, save, publish.
func (s *Store) mutate(op string, fn func(t *Tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := s.loadMerged()
	if err != nil {
		return err
	}
	prev := merged.Clone()
	if err := fn(merged); err != nil {
		return err
	}
	if err := s.user.Save(merged); err != nil {
		return errors.Wrapf(err, "persist mappings after %s", op)
	}
	s.undo = prev
	s.snap.Store(merged)
	return nil
}

// CanonicalizeEntity maps a noun phrase to a canonical entity name. The
// full phrase is tried before its last word.
func (s *Store) CanonicalizeEntity(phrase string) (string, bool) {
	t := s.Snapshot()
	key := Normalize(phrase)
	if key == "" {
		return "", false
	}
	for _, k := range []string{key, lastWord(key)} {
		if c, ok := t.EntityRU2Canon[k]; ok {
			return c, true
		}
		if c, ok := t.EntityEN2RU[k]; ok {
			return c, true
		}
		if c, ok := canonicalEntityNamed(t, k); ok {
			return c, true
		}
	}
	return "", false
}

func canonicalEntityNamed(t *Tables, key string) (string, bool) {
	for _, m := range []map[string]string{t.EntityRU2Canon, t.EntityEN2RU} {
		for _, c := range m {
			if Normalize(c) == key {
				return c, true
			}
		}
	}
	return "", false
}

// CanonicalizeField maps a field phrase to its canonical field. The full
// phrase wins over single words.
func (s *Store) CanonicalizeField(phrase string) (string, bool) {
	t := s.Snapshot()
	key := Normalize(phrase)
	if key == "" {
		return "", false
	}
	if c, ok := t.FieldRU2Canon[key]; ok {
		return c, true
	}
	for canon := range t.FieldAliases {
		if Normalize(canon) == key {
			return canon, true
		}
	}
	for _, w := range strings.Fields(key) {
		if c, ok := t.FieldRU2Canon[w]; ok {
			return c, true
		}
	}
	return "", false
}

// FieldAliases returns the aliases stored for a canonical field.
func (s *Store) FieldAliases(field string) []string {
	t := s.Snapshot()
	if list, ok := t.FieldAliases[field]; ok {
		return list
	}
	key := Normalize(field)
	for canon, list := range t.FieldAliases {
		if Normalize(canon) == key {
			return list
		}
	}
	return nil
}

// ResolveColumn picks the dataset column for field: the name column
// (field+NameSuffix), then a column literally named field, then any stored
// alias of field. Surrogate-key columns are never returned.
func (s *Store) ResolveColumn(columns []string, field string) (string, bool) {
	byKey := make(map[string]string, len(columns))
	for _, c := range columns {
		if IsSurrogateKey(c) {
			continue
		}
		if _, dup := byKey[Normalize(c)]; !dup {
			byKey[Normalize(c)] = c
		}
	}
	if c, ok := byKey[Normalize(field+NameSuffix)]; ok {
		return c, true
	}
	if c, ok := byKey[Normalize(field)]; ok {
		return c, true
	}
	for _, alias := range s.FieldAliases(field) {
		if c, ok := byKey[Normalize(alias)]; ok {
			return c, true
		}
	}
	return "", false
}

// AddEntityAlias binds alias to a canonical entity.
func (s *Store) AddEntityAlias(alias, canonical string) error {
	key := Normalize(alias)
	if key == "" || strings.TrimSpace(canonical) == "" {
		return errors.New("entity alias and canonical name must not be empty")
	}
	err := s.mutate("add entity alias", func(t *Tables) error {
		t.EntityRU2Canon[key] = canonical
		return nil
	})
	if err == nil {
		s.logger.Info("entity alias added", zap.String("alias", key), zap.String("canonical", canonical))
	}
	return err
}

// RemoveEntityAlias drops an entity alias from the user layer.
func (s *Store) RemoveEntityAlias(alias string) error {
	key := Normalize(alias)
	err := s.mutate("remove entity alias", func(t *Tables) error {
		_, ru := t.EntityRU2Canon[key]
		_, en := t.EntityEN2RU[key]
		if !ru && !en {
			return apperrors.NewAliasNotFound("entity", alias)
		}
		delete(t.EntityRU2Canon, key)
		delete(t.EntityEN2RU, key)
		return s.checkNotInDefaults(func(d *Tables) bool {
			_, ru := d.EntityRU2Canon[key]
			_, en := d.EntityEN2RU[key]
			return ru || en
		}, alias)
	})
	if err == nil {
		s.logger.Info("entity alias removed", zap.String("alias", key))
	}
	return err
}

// AddFieldAlias records alias as a phrase for canonical and appends it to
// the canonical field's alias list.
func (s *Store) AddFieldAlias(alias, canonical string) error {
	key := Normalize(alias)
	if key == "" || strings.TrimSpace(canonical) == "" {
		return errors.New("field alias and canonical name must not be empty")
	}
	err := s.mutate("add field alias", func(t *Tables) error {
		t.FieldRU2Canon[key] = canonical
		t.FieldAliases[canonical] = unionAliases(t.FieldAliases[canonical], []string{alias})
		return nil
	})
	if err == nil {
		s.logger.Info("field alias added", zap.String("alias", alias), zap.String("canonical", canonical))
	}
	return err
}

// RemoveFieldAlias drops alias from the phrase table and every alias list.
func (s *Store) RemoveFieldAlias(alias string) error {
	key := Normalize(alias)
	err := s.mutate("remove field alias", func(t *Tables) error {
		found := false
		if _, ok := t.FieldRU2Canon[key]; ok {
			delete(t.FieldRU2Canon, key)
			found = true
		}
		for canon, list := range t.FieldAliases {
			kept := slices.DeleteFunc(slices.Clone(list), func(a string) bool { return Normalize(a) == key })
			if len(kept) != len(list) {
				found = true
				t.FieldAliases[canon] = kept
			}
		}
		if !found {
			return apperrors.NewAliasNotFound("field", alias)
		}
		return s.checkNotInDefaults(func(d *Tables) bool {
			if _, ok := d.FieldRU2Canon[key]; ok {
				return true
			}
			for _, list := range d.FieldAliases {
				for _, a := range list {
					if Normalize(a) == key {
						return true
					}
				}
			}
			return false
		}, alias)
	})
	if err == nil {
		s.logger.Info("field alias removed", zap.String("alias", key))
	}
	return err
}

// checkNotInDefaults refuses removals that the next merge would undo.
func (s *Store) checkNotInDefaults(present func(*Tables) bool, alias string) error {
	d, err := s.defaults.Load()
	if err != nil {
		return errors.Wrap(err, "load mapping defaults")
	}
	if present(Merge(nil, d)) {
		return errors.WithHint(
			errors.Newf("alias %q is defined in the defaults layer", alias),
			"edit the defaults mapping file to remove it")
	}
	return nil
}

// UndoLast restores the document as it was before the last mutation made
// through this store. Only one step is kept.
func (s *Store) UndoLast() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo == nil {
		return ErrNothingToUndo
	}
	if err := s.user.Save(s.undo); err != nil {
		return errors.Wrap(err, "persist mappings after undo")
	}
	s.snap.Store(s.undo)
	s.undo = nil
	s.logger.Info("last mapping change undone")
	return nil
}
