package template

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/ai"
	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/fuzzy"
	"github.com/greenscale93/IIsys/jsonfile"
)

// AliasIndex maps a skeleton key to a template id. A later save for the
// same key overwrites the earlier one.
type AliasIndex map[string]string

// Scored is a template with its text-search score.
type Scored struct {
	Template Template
	Score    int
}

// ErrTemplateNotFound is returned for an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

// Store holds templates and learned skeleton aliases, persisted as two
// JSON documents. Empty paths keep everything in memory.
//
// Every change goes through mutate: wmu is held while the change is
// applied to a copy, written and published, so readers under mu never see
// an unsaved change.
type Store struct {
	tplPath, aliasPath string
	logger             *zap.Logger

	wmu sync.Mutex

	mu        sync.RWMutex
	templates []Template
	aliases   AliasIndex
	// invalid holds entries from the file that failed validation. They are
	// written back untouched so a hand edit is never lost.
	invalid []Template
}

// OpenStore loads both documents.
func OpenStore(tplPath, aliasPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{tplPath: tplPath, aliasPath: aliasPath, logger: logger.Named("templates"), aliases: AliasIndex{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore is a store seeded with templates and never written.
func NewMemoryStore(logger *zap.Logger, templates ...Template) (*Store, error) {
	s, err := OpenStore("", "", logger)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Reload re-reads both documents. Invalid and duplicate templates are
// set aside with a warning; alias keys written by older versions are
// re-skeletonized.
func (s *Store) Reload() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	var raw []Template
	if s.tplPath != "" {
		if err := jsonfile.Read(s.tplPath, &raw); err != nil {
			return errors.Wrap(err, "load templates")
		}
	}
	aliases := AliasIndex{}
	if s.aliasPath != "" {
		if err := jsonfile.Read(s.aliasPath, &aliases); err != nil {
			return errors.Wrap(err, "load template aliases")
		}
	}

	var templates, invalid []Template
	seen := map[string]bool{}
	for _, t := range raw {
		if err := t.Validate(); err != nil {
			s.logger.Warn("skipping invalid template", zap.String("id", t.ID), zap.Error(err))
			invalid = append(invalid, t)
			continue
		}
		if seen[t.ID] {
			s.logger.Warn("skipping duplicate template", zap.String("id", t.ID))
			invalid = append(invalid, t)
			continue
		}
		seen[t.ID] = true
		templates = append(templates, t)
	}

	migrated := AliasIndex{}
	changed := false
	for k, id := range aliases {
		key := Skeletonize(k)
		if key != k {
			changed = true
		}
		migrated[key] = id
	}
	if changed {
		if err := s.writeAliases(migrated); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.templates = templates
	s.aliases = migrated
	s.invalid = invalid
	s.mu.Unlock()

	s.logger.Info("templates loaded",
		zap.Int("templates", len(templates)),
		zap.Int("invalid", len(invalid)),
		zap.Int("aliases", len(migrated)))
	return nil
}

// List returns the templates in stored order.
func (s *Store) List() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Template(nil), s.templates...)
}

// Get finds a template by id.
func (s *Store) Get(id string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Signatures lists what the inference model may choose from.
func (s *Store) Signatures() []ai.TemplateSignature {
	list := s.List()
	out := make([]ai.TemplateSignature, len(list))
	for i, t := range list {
		out[i] = t.Signature()
	}
	return out
}

// state is the working copy a mutation edits.
type state struct {
	templates []Template
	aliases   AliasIndex

	templatesChanged bool
	aliasesChanged   bool
}

// mutate is the single write path: copy, apply fn, save what changed,
// publish. A failed save publishes nothing.
func (s *Store) mutate(op string, fn func(st *state) error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	st := &state{
		templates: append([]Template(nil), s.templates...),
		aliases:   make(AliasIndex, len(s.aliases)),
	}
	for k, v := range s.aliases {
		st.aliases[k] = v
	}
	invalid := s.invalid
	s.mu.RUnlock()

	if err := fn(st); err != nil {
		return err
	}
	if st.templatesChanged {
		if err := s.writeTemplates(append(append([]Template{}, st.templates...), invalid...)); err != nil {
			return errors.Wrap(err, op)
		}
	}
	if st.aliasesChanged {
		if err := s.writeAliases(st.aliases); err != nil {
			return errors.Wrap(err, op)
		}
	}

	s.mu.Lock()
	s.templates = st.templates
	s.aliases = st.aliases
	s.mu.Unlock()
	return nil
}

// Add validates and stores a new template.
func (s *Store) Add(t Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	err := s.mutate("add template", func(st *state) error {
		for _, x := range st.templates {
			if x.ID == t.ID {
				return errors.WithHintf(apperrors.NewValidation("template %q already exists", t.ID),
					"delete it first with `iisys template delete %s`", t.ID)
			}
		}
		st.templates = append(st.templates, t)
		st.templatesChanged = true
		return nil
	})
	if err == nil {
		s.logger.Info("template added", zap.String("id", t.ID))
	}
	return err
}

// Delete removes a template and every alias pointing at it.
func (s *Store) Delete(id string) error {
	dropped := 0
	err := s.mutate("delete template", func(st *state) error {
		idx := -1
		for i, t := range st.templates {
			if t.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.Wrapf(ErrTemplateNotFound, "%q", id)
		}
		st.templates = append(st.templates[:idx:idx], st.templates[idx+1:]...)
		st.templatesChanged = true
		for k, v := range st.aliases {
			if v == id {
				delete(st.aliases, k)
				dropped++
			}
		}
		st.aliasesChanged = dropped > 0
		return nil
	})
	if err == nil {
		s.logger.Info("template deleted", zap.String("id", id), zap.Int("aliases_dropped", dropped))
	}
	return err
}

// Aliases returns a copy of the alias index.
func (s *Store) Aliases() AliasIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(AliasIndex, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// aliasKeys returns the alias keys in sorted order.
func (s *Store) aliasKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.aliases))
	for k := range s.aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) aliasFor(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.aliases[key]
	return id, ok
}

// SaveAlias binds the skeleton of question to template id and returns
// the stored key.
func (s *Store) SaveAlias(question, id string) (string, error) {
	var key string
	saved := false
	err := s.mutate("save template alias", func(st *state) error {
		var tpl Template
		found := false
		for _, t := range st.templates {
			if t.ID == id {
				tpl, found = t, true
				break
			}
		}
		if !found {
			return errors.Wrapf(ErrTemplateNotFound, "%q", id)
		}
		key = skeletonForTemplate(question, tpl)
		if st.aliases[key] == id {
			return nil
		}
		st.aliases[key] = id
		st.aliasesChanged = true
		saved = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if saved {
		s.logger.Info("template alias saved", zap.String("key", key), zap.String("template", id))
	}
	return key, nil
}

// RemoveAlias deletes an alias given either its stored key or a question
// with the same skeleton.
func (s *Store) RemoveAlias(keyOrQuestion string) error {
	var key string
	err := s.mutate("remove template alias", func(st *state) error {
		key = keyOrQuestion
		if _, ok := st.aliases[key]; !ok {
			key = Skeletonize(keyOrQuestion)
		}
		if _, ok := st.aliases[key]; !ok {
			return apperrors.NewAliasNotFound("template", keyOrQuestion)
		}
		delete(st.aliases, key)
		st.aliasesChanged = true
		return nil
	})
	if err == nil {
		s.logger.Info("template alias removed", zap.String("key", key))
	}
	return err
}

// SearchByText ranks templates by fuzzy similarity of q to their pattern
// and id.
func (s *Store) SearchByText(q string, topN int) []Scored {
	if topN <= 0 {
		topN = 5
	}
	q = strings.TrimSpace(q)
	list := s.List()
	out := make([]Scored, 0, len(list))
	for _, t := range list {
		out = append(out, Scored{Template: t, Score: fuzzy.WRatio(q, t.TextPattern+" "+t.ID)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func (s *Store) writeTemplates(list []Template) error {
	if s.tplPath == "" {
		return nil
	}
	if list == nil {
		list = []Template{}
	}
	return errors.Wrap(jsonfile.WriteAtomic(s.tplPath, list), "save templates")
}

func (s *Store) writeAliases(aliases AliasIndex) error {
	if s.aliasPath == "" {
		return nil
	}
	return errors.Wrap(jsonfile.WriteAtomic(s.aliasPath, aliases), "save template aliases")
}
