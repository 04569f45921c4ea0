// Package schema recovers field → reference-dictionary relationships from
// the exported description document.
//
// The document is line oriented:
//
//	Справочник: Проекты
//	Руководитель_GUID: GUID справочника Сотрудники
//	Руководитель_Наименование: Наименование
//
// A field is a reference link when its key ends in _GUID and its value
// contains the marker "GUID справочника"; the dictionary name is whatever
// follows the marker.
package schema

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	guidSuffix = "_GUID"
	nameSuffix = "_Наименование"
	refMarker  = "GUID справочника"
)

var (
	reSection = regexp.MustCompile(`(?i)^\s*Справочник:\s*(.+?)\s*$`)
	reField   = regexp.MustCompile(`^\s*([A-Za-zА-Яа-яЁё0-9_]+)\s*:\s*(.+?)\s*$`)
)

// Link describes one reference field of an entity.
type Link struct {
	Field      string // base name, suffixes stripped
	Dictionary string
	NameColumn string // empty when the document declares none
	GUIDColumn string
}

// Index is safe for concurrent use. Reload swaps the whole content.
type Index struct {
	path string

	mu       sync.RWMutex
	entities map[string]map[string]Link
}

// Load parses the document at path. A missing file yields an empty index
// so lookups degrade to the entity.field value namespace.
func Load(path string) (*Index, error) {
	idx := &Index{path: path, entities: map[string]map[string]Link{}}
	if err := idx.Reload(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Empty returns an index with no links.
func Empty() *Index {
	return &Index{entities: map[string]map[string]Link{}}
}

// Reload re-reads the document the index was loaded from.
func (x *Index) Reload() error {
	if x.path == "" {
		return nil
	}
	f, err := os.Open(x.path)
	if err != nil {
		if os.IsNotExist(err) {
			x.swap(map[string]map[string]Link{})
			return nil
		}
		return errors.Wrapf(err, "open schema description %s", x.path)
	}
	defer f.Close()

	entities, err := Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parse schema description %s", x.path)
	}
	x.swap(entities)
	return nil
}

func (x *Index) swap(entities map[string]map[string]Link) {
	x.mu.Lock()
	x.entities = entities
	x.mu.Unlock()
}

// Parse reads a description document into entity → base field → Link.
func Parse(r io.Reader) (map[string]map[string]Link, error) {
	out := map[string]map[string]Link{}
	var (
		entity string
		fields map[string]string
		order  []string
	)
	flush := func() {
		if entity == "" || len(fields) == 0 {
			return
		}
		links := map[string]Link{}
		for _, key := range order {
			rhs := fields[key]
			if !strings.HasSuffix(strings.ToUpper(key), guidSuffix) {
				continue
			}
			pos := strings.Index(rhs, refMarker)
			if pos < 0 {
				continue
			}
			base := key[:len(key)-len(guidSuffix)]
			l := Link{
				Field:      base,
				Dictionary: strings.TrimSpace(rhs[pos+len(refMarker):]),
				GUIDColumn: key,
			}
			if _, ok := fields[base+nameSuffix]; ok {
				l.NameColumn = base + nameSuffix
			}
			links[base] = l
		}
		if len(links) > 0 {
			out[entity] = links
		}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if m := reSection.FindStringSubmatch(line); m != nil {
			flush()
			entity = m[1]
			fields = map[string]string{}
			order = nil
			continue
		}
		if entity == "" {
			continue
		}
		if m := reField.FindStringSubmatch(line); m != nil {
			if _, seen := fields[m[1]]; !seen {
				order = append(order, m[1])
			}
			fields[m[1]] = m[2]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

// lookup finds a link by exact entity/field, then case-insensitively.
func (x *Index) lookup(entity, field string) (Link, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	links, ok := x.entities[entity]
	if !ok {
		for name, l := range x.entities {
			if strings.EqualFold(name, entity) {
				links, ok = l, true
				break
			}
		}
	}
	if !ok {
		return Link{}, false
	}
	if l, ok := links[field]; ok {
		return l, true
	}
	for base, l := range links {
		if strings.EqualFold(base, field) {
			return l, true
		}
	}
	return Link{}, false
}

// ReferenceDictionary returns the dictionary an entity field points at.
func (x *Index) ReferenceDictionary(entity, field string) (string, bool) {
	l, ok := x.lookup(entity, field)
	if !ok || l.Dictionary == "" {
		return "", false
	}
	return l.Dictionary, true
}

// NameColumn returns the human-readable column of a reference field.
func (x *Index) NameColumn(entity, field string) (string, bool) {
	l, ok := x.lookup(entity, field)
	if !ok || l.NameColumn == "" {
		return "", false
	}
	return l.NameColumn, true
}

// GUIDColumn returns the surrogate-key column of a reference field.
func (x *Index) GUIDColumn(entity, field string) (string, bool) {
	l, ok := x.lookup(entity, field)
	if !ok {
		return "", false
	}
	return l.GUIDColumn, true
}

// Links lists an entity's reference fields as "field → dictionary",
// sorted by field.
func (x *Index) Links(entity string) []string {
	x.mu.RLock()
	links := x.entities[entity]
	if links == nil {
		for name, l := range x.entities {
			if strings.EqualFold(name, entity) {
				links = l
				break
			}
		}
	}
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, fmt.Sprintf("%s → %s", l.Field, l.Dictionary))
	}
	x.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Entities returns the entity names that declare at least one link.
func (x *Index) Entities() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.entities))
	for name := range x.entities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
