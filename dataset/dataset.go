// Package dataset holds the in-memory tables questions are answered from.
//
// Design decisions:
//   - Every cell is a string, as exported by the ERP; numeric handling is
//     left to the few query functions that need it.
//   - Loading (CSV directory or Postgres schema) lives here, outside the
//     resolution core, which only reads datasets through Registry.
package dataset

import (
	"sort"
	"strings"
	"sync"
)

// Dataset is a named table of string columns.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New builds a dataset. Short rows are padded so every row has one cell
// per column.
func New(name string, columns []string, rows [][]string) *Dataset {
	d := &Dataset{Name: name, Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := d.index[c]; !dup {
			d.index[c] = i
		}
	}
	for i, r := range rows {
		if len(r) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, r)
			rows[i] = padded
		}
	}
	return d
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// ColumnIndex finds a column by exact name.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Values returns a column in row order.
func (d *Dataset) Values(column string) ([]string, bool) {
	i, ok := d.index[column]
	if !ok {
		return nil, false
	}
	out := make([]string, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Distinct returns the non-empty distinct values of a column in first-seen
// order.
func (d *Dataset) Distinct(column string) []string {
	vals, ok := d.Values(column)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Contains reports whether any cell of column equals value (trimmed).
func (d *Dataset) Contains(column, value string) bool {
	i, ok := d.index[column]
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	for _, row := range d.Rows {
		if strings.TrimSpace(row[i]) == value {
			return true
		}
	}
	return false
}

// Registry is the set of loaded datasets, keyed by entity name.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]*Dataset
}

// NewRegistry registers ds.
func NewRegistry(ds ...*Dataset) *Registry {
	r := &Registry{sets: make(map[string]*Dataset, len(ds))}
	for _, d := range ds {
		r.sets[d.Name] = d
	}
	return r
}

// Put adds or replaces a dataset.
func (r *Registry) Put(d *Dataset) {
	r.mu.Lock()
	r.sets[d.Name] = d
	r.mu.Unlock()
}

// Get finds a dataset by exact name, then case-insensitively.
func (r *Registry) Get(name string) (*Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.sets[name]; ok {
		return d, true
	}
	for n, d := range r.sets {
		if strings.EqualFold(n, name) {
			return d, true
		}
	}
	return nil, false
}

// Columns returns a dataset's column names.
func (r *Registry) Columns(name string) ([]string, bool) {
	d, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return d.Columns, true
}

// Names lists the registered dataset names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sets))
	for n := range r.sets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}
