// Package engine wires the resolution pipeline together: parse, resolve,
// render, execute and respond.
//
// Design decisions:
//   - One Engine per process holds the shared stores. Every conversation
//     gets its own Session that owns the suggestion slot, so suggestions
//     never leak between users of the same engine.
//   - A question first goes through the structured parser. When the
//     parser finds nothing, the template matcher takes over.
//   - Resolution problems never surface as Go errors. They become response
//     text plus a suggestion. Only persistence failures are returned.
package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/dataset"
	"github.com/greenscale93/IIsys/fuzzy"
	"github.com/greenscale93/IIsys/mapping"
	"github.com/greenscale93/IIsys/parser"
	"github.com/greenscale93/IIsys/query"
	"github.com/greenscale93/IIsys/schema"
	"github.com/greenscale93/IIsys/template"
)

// DefaultMinConfidence is the inference confidence below which a guess is
// offered for confirmation instead of being executed.
const DefaultMinConfidence = 0.6

// Components are the collaborators an Engine is built from. Mapping,
// Values, Registry and Templates are required.
type Components struct {
	Mapping   *mapping.Store
	Values    *mapping.ValueStore
	Schema    *schema.Index
	Registry  *dataset.Registry
	Templates *template.Store
	// Inferer is optional; nil disables the inference strategy.
	Inferer template.Inferer
	Logger  *zap.Logger
}

// Options tune an Engine. Zero values fall back to defaults.
type Options struct {
	ColumnTopN    int
	ValueTopN     int
	MinConfidence float64
	Executor      query.Options
	Grammar       *parser.Grammar
}

// Engine answers questions against the loaded datasets.
type Engine struct {
	mapping   *mapping.Store
	values    *mapping.ValueStore
	schema    *schema.Index
	registry  *dataset.Registry
	templates *template.Store
	matcher   *template.Matcher
	executor  *query.Executor
	parser    *parser.Parser
	logger    *zap.Logger

	columnTopN    int
	valueTopN     int
	minConfidence float64
}

// New builds an engine from already loaded components.
func New(c Components, opts Options) (*Engine, error) {
	if c.Mapping == nil || c.Values == nil || c.Registry == nil || c.Templates == nil {
		return nil, errors.New("engine: mapping, values, registry and templates are required")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := c.Schema
	if idx == nil {
		idx = schema.Empty()
	}
	g := parser.DefaultGrammar()
	if opts.Grammar != nil {
		g = *opts.Grammar
	}
	execOpts := opts.Executor
	if execOpts.Graph == nil {
		execOpts.Graph = idx
	}
	if execOpts.Logger == nil {
		execOpts.Logger = logger
	}

	e := &Engine{
		mapping:       c.Mapping,
		values:        c.Values,
		schema:        idx,
		registry:      c.Registry,
		templates:     c.Templates,
		matcher:       template.NewMatcher(c.Templates, c.Inferer, logger),
		executor:      query.NewExecutor(c.Registry, execOpts),
		parser:        parser.New(c.Mapping, g),
		logger:        logger.Named("engine"),
		columnTopN:    opts.ColumnTopN,
		valueTopN:     opts.ValueTopN,
		minConfidence: opts.MinConfidence,
	}
	if e.columnTopN <= 0 {
		e.columnTopN = fuzzy.DefaultColumnTopN
	}
	if e.valueTopN <= 0 {
		e.valueTopN = fuzzy.DefaultValueTopN
	}
	if e.minConfidence <= 0 {
		e.minConfidence = DefaultMinConfidence
	}
	return e, nil
}

// Mapping returns the entity/field alias store.
func (e *Engine) Mapping() *mapping.Store { return e.mapping }

// Values returns the value alias store.
func (e *Engine) Values() *mapping.ValueStore { return e.values }

// Templates returns the template store.
func (e *Engine) Templates() *template.Store { return e.templates }

// Schema returns the schema index.
func (e *Engine) Schema() *schema.Index { return e.schema }

// Registry returns the loaded datasets.
func (e *Engine) Registry() *dataset.Registry { return e.registry }

// Reload re-reads the schema, mapping, value and template documents.
func (e *Engine) Reload() error {
	if err := e.schema.Reload(); err != nil {
		return err
	}
	if err := e.mapping.Reload(); err != nil {
		return errors.Wrap(err, "reload mappings")
	}
	if err := e.values.Reload(); err != nil {
		return errors.Wrap(err, "reload value aliases")
	}
	if err := e.templates.Reload(); err != nil {
		return err
	}
	e.logger.Info("reloaded")
	return nil
}

// AddTemplate validates t against the loaded datasets and stores it.
func (e *Engine) AddTemplate(t template.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	dummy := make(map[string]query.Value, len(t.ParameterNames))
	for _, p := range t.ParameterNames {
		dummy[p] = query.Scalar("x")
	}
	expr, err := t.Render(dummy)
	if err != nil {
		return err
	}
	if err := query.Validate(expr, e.registry); err != nil {
		return err
	}
	return e.templates.Add(t)
}

// Execute statically validates expr and runs it in the sandbox.
func (e *Engine) Execute(ctx context.Context, expr string) (*query.Result, error) {
	if err := query.Validate(expr, e.registry); err != nil {
		return nil, err
	}
	res, err := e.executor.Execute(ctx, expr)
	if err != nil {
		e.logger.Warn("execution failed", zap.Error(err))
		return nil, err
	}
	return res, nil
}

// nameColumn is the column listed for list questions: "Наименование" when
// present, otherwise the first column that is not a surrogate key.
func nameColumn(ds *dataset.Dataset) string {
	for _, c := range ds.Columns {
		if mapping.Normalize(c) == "наименование" {
			return c
		}
	}
	for _, c := range ds.Columns {
		if !mapping.IsSurrogateKey(c) {
			return c
		}
	}
	return ""
}

func datasetIdent(entity string) string {
	return query.DatasetPrefix + entity
}

// quoted renders a string literal of the expression language.
func quoted(s string) string { return strconv.Quote(s) }

func candidateLabels(cands []apperrors.Candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = strconv.Itoa(i+1) + ") " + c.Label + " (" + strconv.Itoa(c.Score) + ")"
	}
	return strings.Join(parts, ", ")
}
