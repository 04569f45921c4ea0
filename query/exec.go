package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/dataset"
)

const (
	DefaultTimeout      = 2 * time.Second
	DefaultPreviewLimit = 50
)

// forbidden is matched case-insensitively against the raw expression.
var forbidden = []string{"pyodbc", "select ", "read_csv", ".csv", "import ", "open("}

// Graph is the relationship graph visible to links().
type Graph interface {
	Links(entity string) []string
}

// Options tune an Executor. Zero values fall back to the defaults.
type Options struct {
	Timeout      time.Duration
	PreviewLimit int
	Graph        Graph
	Logger       *zap.Logger
}

// Executor evaluates expressions against the registered datasets.
type Executor struct {
	registry *dataset.Registry
	graph    Graph
	timeout  time.Duration
	preview  int
	logger   *zap.Logger
}

// NewExecutor builds an executor over registry.
func NewExecutor(registry *dataset.Registry, opts Options) *Executor {
	e := &Executor{
		registry: registry,
		graph:    opts.Graph,
		timeout:  opts.Timeout,
		preview:  opts.PreviewLimit,
		logger:   opts.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.preview <= 0 {
		e.preview = DefaultPreviewLimit
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("exec")
	return e
}

// Result is a stringified evaluation result.
type Result struct {
	Text string
	// Count is the item count for list results and the value for counts.
	Count     int
	IsList    bool
	Truncated bool
}

// Execute checks the marker and forbidden vocabulary, then evaluates expr
// under the configured timeout. Every failure is an ExecutionError.
func (e *Executor) Execute(ctx context.Context, expr string) (*Result, error) {
	if !HasMarker(expr) {
		return nil, apperrors.NewExecution(errors.Newf("expression must start with %q", Marker))
	}
	lower := strings.ToLower(expr)
	for _, word := range forbidden {
		if strings.Contains(lower, word) {
			return nil, apperrors.NewExecution(errors.Newf("forbidden construct %q", strings.TrimSpace(word)))
		}
	}
	prog, err := Parse(expr)
	if err != nil {
		return nil, apperrors.NewExecution(err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Newf("panic: %v", r)}
			}
		}()
		v, err := e.run(ctx, prog)
		done <- outcome{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("execution timed out", zap.Duration("timeout", e.timeout))
		return nil, apperrors.NewExecution(errors.Wrapf(ctx.Err(), "timed out after %s", e.timeout))
	case out := <-done:
		if out.err != nil {
			e.logger.Debug("execution failed", zap.Error(out.err))
			return nil, apperrors.NewExecution(out.err)
		}
		e.logger.Debug("executed", zap.Duration("took", time.Since(start)))
		return e.format(out.v), nil
	}
}

// table is a filtered view over a dataset.
type table struct {
	ds   *dataset.Dataset
	rows []int
}

// cond is a row predicate built by eq/ne/in/and/or.
type cond func(t *dataset.Dataset, row []string) (bool, error)

type graphRef struct{}

type env struct {
	ctx  context.Context
	exec *Executor
	vars map[string]any
}

func (e *Executor) run(ctx context.Context, prog *Program) (any, error) {
	ev := &env{ctx: ctx, exec: e, vars: map[string]any{}}
	for _, st := range prog.Stmts {
		v, err := ev.eval(st.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", st.Line)
		}
		ev.vars[st.Name] = v
	}
	return ev.vars[ResultName], nil
}

func (ev *env) eval(n Node) (any, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *Str:
		return n.Value, nil
	case *Num:
		return n.Value, nil
	case *ListLit:
		out := make([]string, 0, len(n.Items))
		for _, it := range n.Items {
			v, err := ev.eval(it)
			if err != nil {
				return nil, err
			}
			out = append(out, stringify(v))
		}
		return out, nil
	case *Ident:
		return ev.ident(n)
	case *Call:
		return ev.call(n)
	}
	return nil, errors.Newf("unsupported node %T", n)
}

func (ev *env) ident(id *Ident) (any, error) {
	if strings.HasPrefix(id.Name, DatasetPrefix) {
		name := strings.TrimPrefix(id.Name, DatasetPrefix)
		ds, ok := ev.exec.registry.Get(name)
		if !ok {
			return nil, errors.Newf("dataset %q is not loaded", name)
		}
		rows := make([]int, ds.Len())
		for i := range rows {
			rows[i] = i
		}
		return &table{ds: ds, rows: rows}, nil
	}
	if id.Name == GraphName {
		if ev.exec.graph == nil {
			return nil, errors.New("no relationship graph loaded")
		}
		return graphRef{}, nil
	}
	v, ok := ev.vars[id.Name]
	if !ok {
		return nil, errors.Newf("unknown name %q", id.Name)
	}
	return v, nil
}

func (ev *env) call(c *Call) (any, error) {
	spec, ok := builtins[c.Name]
	if !ok {
		return nil, errors.Newf("function %q is not allowed", c.Name)
	}
	if len(c.Args) < spec.min || (spec.max >= 0 && len(c.Args) > spec.max) {
		return nil, errors.Newf("%s takes %s", c.Name, arityText(spec.min, spec.max))
	}
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c.Name {
	case "where":
		return ev.where(args)
	case "eq", "ne":
		col, err := asString(args[0], c.Name)
		if err != nil {
			return nil, err
		}
		want := strings.TrimSpace(stringify(args[1]))
		neg := c.Name == "ne"
		return cond(func(ds *dataset.Dataset, row []string) (bool, error) {
			i, ok := ds.ColumnIndex(col)
			if !ok {
				return false, errors.Newf("dataset %q has no column %q", ds.Name, col)
			}
			return (strings.TrimSpace(row[i]) == want) != neg, nil
		}), nil
	case "in":
		col, err := asString(args[0], c.Name)
		if err != nil {
			return nil, err
		}
		set := map[string]bool{}
		for _, s := range asList(args[1]) {
			set[strings.TrimSpace(s)] = true
		}
		return cond(func(ds *dataset.Dataset, row []string) (bool, error) {
			i, ok := ds.ColumnIndex(col)
			if !ok {
				return false, errors.Newf("dataset %q has no column %q", ds.Name, col)
			}
			return set[strings.TrimSpace(row[i])], nil
		}), nil
	case "and", "or":
		conds, err := asConds(args, c.Name)
		if err != nil {
			return nil, err
		}
		isOr := c.Name == "or"
		return cond(func(ds *dataset.Dataset, row []string) (bool, error) {
			for _, cd := range conds {
				ok, err := cd(ds, row)
				if err != nil {
					return false, err
				}
				if ok == isOr {
					return isOr, nil
				}
			}
			return !isOr, nil
		}), nil
	case "count", "len":
		switch v := args[0].(type) {
		case *table:
			return float64(len(v.rows)), nil
		case []string:
			return float64(len(v)), nil
		case string:
			return float64(len([]rune(v))), nil
		}
		return nil, errors.Newf("%s: unsupported argument %s", c.Name, typeName(args[0]))
	case "column":
		t, ok := args[0].(*table)
		if !ok {
			return nil, errors.Newf("column: first argument must be a table, got %s", typeName(args[0]))
		}
		col, err := asString(args[1], c.Name)
		if err != nil {
			return nil, err
		}
		i, ok := t.ds.ColumnIndex(col)
		if !ok {
			return nil, errors.Newf("dataset %q has no column %q", t.ds.Name, col)
		}
		out := make([]string, 0, len(t.rows))
		for _, r := range t.rows {
			out = append(out, strings.TrimSpace(t.ds.Rows[r][i]))
		}
		return out, nil
	case "distinct":
		seen := map[string]bool{}
		var out []string
		for _, s := range asList(args[0]) {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out, nil
	case "sorted":
		out := append([]string(nil), asList(args[0])...)
		sortValues(out)
		return out, nil
	case "min", "max":
		items := asList(args[0])
		if len(items) == 0 {
			return nil, errors.Newf("%s of an empty sequence", c.Name)
		}
		sorted := append([]string(nil), items...)
		sortValues(sorted)
		if c.Name == "min" {
			return sorted[0], nil
		}
		return sorted[len(sorted)-1], nil
	case "sum":
		var total float64
		for _, s := range asList(args[0]) {
			if s == "" {
				continue
			}
			f, ok := parseNumber(s)
			if !ok {
				return nil, errors.Newf("sum: %q is not a number", s)
			}
			total += f
		}
		return total, nil
	case "enumerate":
		items := asList(args[0])
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = strconv.Itoa(i+1) + ". " + s
		}
		return out, nil
	case "links":
		if _, ok := args[0].(graphRef); !ok {
			return nil, errors.New("links: first argument must be graph")
		}
		entity, err := asString(args[1], c.Name)
		if err != nil {
			return nil, err
		}
		return ev.exec.graph.Links(entity), nil
	}
	return nil, errors.Newf("function %q is not implemented", c.Name)
}

func (ev *env) where(args []any) (any, error) {
	t, ok := args[0].(*table)
	if !ok {
		return nil, errors.Newf("where: first argument must be a table, got %s", typeName(args[0]))
	}
	conds, err := asConds(args[1:], "where")
	if err != nil {
		return nil, err
	}
	out := &table{ds: t.ds, rows: make([]int, 0, len(t.rows))}
	for n, r := range t.rows {
		if n%1024 == 0 {
			if err := ev.ctx.Err(); err != nil {
				return nil, err
			}
		}
		keep := true
		for _, cd := range conds {
			ok, err := cd(t.ds, t.ds.Rows[r])
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out.rows = append(out.rows, r)
		}
	}
	return out, nil
}

func asConds(args []any, fn string) ([]cond, error) {
	out := make([]cond, len(args))
	for i, a := range args {
		c, ok := a.(cond)
		if !ok {
			return nil, errors.Newf("%s: argument %d must be a condition, got %s", fn, i+1, typeName(a))
		}
		out[i] = c
	}
	return out, nil
}

func asString(v any, fn string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf("%s: expected a string, got %s", fn, typeName(v))
	}
	return s, nil
}

// asList treats a scalar as a one-item list.
func asList(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case nil:
		return nil
	}
	return []string{stringify(v)}
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return f, err == nil
}

// sortValues orders numerically when every item is a number, otherwise by
// Russian collation.
func sortValues(items []string) {
	numeric := len(items) > 0
	for _, s := range items {
		if _, ok := parseNumber(s); !ok {
			numeric = false
			break
		}
	}
	if numeric {
		sort.SliceStable(items, func(i, j int) bool {
			a, _ := parseNumber(items[i])
			b, _ := parseNumber(items[j])
			return a < b
		})
		return
	}
	// collate.Collator is not safe for concurrent use
	c := collate.New(language.Russian, collate.IgnoreCase)
	c.SortStrings(items)
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	case *table:
		return fmt.Sprintf("<%s: %d rows>", v.ds.Name, len(v.rows))
	}
	return fmt.Sprintf("%v", v)
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case []string:
		return "list"
	case *table:
		return "table"
	case cond:
		return "condition"
	case graphRef:
		return "graph"
	}
	return fmt.Sprintf("%T", v)
}

func (e *Executor) format(v any) *Result {
	switch v := v.(type) {
	case []string:
		r := &Result{Count: len(v), IsList: true}
		if len(v) > e.preview {
			r.Truncated = true
			r.Text = fmt.Sprintf("%d items. First %d: [%s]", len(v), e.preview, strings.Join(v[:e.preview], ", "))
			return r
		}
		r.Text = "[" + strings.Join(v, ", ") + "]"
		return r
	case *table:
		return &Result{Text: stringify(v), Count: len(v.rows)}
	case float64:
		return &Result{Text: stringify(v), Count: int(v)}
	}
	return &Result{Text: stringify(v)}
}
