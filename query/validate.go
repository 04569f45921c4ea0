package query

import (
	"strconv"
	"strings"

	"github.com/greenscale93/IIsys/apperrors"
)

// DatasetPrefix introduces a dataset identifier: df_Проекты.
const DatasetPrefix = "df_"

// GraphName is the identifier of the relationship graph.
const GraphName = "graph"

// Catalog exposes the loaded datasets' columns. dataset.Registry
// satisfies it.
type Catalog interface {
	Columns(name string) ([]string, bool)
}

// arity bounds per allowed function; max < 0 means variadic.
var builtins = map[string]struct{ min, max int }{
	"where":     {1, -1},
	"eq":        {2, 2},
	"ne":        {2, 2},
	"in":        {2, 2},
	"and":       {1, -1},
	"or":        {1, -1},
	"count":     {1, 1},
	"len":       {1, 1},
	"column":    {2, 2},
	"distinct":  {1, 1},
	"sorted":    {1, 1},
	"min":       {1, 1},
	"max":       {1, 1},
	"sum":       {1, 1},
	"enumerate": {1, 1},
	"links":     {2, 2},
}

// columnCalls take a column name as their first argument.
var columnCalls = map[string]bool{"eq": true, "ne": true, "in": true}

// Validate parses expr and statically checks it against the catalog:
// every df_ identifier must be loaded, every function must be allowed and
// every literal column must exist on the dataset its table derives from.
func Validate(expr string, catalog Catalog) error {
	prog, err := Parse(expr)
	if err != nil {
		return apperrors.NewValidation("%v", err)
	}
	return ValidateProgram(prog, catalog)
}

// ValidateProgram is Validate on an already parsed program.
func ValidateProgram(prog *Program, catalog Catalog) error {
	v := &validator{catalog: catalog, sources: map[string]string{}}
	for _, st := range prog.Stmts {
		if err := v.node(st.Expr); err != nil {
			return err
		}
		v.sources[st.Name] = v.source(st.Expr)
	}
	return nil
}

type validator struct {
	catalog Catalog
	sources map[string]string // binding → dataset it derives from ("" if none)
}

func (v *validator) node(n Node) error {
	switch n := n.(type) {
	case *Ident:
		return v.ident(n)
	case *ListLit:
		for _, it := range n.Items {
			if err := v.node(it); err != nil {
				return err
			}
		}
	case *Call:
		spec, ok := builtins[n.Name]
		if !ok {
			return apperrors.NewValidation("line %d: function %q is not allowed", n.Line, n.Name)
		}
		if len(n.Args) < spec.min || (spec.max >= 0 && len(n.Args) > spec.max) {
			return apperrors.NewValidation("line %d: %s takes %s", n.Line, n.Name, arityText(spec.min, spec.max))
		}
		for _, a := range n.Args {
			if err := v.node(a); err != nil {
				return err
			}
		}
		switch n.Name {
		case "where":
			src := v.source(n.Args[0])
			for _, c := range n.Args[1:] {
				if err := v.conditionColumns(c, src); err != nil {
					return err
				}
			}
		case "column":
			if err := v.column(n.Args[1], v.source(n.Args[0]), n.Line); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) ident(id *Ident) error {
	switch {
	case strings.HasPrefix(id.Name, DatasetPrefix):
		name := strings.TrimPrefix(id.Name, DatasetPrefix)
		if _, ok := v.catalog.Columns(name); !ok {
			return apperrors.NewValidation("line %d: dataset %q is not loaded", id.Line, name)
		}
	case id.Name == GraphName:
	default:
		if _, ok := v.sources[id.Name]; !ok {
			return apperrors.NewValidation("line %d: unknown name %q", id.Line, id.Name)
		}
	}
	return nil
}

// source returns the dataset a table-valued node derives from.
func (v *validator) source(n Node) string {
	switch n := n.(type) {
	case *Ident:
		if strings.HasPrefix(n.Name, DatasetPrefix) {
			return strings.TrimPrefix(n.Name, DatasetPrefix)
		}
		return v.sources[n.Name]
	case *Call:
		if n.Name == "where" && len(n.Args) > 0 {
			return v.source(n.Args[0])
		}
	}
	return ""
}

func (v *validator) conditionColumns(n Node, src string) error {
	c, ok := n.(*Call)
	if !ok {
		return nil
	}
	if columnCalls[c.Name] {
		return v.column(c.Args[0], src, c.Line)
	}
	if c.Name == "and" || c.Name == "or" {
		for _, a := range c.Args {
			if err := v.conditionColumns(a, src); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) column(n Node, src string, line int) error {
	lit, ok := n.(*Str)
	if !ok || src == "" {
		return nil
	}
	cols, ok := v.catalog.Columns(src)
	if !ok {
		return nil
	}
	for _, c := range cols {
		if c == lit.Value {
			return nil
		}
	}
	return apperrors.NewValidation("line %d: dataset %q has no column %q", line, src, lit.Value)
}

func arityText(min, max int) string {
	switch {
	case max < 0:
		return "at least " + strconv.Itoa(min) + " argument(s)"
	case min == max:
		return strconv.Itoa(min) + " argument(s)"
	default:
		return strconv.Itoa(min) + ".." + strconv.Itoa(max) + " arguments"
	}
}
