package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/greenscale93/IIsys/apperrors"
)

// Marker must be the first token of every executable expression.
const Marker = "# iisys:autocode"

// Value is a template parameter: a scalar or a list of strings.
type Value struct {
	Items  []string
	IsList bool
}

// Scalar wraps a single string.
func Scalar(s string) Value { return Value{Items: []string{s}} }

// List wraps several strings.
func List(items ...string) Value { return Value{Items: items, IsList: true} }

// String returns the scalar, or the items joined with ", ".
func (v Value) String() string {
	return strings.Join(v.Items, ", ")
}

// literal renders v as expression source.
func (v Value) literal() string {
	if !v.IsList {
		if len(v.Items) == 0 {
			return `""`
		}
		return strconv.Quote(v.Items[0])
	}
	quoted := make([]string, len(v.Items))
	for i, it := range v.Items {
		quoted[i] = strconv.Quote(it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// placeholderRe matches {name}, optionally wrapped in double quotes so a
// body written as eq("col", "{name}") renders the same as eq("col", {name}).
var placeholderRe = regexp.MustCompile(`"?\{([^{}\s"]+)\}"?`)

// Placeholders lists the parameter names used in body, in order of first use.
func Placeholders(body string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Render substitutes params into body and prefixes the marker when it is
// missing. Strings become quoted literals, lists become [..] sequences.
func Render(body string, params map[string]Value) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		quotedL := strings.HasPrefix(m, `"`)
		quotedR := strings.HasSuffix(m, `"`) && len(m) > 1
		name := strings.Trim(m, `"{}`)
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		lit := v.literal()
		// keep a lone quote that belongs to neighbouring text
		if quotedL && !quotedR {
			lit = `"` + lit
		}
		if quotedR && !quotedL {
			lit += `"`
		}
		return lit
	})
	if len(missing) > 0 {
		return "", apperrors.NewValidation("no value for placeholder(s) %s", strings.Join(missing, ", "))
	}
	if !HasMarker(out) {
		out = Marker + "\n" + out
	}
	return out, nil
}

// HasMarker reports whether expr starts with the safety marker.
func HasMarker(expr string) bool {
	return strings.HasPrefix(strings.TrimLeft(expr, " \t\r\n\ufeff"), Marker)
}
