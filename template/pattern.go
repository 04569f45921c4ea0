package template

import (
	"regexp"
	"strings"
	"sync"

	"github.com/greenscale93/IIsys/query"
)

// compiled is a text pattern turned into a regexp. Groups are positional
// and map to names by order.
type compiled struct {
	re    *regexp.Regexp
	names []string
}

// compileCache memoizes compilePattern by pattern text.
var compileCache sync.Map // string → *compiled

const (
	// valueGroup captures a value, optionally quoted.
	valueGroup   = `["«]?(.+?)["»]?`
	trailingTail = `\s*[?.!:;]*\s*$`
	trailingSet  = " \t?.!:;"
)

var wsRe = regexp.MustCompile(`\s+`)

// escapeLiteral quotes lit and makes its whitespace flexible: inner runs
// need at least one space, edge runs are optional.
func escapeLiteral(lit string) string {
	lead := len(lit) > 0 && strings.TrimLeft(lit, " \t\n") != lit
	trail := len(lit) > 0 && strings.TrimRight(lit, " \t\n") != lit
	core := strings.TrimSpace(lit)
	if core == "" {
		if lead || trail {
			return `\s*`
		}
		return ""
	}
	parts := wsRe.Split(core, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	out := strings.Join(parts, `\s+`)
	if lead {
		out = `\s*` + out
	}
	if trail {
		out += `\s*`
	}
	return out
}

// compilePattern builds the case-insensitive matcher for a text pattern.
// Each placeholder is bounded by the literal that follows it; the last
// one by optional trailing punctuation and end of input.
func compilePattern(pattern string) (*compiled, error) {
	if c, ok := compileCache.Load(pattern); ok {
		return c.(*compiled), nil
	}

	var sb strings.Builder
	sb.WriteString(`(?i)^\s*`)
	var names []string
	pos := 0
	for _, loc := range patternPlaceholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		sb.WriteString(escapeLiteral(pattern[pos:loc[0]]))
		sb.WriteString(valueGroup)
		names = append(names, strings.TrimSpace(pattern[loc[2]:loc[3]]))
		pos = loc[1]
	}
	sb.WriteString(escapeLiteral(strings.TrimRight(pattern[pos:], trailingSet)))
	sb.WriteString(trailingTail)

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	c := &compiled{re: re, names: names}
	compileCache.Store(pattern, c)
	return c, nil
}

// match applies c to question and returns the captured parameters.
func (c *compiled) match(question string) (map[string]query.Value, bool) {
	m := c.re.FindStringSubmatch(strings.TrimRight(strings.TrimSpace(question), trailingSet))
	if m == nil {
		return nil, false
	}
	params := make(map[string]query.Value, len(c.names))
	for i, name := range c.names {
		v := SplitList(m[i+1])
		if len(v.Items) == 0 {
			return nil, false
		}
		params[name] = v
	}
	return params, true
}

var listSepRe = regexp.MustCompile(`\s*(?:,|;|\s+и\s+|\s+или\s+|/|\|)\s*`)

const valueQuotes = ` "'«»`

// SplitList turns a captured value into a list when it names several
// items separated by , ; / | "и" or "или", otherwise a scalar.
func SplitList(s string) query.Value {
	raw := strings.Trim(strings.TrimSpace(s), valueQuotes)
	var parts []string
	for _, p := range listSepRe.Split(raw, -1) {
		if p = strings.Trim(p, valueQuotes); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 1 {
		return query.List(parts...)
	}
	if raw == "" {
		return query.Value{}
	}
	return query.Scalar(raw)
}
