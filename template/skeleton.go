package template

import (
	"regexp"
	"strings"
	"sync"

	"github.com/greenscale93/IIsys/mapping"
)

// ValueToken stands for one quoted value in a skeleton key.
const ValueToken = "{VAL}"

// aliasCache memoizes aliasPattern by key.
var aliasCache sync.Map // string → *regexp.Regexp

var (
	quotedSpanRe = regexp.MustCompile(`["«][^"»]+["»]`)
	lastBareRe   = regexp.MustCompile(`(\s+)([^\s?!.:;«»"]+)\?$`)
)

// Skeletonize reduces a question to its shape: case-folded, quoted spans
// replaced by {VAL}, whitespace collapsed and trailing punctuation
// normalized to a single "?". Skeletonize(Skeletonize(q)) == Skeletonize(q).
func Skeletonize(question string) string {
	t := mapping.Normalize(question)
	t = strings.ReplaceAll(t, strings.ToLower(ValueToken), ValueToken)
	t = quotedSpanRe.ReplaceAllString(t, ValueToken)
	t = strings.Join(strings.Fields(t), " ")
	t = strings.TrimRight(t, trailingSet)
	return t + "?"
}

// skeletonForTemplate is the key stored when a question is confirmed
// for tpl. A single-parameter question without quotes gets its last bare
// word treated as the value.
func skeletonForTemplate(question string, tpl Template) string {
	sk := Skeletonize(question)
	if !strings.Contains(sk, ValueToken) && len(tpl.ParameterNames) == 1 {
		sk = lastBareRe.ReplaceAllString(sk, "${1}"+ValueToken+"?")
	}
	return sk
}

// aliasPattern converts a skeleton key into a matcher where every {VAL}
// captures a quoted or bare value.
func aliasPattern(key string) (*regexp.Regexp, error) {
	if re, ok := aliasCache.Load(key); ok {
		return re.(*regexp.Regexp), nil
	}
	body := strings.TrimRight(strings.Join(strings.Fields(key), " "), trailingSet)
	parts := strings.Split(body, ValueToken)
	for i, p := range parts {
		parts[i] = escapeLiteral(p)
	}
	re, err := regexp.Compile(`(?i)^\s*` + strings.Join(parts, valueGroup) + trailingTail)
	if err != nil {
		return nil, err
	}
	aliasCache.Store(key, re)
	return re, nil
}
