// Package template stores question templates and matches questions to
// them.
//
// Matching escalates through three strategies and the first success
// wins:
//
//  1. direct: each text pattern is compiled to a regexp;
//  2. alias: the question's skeleton is looked up among learned aliases;
//  3. inference: an external model picks a template (untrusted, validated).
package template

import (
	"regexp"
	"strings"

	"github.com/greenscale93/IIsys/ai"
	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/query"
)

// Binding ties a parameter to the entity and field its value belongs to,
// so the value goes through alias and fuzzy resolution before rendering.
type Binding struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

// Template is a stored question shape and the expression answering it.
type Template struct {
	ID             string             `json:"id"`
	TextPattern    string             `json:"text_pattern"`
	ParameterNames []string           `json:"parameter_names"`
	CodeBody       string             `json:"code_body"`
	Bindings       map[string]Binding `json:"bindings,omitempty"`
}

var patternPlaceholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// patternParams lists the placeholders of a text pattern in order.
func patternParams(pattern string) []string {
	var out []string
	for _, m := range patternPlaceholderRe.FindAllStringSubmatch(pattern, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// Validate checks the definition on its own: required fields, every
// placeholder declared, and a body that renders and parses. Dataset and
// column references are checked against loaded data by query.Validate.
func (t Template) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return apperrors.NewValidation("template id is empty")
	case strings.TrimSpace(t.TextPattern) == "":
		return apperrors.NewValidation("template %q has no text_pattern", t.ID)
	case strings.TrimSpace(t.CodeBody) == "":
		return apperrors.NewValidation("template %q has no code_body", t.ID)
	}

	declared := make(map[string]bool, len(t.ParameterNames))
	for _, p := range t.ParameterNames {
		if declared[p] {
			return apperrors.NewValidation("template %q declares parameter %q twice", t.ID, p)
		}
		declared[p] = true
	}
	for _, p := range patternParams(t.TextPattern) {
		if !declared[p] {
			return apperrors.NewValidation("template %q: placeholder {%s} in text_pattern is not a declared parameter", t.ID, p)
		}
	}
	for _, p := range query.Placeholders(t.CodeBody) {
		if !declared[p] {
			return apperrors.NewValidation("template %q: placeholder {%s} in code_body is not a declared parameter", t.ID, p)
		}
	}
	for p := range t.Bindings {
		if !declared[p] {
			return apperrors.NewValidation("template %q binds undeclared parameter %q", t.ID, p)
		}
	}

	dummy := make(map[string]query.Value, len(t.ParameterNames))
	for _, p := range t.ParameterNames {
		dummy[p] = query.Scalar("x")
	}
	expr, err := query.Render(t.CodeBody, dummy)
	if err != nil {
		return err
	}
	if _, err := query.Parse(expr); err != nil {
		return apperrors.NewValidation("template %q: %v", t.ID, err)
	}
	if _, err := compilePattern(t.TextPattern); err != nil {
		return apperrors.NewValidation("template %q: %v", t.ID, err)
	}
	return nil
}

// OrderedParams returns parameters in text-pattern order, followed by
// any declared only in ParameterNames.
func (t Template) OrderedParams() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range patternParams(t.TextPattern) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range t.ParameterNames {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Signature is the view of t handed to the inference model.
func (t Template) Signature() ai.TemplateSignature {
	return ai.TemplateSignature{ID: t.ID, Pattern: t.TextPattern, Params: append([]string(nil), t.ParameterNames...)}
}

// Render substitutes params into the template body.
func (t Template) Render(params map[string]query.Value) (string, error) {
	return query.Render(t.CodeBody, params)
}
