package template

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/ai"
	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/query"
)

// Strategy names how a match was found.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyAlias     Strategy = "alias"
	StrategyInference Strategy = "inference"
)

// ErrNoMatch means no strategy produced a template.
var ErrNoMatch = errors.New("no template matches the question")

// Inferer is the external model collaborator. ai.Inferer implements it.
type Inferer interface {
	InferTemplate(ctx context.Context, question string, sigs []ai.TemplateSignature) (*ai.TemplateGuess, error)
	MapParameters(ctx context.Context, question string, sig ai.TemplateSignature) (map[string]any, error)
}

// Match is a template chosen for a question with its parameters.
type Match struct {
	Template   Template
	Params     map[string]query.Value
	Strategy   Strategy
	Confidence float64
	// AliasKey is the skeleton key that matched, for alias matches.
	AliasKey string
}

// Matcher runs the strategies against a Store.
type Matcher struct {
	store   *Store
	inferer Inferer
	logger  *zap.Logger
}

// NewMatcher builds a matcher. A nil inferer disables the last strategy.
func NewMatcher(store *Store, inferer Inferer, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{store: store, inferer: inferer, logger: logger.Named("matcher")}
}

// Match tries direct, alias and inference in order.
func (m *Matcher) Match(ctx context.Context, question string) (*Match, error) {
	if mt, ok := m.MatchDirect(question); ok {
		return mt, nil
	}
	if mt, ok := m.MatchAlias(question); ok {
		return mt, nil
	}
	return m.Infer(ctx, question)
}

// MatchDirect tries every template's text pattern in stored order.
func (m *Matcher) MatchDirect(question string) (*Match, bool) {
	for _, t := range m.store.List() {
		c, err := compilePattern(t.TextPattern)
		if err != nil {
			continue
		}
		params, ok := c.match(question)
		if !ok {
			continue
		}
		m.logger.Info("template matched", zap.String("strategy", string(StrategyDirect)), zap.String("template", t.ID))
		return &Match{Template: t, Params: params, Strategy: StrategyDirect, Confidence: 1}, true
	}
	return nil, false
}

// MatchAlias looks the question's skeleton up directly, then tries every
// alias key as a pattern in sorted order.
func (m *Matcher) MatchAlias(question string) (*Match, bool) {
	q := strings.TrimRight(strings.Join(strings.Fields(question), " "), trailingSet)
	key := Skeletonize(question)
	if id, ok := m.store.aliasFor(key); ok {
		if mt, ok := m.aliasMatch(q, key, id); ok {
			return mt, true
		}
		m.logger.Warn("alias key hit but values were not extracted", zap.String("key", key), zap.String("template", id))
	}
	for _, k := range m.store.aliasKeys() {
		if k == key {
			continue
		}
		id, ok := m.store.aliasFor(k)
		if !ok {
			continue
		}
		if mt, ok := m.aliasMatch(q, k, id); ok {
			return mt, true
		}
	}
	return nil, false
}

func (m *Matcher) aliasMatch(question, key, id string) (*Match, bool) {
	tpl, ok := m.store.Get(id)
	if !ok {
		return nil, false
	}
	re, err := aliasPattern(key)
	if err != nil {
		return nil, false
	}
	groups := re.FindStringSubmatch(question)
	if groups == nil {
		return nil, false
	}
	names := tpl.OrderedParams()
	if len(groups)-1 != len(names) {
		return nil, false
	}
	params := make(map[string]query.Value, len(names))
	for i, name := range names {
		v := SplitList(groups[i+1])
		if len(v.Items) == 0 {
			return nil, false
		}
		params[name] = v
	}
	m.logger.Info("template matched", zap.String("strategy", string(StrategyAlias)),
		zap.String("template", id), zap.String("key", key))
	return &Match{Template: tpl, Params: params, Strategy: StrategyAlias, Confidence: 1, AliasKey: key}, true
}

// Infer asks the external model. A guess is untrusted and validated like
// any other input; a disabled or failing model yields ErrNoMatch.
func (m *Matcher) Infer(ctx context.Context, question string) (*Match, error) {
	if m.inferer == nil {
		return nil, ErrNoMatch
	}
	sigs := m.store.Signatures()
	if len(sigs) == 0 {
		return nil, ErrNoMatch
	}
	guess, err := m.inferer.InferTemplate(ctx, question, sigs)
	if err != nil {
		if errors.Is(err, apperrors.ErrInferenceDisabled) {
			return nil, ErrNoMatch
		}
		m.logger.Warn("inference failed", zap.Error(err))
		return nil, errors.Wrapf(ErrNoMatch, "inference failed: %v", err)
	}
	if guess.TemplateID == "" {
		return nil, ErrNoMatch
	}
	tpl, ok := m.store.Get(guess.TemplateID)
	if !ok {
		m.logger.Warn("inference chose an unknown template", zap.String("template", guess.TemplateID))
		return nil, errors.Wrapf(ErrNoMatch, "inference chose unknown template %q", guess.TemplateID)
	}
	params, err := ValidateParams(tpl, guess.Params)
	if err != nil {
		m.logger.Warn("inference returned invalid params", zap.String("template", tpl.ID), zap.Error(err))
		return nil, errors.Wrapf(ErrNoMatch, "%v", err)
	}
	m.logger.Info("template matched", zap.String("strategy", string(StrategyInference)),
		zap.String("template", tpl.ID), zap.Float64("confidence", guess.Confidence))
	return &Match{Template: tpl, Params: params, Strategy: StrategyInference, Confidence: guess.Confidence}, nil
}

// MapParameters fills the params of a template the user already chose,
// first from its own pattern and learned aliases, then from the model.
func (m *Matcher) MapParameters(ctx context.Context, question, id string) (*Match, error) {
	tpl, ok := m.store.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrTemplateNotFound, "%q", id)
	}
	if len(tpl.ParameterNames) == 0 {
		return &Match{Template: tpl, Params: map[string]query.Value{}, Strategy: StrategyDirect, Confidence: 1}, nil
	}
	if c, err := compilePattern(tpl.TextPattern); err == nil {
		if params, ok := c.match(question); ok && len(params) == len(tpl.ParameterNames) {
			return &Match{Template: tpl, Params: params, Strategy: StrategyDirect, Confidence: 1}, nil
		}
	}
	if mt, ok := m.MatchAlias(question); ok && mt.Template.ID == id {
		return mt, nil
	}
	if m.inferer == nil {
		return nil, apperrors.ErrInferenceDisabled
	}
	raw, err := m.inferer.MapParameters(ctx, question, tpl.Signature())
	if err != nil {
		return nil, err
	}
	params, err := ValidateParams(tpl, raw)
	if err != nil {
		return nil, err
	}
	return &Match{Template: tpl, Params: params, Strategy: StrategyInference, Confidence: 1}, nil
}

// ValidateParams checks untrusted params against tpl: exactly the
// declared names, each a string, a number or a list of strings.
func ValidateParams(tpl Template, raw map[string]any) (map[string]query.Value, error) {
	out := make(map[string]query.Value, len(raw))
	var missing, extra []string
	for _, p := range tpl.ParameterNames {
		if _, ok := raw[p]; !ok {
			missing = append(missing, p)
		}
	}
	for name, v := range raw {
		if !contains(tpl.ParameterNames, name) {
			extra = append(extra, name)
			continue
		}
		val, err := toValue(v)
		if err != nil {
			return nil, apperrors.NewValidation("parameter %q: %v", name, err)
		}
		out[name] = val
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(extra)
		return nil, apperrors.NewValidation("template %q params mismatch: missing [%s] unexpected [%s]",
			tpl.ID, strings.Join(missing, ", "), strings.Join(extra, ", "))
	}
	return out, nil
}

func toValue(v any) (query.Value, error) {
	switch v := v.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return query.Value{}, errors.New("empty value")
		}
		return query.Scalar(strings.TrimSpace(v)), nil
	case float64:
		return query.Scalar(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case []string:
		return query.List(v...), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, it := range v {
			s, ok := it.(string)
			if !ok {
				return query.Value{}, errors.Newf("list item %v is not a string", it)
			}
			items = append(items, strings.TrimSpace(s))
		}
		if len(items) == 0 {
			return query.Value{}, errors.New("empty list")
		}
		return query.List(items...), nil
	case query.Value:
		return v, nil
	}
	return query.Value{}, errors.Newf("unsupported value type %T", v)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
