package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/greenscale93/IIsys/ai"
	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/query"
)

var byManager = Template{
	ID:             "projects_by_manager",
	TextPattern:    "Сколько проектов у руководителя {who}?",
	ParameterNames: []string{"who"},
	CodeBody:       `result = count(where(df_Проекты, eq("Руководитель_Наименование", {who})))`,
	Bindings:       map[string]Binding{"who": {Entity: "Проекты", Field: "Руководитель"}},
}

var byStatusAndDept = Template{
	ID:             "projects_by_status_dept",
	TextPattern:    "Проекты в статусе {st} в отделе {dept}",
	ParameterNames: []string{"st", "dept"},
	CodeBody:       `result = count(where(df_Проекты, in("Статус", {st}), eq("Подразделение_Наименование", {dept})))`,
}

func TestTemplateValidate(t *testing.T) {
	assert.NoError(t, byManager.Validate())
	assert.NoError(t, byStatusAndDept.Validate())

	bad := map[string]Template{
		"no id":              {TextPattern: "x", CodeBody: "result = 1"},
		"undeclared in text": {ID: "a", TextPattern: "Сколько {x}", CodeBody: "result = 1"},
		"undeclared in body": {ID: "a", TextPattern: "Сколько", CodeBody: "result = {x}"},
		"bad binding":        {ID: "a", TextPattern: "Сколько", CodeBody: "result = 1", Bindings: map[string]Binding{"x": {}}},
		"no result":          {ID: "a", TextPattern: "Сколько", CodeBody: "rows = 1"},
		"duplicate param":    {ID: "a", TextPattern: "Сколько {x}", ParameterNames: []string{"x", "x"}, CodeBody: "result = {x}"},
	}
	for name, tpl := range bad {
		t.Run(name, func(t *testing.T) {
			var verr *apperrors.TemplateValidationError
			assert.True(t, errors.As(tpl.Validate(), &verr))
		})
	}
}

func TestSkeletonize(t *testing.T) {
	a := Skeletonize(`Сколько проектов у руководителя "Сорокин"?`)
	assert.Equal(t, "сколько проектов у руководителя {VAL}?", a)

	for _, q := range []string{
		`  Сколько   проектов у руководителя «Иванов» !!`,
		`Сколько проектов у руководителя "Петров"`,
		`СКОЛЬКО проектов у руководителя "x".`,
	} {
		assert.Equal(t, a, Skeletonize(q), q)
	}
	assert.Equal(t, a, Skeletonize(a), "idempotent")
	assert.Equal(t, "сколько {VAL} по {VAL}?", Skeletonize(`Сколько "проектов" по «статусу»`))
}

func TestSkeletonForTemplateBareValue(t *testing.T) {
	assert.Equal(t, "сколько проектов у руководителя {VAL}?",
		skeletonForTemplate("Сколько проектов у руководителя Сорокин?", byManager))
	assert.Equal(t, "проекты в статусе открыт?",
		skeletonForTemplate("Проекты в статусе открыт", byStatusAndDept), "two params keep bare words")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, query.Scalar("Сорокин"), SplitList(` "Сорокин" `))
	assert.Equal(t, query.List("Открыт", "Закрыт"), SplitList("Открыт, Закрыт"))
	assert.Equal(t, query.List("Открыт", "Закрыт", "Отменен"), SplitList("«Открыт» или «Закрыт» и Отменен"))
	assert.Equal(t, query.List("a", "b"), SplitList("a/b"))
	assert.Empty(t, SplitList(`""`).Items)
}

func TestMatchDirect(t *testing.T) {
	store, err := NewMemoryStore(zaptest.NewLogger(t), byManager, byStatusAndDept)
	require.NoError(t, err)
	m := NewMatcher(store, nil, zaptest.NewLogger(t))

	mt, ok := m.MatchDirect(`сколько проектов у руководителя "Сорокин"`)
	require.True(t, ok)
	assert.Equal(t, "projects_by_manager", mt.Template.ID)
	assert.Equal(t, StrategyDirect, mt.Strategy)
	assert.Equal(t, query.Scalar("Сорокин"), mt.Params["who"])

	mt, ok = m.MatchDirect(`Проекты в статусе "Открыт, Закрыт" в отделе «Продажи»?`)
	require.True(t, ok)
	assert.Equal(t, query.List("Открыт", "Закрыт"), mt.Params["st"])
	assert.Equal(t, query.Scalar("Продажи"), mt.Params["dept"])

	_, ok = m.MatchDirect("Сколько задач у руководителя Сорокин?")
	assert.False(t, ok)
}

type fakeInferer struct {
	guess  *ai.TemplateGuess
	params map[string]any
	err    error
	calls  int
}

func (f *fakeInferer) InferTemplate(context.Context, string, []ai.TemplateSignature) (*ai.TemplateGuess, error) {
	f.calls++
	return f.guess, f.err
}

func (f *fakeInferer) MapParameters(context.Context, string, ai.TemplateSignature) (map[string]any, error) {
	f.calls++
	return f.params, f.err
}

func TestAliasLearnedSkipsInference(t *testing.T) {
	store, err := NewMemoryStore(zaptest.NewLogger(t), byManager)
	require.NoError(t, err)
	inf := &fakeInferer{guess: &ai.TemplateGuess{TemplateID: byManager.ID, Params: map[string]any{"who": "Сорокин"}, Confidence: 0.9}}
	m := NewMatcher(store, inf, zaptest.NewLogger(t))

	first := `Покажи число проектов, где руководит "Сорокин"`
	mt, err := m.Match(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, StrategyInference, mt.Strategy)
	assert.Equal(t, 1, inf.calls)

	key, err := store.SaveAlias(first, mt.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, "покажи число проектов, где руководит {VAL}?", key)

	mt, err = m.Match(context.Background(), `Покажи  число проектов, где руководит «Иванов»?`)
	require.NoError(t, err)
	assert.Equal(t, StrategyAlias, mt.Strategy)
	assert.Equal(t, query.Scalar("Иванов"), mt.Params["who"])
	assert.Equal(t, 1, inf.calls, "inference must not run again")
}

func TestAliasRegexFallback(t *testing.T) {
	store, err := NewMemoryStore(zaptest.NewLogger(t), byManager)
	require.NoError(t, err)
	m := NewMatcher(store, nil, zaptest.NewLogger(t))

	// the stored key has its value in the middle; a bare value still matches via regex
	_, err = store.SaveAlias(`Сколько у руководителя "Сорокин" проектов`, byManager.ID)
	require.NoError(t, err)
	mt, ok := m.MatchAlias("Сколько у руководителя Иванов Петр проектов")
	require.True(t, ok)
	assert.Equal(t, query.Scalar("Иванов Петр"), mt.Params["who"])
}

func TestInferValidation(t *testing.T) {
	store, err := NewMemoryStore(zaptest.NewLogger(t), byManager)
	require.NoError(t, err)

	cases := map[string]*fakeInferer{
		"disabled":      {err: apperrors.ErrInferenceDisabled},
		"unknown id":    {guess: &ai.TemplateGuess{TemplateID: "nope", Params: map[string]any{}}},
		"missing param": {guess: &ai.TemplateGuess{TemplateID: byManager.ID, Params: map[string]any{}}},
		"extra param":   {guess: &ai.TemplateGuess{TemplateID: byManager.ID, Params: map[string]any{"who": "a", "x": "b"}}},
		"bad type":      {guess: &ai.TemplateGuess{TemplateID: byManager.ID, Params: map[string]any{"who": map[string]any{}}}},
		"no choice":     {guess: &ai.TemplateGuess{}},
	}
	for name, inf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewMatcher(store, inf, zaptest.NewLogger(t)).Infer(context.Background(), "q")
			assert.ErrorIs(t, err, ErrNoMatch)
		})
	}

	_, err = NewMatcher(store, nil, nil).Match(context.Background(), "что-то другое")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestValidateParams(t *testing.T) {
	got, err := ValidateParams(byStatusAndDept, map[string]any{"st": []any{"Открыт", "Закрыт"}, "dept": 12.0})
	require.NoError(t, err)
	assert.Equal(t, query.List("Открыт", "Закрыт"), got["st"])
	assert.Equal(t, query.Scalar("12"), got["dept"])

	_, err = ValidateParams(byStatusAndDept, map[string]any{"st": []any{1.0}, "dept": "x"})
	assert.Error(t, err)
}

func TestMapParameters(t *testing.T) {
	store, err := NewMemoryStore(zaptest.NewLogger(t), byManager)
	require.NoError(t, err)
	inf := &fakeInferer{params: map[string]any{"who": "Сорокин"}}
	m := NewMatcher(store, inf, zaptest.NewLogger(t))

	mt, err := m.MapParameters(context.Background(), "Сколько проектов у руководителя Иванов", byManager.ID)
	require.NoError(t, err)
	assert.Equal(t, query.Scalar("Иванов"), mt.Params["who"])
	assert.Equal(t, 0, inf.calls)

	mt, err = m.MapParameters(context.Background(), "Проекты Сорокина", byManager.ID)
	require.NoError(t, err)
	assert.Equal(t, query.Scalar("Сорокин"), mt.Params["who"])
	assert.Equal(t, 1, inf.calls)

	_, err = m.MapParameters(context.Background(), "x", "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	tplPath, aliasPath := filepath.Join(dir, "templates.json"), filepath.Join(dir, "aliases.json")

	s, err := OpenStore(tplPath, aliasPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Add(byManager))
	require.NoError(t, s.Add(byStatusAndDept))
	assert.Error(t, s.Add(byManager), "duplicate id")
	assert.Error(t, s.Add(Template{ID: "bad"}), "invalid template")

	key, err := s.SaveAlias(`Проекты руководителя "Сорокин"`, byManager.ID)
	require.NoError(t, err)
	_, err = s.SaveAlias("q", "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	reloaded, err := OpenStore(tplPath, aliasPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, s.List(), reloaded.List())
	assert.Equal(t, AliasIndex{key: byManager.ID}, reloaded.Aliases())

	require.NoError(t, reloaded.Delete(byManager.ID))
	assert.Empty(t, reloaded.Aliases(), "aliases of a deleted template are dropped")
	assert.ErrorIs(t, reloaded.Delete(byManager.ID), ErrTemplateNotFound)

	again, err := OpenStore(tplPath, aliasPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, again.List(), 1)
	assert.Equal(t, byStatusAndDept.ID, again.List()[0].ID)
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	dir := t.TempDir()
	tplPath, aliasPath := filepath.Join(dir, "templates.json"), filepath.Join(dir, "aliases.json")
	s, err := OpenStore(tplPath, aliasPath, zaptest.NewLogger(t))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tpl := byStatusAndDept
			tpl.ID = fmt.Sprintf("t%02d", i)
			errs[i] = s.Add(tpl)
			if errs[i] == nil {
				_, errs[i] = s.SaveAlias(fmt.Sprintf("вопрос номер %d про \"x\"", i), tpl.ID)
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	reloaded, err := OpenStore(tplPath, aliasPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, reloaded.List(), n)
	assert.Len(t, reloaded.Aliases(), n)
}

func TestFailedSaveIsNotPublished(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	s, err := OpenStore(filepath.Join(sub, "templates.json"), filepath.Join(sub, "aliases.json"), zaptest.NewLogger(t))
	require.NoError(t, err)

	// A file where the directory should be makes every write fail.
	require.NoError(t, os.WriteFile(sub, []byte("x"), 0o600))

	assert.Error(t, s.Add(byManager))
	_, ok := s.Get(byManager.ID)
	assert.False(t, ok)
	assert.Empty(t, s.List())
}

func TestInvalidTemplatesSurviveRewrite(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "templates.json")
	broken := Template{ID: "broken", TextPattern: "Проекты {p}", CodeBody: "result = count(df_Проекты)"}
	data, err := json.Marshal([]Template{byManager, broken})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tplPath, data, 0o600))

	s, err := OpenStore(tplPath, filepath.Join(dir, "aliases.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, s.List(), 1)
	require.NoError(t, s.Add(byStatusAndDept))

	var onDisk []Template
	raw, err := os.ReadFile(tplPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	ids := make([]string, len(onDisk))
	for i, x := range onDisk {
		ids[i] = x.ID
	}
	assert.ElementsMatch(t, []string{byManager.ID, byStatusAndDept.ID, broken.ID}, ids)
	assert.Len(t, s.List(), 2)
}

func TestRemoveAlias(t *testing.T) {
	s, err := NewMemoryStore(zaptest.NewLogger(t), byManager)
	require.NoError(t, err)
	_, err = s.SaveAlias(`Проекты руководителя "Сорокин"`, byManager.ID)
	require.NoError(t, err)

	require.NoError(t, s.RemoveAlias(`проекты руководителя «Иванов»?`))
	assert.Empty(t, s.Aliases())

	var nf *apperrors.AliasNotFoundError
	assert.True(t, errors.As(s.RemoveAlias("нет такого"), &nf))
}

func TestSearchByText(t *testing.T) {
	s, err := NewMemoryStore(zaptest.NewLogger(t), byManager, byStatusAndDept)
	require.NoError(t, err)

	res := s.SearchByText("руководителя", 1)
	require.Len(t, res, 1)
	assert.Equal(t, byManager.ID, res[0].Template.ID)
	assert.Len(t, s.SearchByText("статус", 0), 2)
}
