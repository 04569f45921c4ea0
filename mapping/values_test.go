package mapping

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/greenscale93/IIsys/apperrors"
)

type fakeDicts map[string]string

func (f fakeDicts) ReferenceDictionary(entity, field string) (string, bool) {
	d, ok := f[entity+"."+field]
	return d, ok
}

func TestValueAliasSharedThroughDictionary(t *testing.T) {
	dicts := fakeDicts{
		"Проекты.Руководитель": "Сотрудники",
		"Задачи.Исполнитель":   "Сотрудники",
	}
	v, err := NewValueStore(filepath.Join(t.TempDir(), "values.json"), dicts, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := v.Add("Проекты", "Руководитель", "Сорокина", "Сорокин")
	require.NoError(t, err)
	assert.Equal(t, AddResult{Key: "Сотрудники"}, res)

	got := v.Resolve("Задачи", "Исполнитель", "  СОРОКИНА ")
	assert.Equal(t, Resolution{Value: "Сорокин", Key: "Сотрудники", Hit: true}, got)
}

func TestValueAliasFallbackIsDegraded(t *testing.T) {
	v, err := NewValueStore("", fakeDicts{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := v.Add("Проекты", "Статус", "активный", "В работе")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "Проекты.Статус", res.Key)

	assert.Equal(t, "В работе", v.Resolve("Проекты", "Статус", "Активный").Value)
	miss := v.Resolve("Проекты", "Статус", "Закрыт")
	assert.False(t, miss.Hit)
	assert.Equal(t, "Закрыт", miss.Value)
}

func TestValueStorePersistsAndRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.json")
	dicts := fakeDicts{"Проекты.Руководитель": "Сотрудники"}
	v, err := NewValueStore(path, dicts, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = v.Add("Проекты", "Руководитель", "Иванова", "Иванов")
	require.NoError(t, err)

	reopened, err := NewValueStore(path, dicts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []ValueAlias{{Key: "Сотрудники", Alias: "иванова", Canonical: "Иванов"}}, reopened.List())

	require.NoError(t, reopened.Remove("Проекты", "Руководитель", "ИВАНОВА"))
	assert.Empty(t, reopened.List())

	var nf *apperrors.AliasNotFoundError
	assert.True(t, errors.As(reopened.Remove("Проекты", "Руководитель", "Иванова"), &nf))
}

func TestStoresAcceptNilLogger(t *testing.T) {
	store, err := NewStore(NewMemoryLayer(NewTables()), NewMemoryLayer(NewTables()), nil)
	require.NoError(t, err)
	require.NoError(t, store.AddEntityAlias("проекты", "Проекты"))

	v, err := NewValueStore("", nil, nil)
	require.NoError(t, err)
	res, err := v.Add("Проекты", "Статус", "Активный", "В работе")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}
