package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const description = `
Справочник: Проекты
GUID: Уникальный идентификатор
Наименование: Строка
Руководитель_GUID: GUID справочника Сотрудники
Руководитель_Наименование: Наименование руководителя
Контрагент_GUID: GUID справочника Контрагенты
Статус: Строка

справочник: Сотрудники
GUID: Уникальный идентификатор
Подразделение_GUID: GUID справочника Подразделения
Комментарий: произвольный текст
`

func TestParse(t *testing.T) {
	entities, err := Parse(strings.NewReader(description))
	require.NoError(t, err)

	require.Contains(t, entities, "Проекты")
	assert.Equal(t, Link{
		Field:      "Руководитель",
		Dictionary: "Сотрудники",
		NameColumn: "Руководитель_Наименование",
		GUIDColumn: "Руководитель_GUID",
	}, entities["Проекты"]["Руководитель"])
	assert.Equal(t, "", entities["Проекты"]["Контрагент"].NameColumn)
	assert.NotContains(t, entities["Проекты"], "Статус")
	assert.Equal(t, "Подразделения", entities["Сотрудники"]["Подразделение"].Dictionary)
}

func TestLookupsExactThenCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "описание.txt")
	require.NoError(t, os.WriteFile(path, []byte(description), 0600))
	idx, err := Load(path)
	require.NoError(t, err)

	d, ok := idx.ReferenceDictionary("Проекты", "Руководитель")
	require.True(t, ok)
	assert.Equal(t, "Сотрудники", d)

	d, ok = idx.ReferenceDictionary("проекты", "РУКОВОДИТЕЛЬ")
	require.True(t, ok)
	assert.Equal(t, "Сотрудники", d)

	c, ok := idx.NameColumn("Проекты", "руководитель")
	require.True(t, ok)
	assert.Equal(t, "Руководитель_Наименование", c)

	_, ok = idx.NameColumn("Проекты", "Контрагент")
	assert.False(t, ok)

	g, ok := idx.GUIDColumn("Проекты", "Контрагент")
	require.True(t, ok)
	assert.Equal(t, "Контрагент_GUID", g)

	assert.Equal(t, []string{"Контрагент → Контрагенты", "Руководитель → Сотрудники"}, idx.Links("Проекты"))
	assert.Equal(t, []string{"Проекты", "Сотрудники"}, idx.Entities())
}

func TestMissingFileIsEmpty(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)

	_, ok := idx.ReferenceDictionary("Проекты", "Руководитель")
	assert.False(t, ok)
	assert.Empty(t, idx.Links("Проекты"))
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "описание.txt")
	idx, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, idx.Entities())

	require.NoError(t, os.WriteFile(path, []byte(description), 0600))
	require.NoError(t, idx.Reload())
	assert.Equal(t, []string{"Проекты", "Сотрудники"}, idx.Entities())
}
