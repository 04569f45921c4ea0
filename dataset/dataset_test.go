package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"
)

func TestDatasetAccessors(t *testing.T) {
	d := New("Проекты", []string{"GUID", "Руководитель_Наименование"}, [][]string{
		{"1", "Сорокин"},
		{"2", " Сорокин "},
		{"3"},
		{"4", "Иванов"},
	})

	assert.Equal(t, 4, d.Len())
	vals, ok := d.Values("Руководитель_Наименование")
	require.True(t, ok)
	assert.Equal(t, []string{"Сорокин", " Сорокин ", "", "Иванов"}, vals)
	assert.Equal(t, []string{"Сорокин", "Иванов"}, d.Distinct("Руководитель_Наименование"))
	assert.True(t, d.Contains("Руководитель_Наименование", "Сорокин"))
	assert.False(t, d.Contains("Руководитель_Наименование", "Сорокина"))
	_, ok = d.ColumnIndex("руководитель_наименование")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(New("Проекты", []string{"A"}, nil))
	r.Put(New("Сотрудники", []string{"B"}, nil))

	d, ok := r.Get("проекты")
	require.True(t, ok)
	assert.Equal(t, "Проекты", d.Name)

	cols, ok := r.Columns("Сотрудники")
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, cols)

	_, ok = r.Get("Задачи")
	assert.False(t, ok)
	assert.Equal(t, []string{"Проекты", "Сотрудники"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestLoadCSVEncodingsAndSeparators(t *testing.T) {
	dir := t.TempDir()

	utf := "\ufeffGUID;Руководитель_Наименование\n1;Сорокин\n2;Иванов\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Проекты.csv"), []byte(utf), 0600))

	cp, err := charmap.Windows1251.NewEncoder().String("GUID,Наименование\n1,Отдел продаж\n")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Подразделения.csv"), []byte(cp), 0600))

	p, err := LoadCSV(filepath.Join(dir, "Проекты.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Проекты", p.Name)
	assert.Equal(t, []string{"GUID", "Руководитель_Наименование"}, p.Columns)
	assert.Equal(t, [][]string{{"1", "Сорокин"}, {"2", "Иванов"}}, p.Rows)

	d, err := LoadCSV(filepath.Join(dir, "Подразделения.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"GUID", "Наименование"}, d.Columns)
	assert.Equal(t, "Отдел продаж", d.Rows[0][1])

	all, err := LoadDir(context.Background(), dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, NewRegistry(all...).Names(), 2)
}

func TestLoadCSVEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Пусто.csv")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	_, err := LoadCSV(path)
	assert.Error(t, err)
}
