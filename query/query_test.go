package query

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/dataset"
)

func projects() *dataset.Registry {
	return dataset.NewRegistry(dataset.New("Проекты",
		[]string{"GUID", "Наименование", "Руководитель_Наименование", "Статус", "Бюджет"},
		[][]string{
			{"1", "Альфа", "Сорокин", "Открыт", "100"},
			{"2", "Бета", "Сорокин", "Закрыт", "250,5"},
			{"3", "Гамма", "Иванов", "Открыт", "40"},
			{"4", "Дельта", " Сорокин ", "Открыт", ""},
		}))
}

type fakeGraph map[string][]string

func (g fakeGraph) Links(entity string) []string { return g[entity] }

func TestRender(t *testing.T) {
	body := `rows = where(df_Проекты, eq("Руководитель_Наименование", {who}), in("Статус", {st}))
result = count(rows)`
	assert.Equal(t, []string{"who", "st"}, Placeholders(body))

	out, err := Render(body, map[string]Value{"who": Scalar(`Со"рокин`), "st": List("Открыт", "Закрыт")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, Marker+"\n"))
	assert.Contains(t, out, `eq("Руководитель_Наименование", "Со\"рокин")`)
	assert.Contains(t, out, `in("Статус", ["Открыт", "Закрыт"])`)

	// quoted placeholders render the same literal
	out2, err := Render(`result = eq("a", "{x}")`, map[string]Value{"x": Scalar("b")})
	require.NoError(t, err)
	assert.Contains(t, out2, `eq("a", "b")`)

	again, err := Render(out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(again, Marker))

	_, err = Render(body, map[string]Value{"who": Scalar("x")})
	var verr *apperrors.TemplateValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestParse(t *testing.T) {
	prog, err := Parse(Marker + `
rows = where(df_Проекты,
    eq("Статус", "Открыт"))
result = count(rows); extra = 1`)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 3)
	assert.Equal(t, `where(df_Проекты, eq("Статус", "Открыт"))`, prog.Stmts[0].Expr.String())

	for _, bad := range []string{
		`rows = count(df_Проекты)`,
		`result = count(df_Проекты`,
		`result = "open`,
		`result = count(df_Проекты) + 1`,
		`result count`,
	} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidate(t *testing.T) {
	reg := projects()
	ok := `rows = where(df_Проекты, and(eq("Статус", "Открыт"), ne("Руководитель_Наименование", "x")))
names = column(rows, "Наименование")
result = sorted(distinct(names))`
	assert.NoError(t, Validate(ok, reg))

	cases := map[string]string{
		"unknown dataset":  `result = count(df_Задачи)`,
		"unknown column":   `result = count(where(df_Проекты, eq("Менеджер", "x")))`,
		"column via bind":  "rows = where(df_Проекты)\nresult = column(rows, \"Нет\")",
		"unknown function": `result = exec(df_Проекты)`,
		"unknown name":     `result = count(rows)`,
		"bad arity":        `result = column(df_Проекты)`,
	}
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(expr, reg)
			var verr *apperrors.TemplateValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestExecute(t *testing.T) {
	ex := NewExecutor(projects(), Options{
		Graph:  fakeGraph{"Проекты": {"Руководитель → Сотрудники"}},
		Logger: zaptest.NewLogger(t),
	})
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"count", `result = count(where(df_Проекты, eq("Руководитель_Наименование", "Сорокин")))`, "3"},
		{"in list", `result = len(where(df_Проекты, in("Статус", ["Закрыт"])))`, "1"},
		{"or", `result = count(where(df_Проекты, or(eq("Наименование", "Альфа"), eq("Наименование", "Гамма"))))`, "2"},
		{"ne", `result = count(where(df_Проекты, ne("Статус", "Открыт")))`, "1"},
		{"sorted distinct", `result = sorted(distinct(column(df_Проекты, "Руководитель_Наименование")))`, "[Иванов, Сорокин]"},
		{"min max", "a = column(df_Проекты, \"Наименование\")\nresult = [min(a), max(a)]", "[Альфа, Дельта]"},
		{"sum", `result = sum(column(df_Проекты, "Бюджет"))`, "390.5"},
		{"enumerate", `result = enumerate(column(where(df_Проекты, eq("Статус", "Закрыт")), "Наименование"))`, "[1. Бета]"},
		{"links", `result = links(graph, "Проекты")`, "[Руководитель → Сотрудники]"},
		{"numeric sort", `result = sorted(["10", "9", "100"])`, "[9, 10, 100]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ex.Execute(ctx, Marker+"\n"+tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestExecuteRejects(t *testing.T) {
	ex := NewExecutor(projects(), Options{})
	ctx := context.Background()

	for name, expr := range map[string]string{
		"no marker":     `result = count(df_Проекты)`,
		"marker late":   "x = 1\n" + Marker + "\nresult = x",
		"pyodbc":        Marker + "\nresult = \"PYODBC\"",
		"sql":           Marker + "\nresult = \"Select * from t\"",
		"csv":           Marker + "\nresult = \"data.csv\"",
		"open":          Marker + "\nresult = open(\"x\")",
		"syntax":        Marker + "\nresult = (",
		"unknown func":  Marker + "\nresult = eval(\"1\")",
		"no dataset":    Marker + "\nresult = count(df_Задачи)",
		"no column":     Marker + "\nresult = column(df_Проекты, \"Нет\")",
		"no graph":      Marker + "\nresult = links(graph, \"Проекты\")",
		"sum non-num":   Marker + "\nresult = sum(column(df_Проекты, \"Наименование\"))",
		"min of empty":  Marker + "\nresult = min([])",
		"where non-tbl": Marker + "\nresult = where(\"x\", eq(\"a\", \"b\"))",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Execute(ctx, expr)
			var xerr *apperrors.ExecutionError
			assert.True(t, errors.As(err, &xerr), "got %v", err)
		})
	}
}

func TestExecutePreviewTruncates(t *testing.T) {
	rows := make([][]string, 120)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("n%03d", i)}
	}
	ex := NewExecutor(dataset.NewRegistry(dataset.New("Big", []string{"Name"}, rows)), Options{})

	res, err := ex.Execute(context.Background(), Marker+"\nresult = column(df_Big, \"Name\")")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 120, res.Count)
	assert.True(t, strings.HasPrefix(res.Text, "120 items. First 50: [n000, n001"))
	assert.True(t, strings.HasSuffix(res.Text, "n049]"))
}

func TestExecuteTimeout(t *testing.T) {
	rows := make([][]string, 200000)
	for i := range rows {
		rows[i] = []string{"x"}
	}
	ex := NewExecutor(dataset.NewRegistry(dataset.New("Big", []string{"A"}, rows)), Options{Timeout: time.Nanosecond})

	_, err := ex.Execute(context.Background(), Marker+"\nresult = count(where(df_Big, eq(\"A\", \"x\"), eq(\"A\", \"x\")))")
	var xerr *apperrors.ExecutionError
	require.True(t, errors.As(err, &xerr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
