// view_tables.go lists the loaded datasets with their columns and the
// reference links recovered from the schema description.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/greenscale93/IIsys/engine"
	"github.com/greenscale93/IIsys/mapping"
)

// TablesView is a read-only overview of the registry.
type TablesView struct {
	eng      *engine.Engine
	viewport *Viewport
	width    int
	height   int
}

// NewTablesView builds the view over eng.
func NewTablesView(eng *engine.Engine) *TablesView {
	return &TablesView{eng: eng, viewport: NewViewport(80, 20)}
}

func (v *TablesView) Name() string { return "Tables" }

func (v *TablesView) WantsTextInput() bool { return false }

func (v *TablesView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-2)
}

func (v *TablesView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "r", Desc: "refresh"},
		{Key: "↑/↓", Desc: "scroll"},
	}
}

func (v *TablesView) Init() tea.Cmd {
	eng := v.eng
	return func() tea.Msg { return TablesMsg{Lines: tableLines(eng)} }
}

func (v *TablesView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return v, v.Init()
		case "up", "k":
			v.viewport.ScrollUp(1)
		case "down", "j":
			v.viewport.ScrollDown(1)
		case "pgup":
			v.viewport.PageUp()
		case "pgdown":
			v.viewport.PageDown()
		}
	case TablesMsg:
		v.viewport.SetContentLines(msg.Lines)
	}
	return v, nil
}

func (v *TablesView) View() string {
	return StyleTitle.Render("Datasets") + "\n" + v.viewport.Render()
}

// tableLines renders one block per dataset. Surrogate-key columns are
// dimmed since questions never resolve to them.
func tableLines(eng *engine.Engine) []string {
	reg := eng.Registry()
	names := reg.Names()
	if len(names) == 0 {
		return []string{StyleWarning.Render("No datasets loaded. Check data.dir or data.dsn.")}
	}
	var lines []string
	for _, name := range names {
		ds, ok := reg.Get(name)
		if !ok {
			continue
		}
		lines = append(lines, StyleBold.Render(name)+StyleDimmed.Render(fmt.Sprintf("  %d rows", ds.Len())))
		cols := make([]string, len(ds.Columns))
		for i, c := range ds.Columns {
			if mapping.IsSurrogateKey(c) {
				c = StyleDimmed.Render(c)
			}
			cols[i] = c
		}
		lines = append(lines, "  "+strings.Join(cols, ", "))
		if links := eng.Schema().Links(name); len(links) > 0 {
			lines = append(lines, StyleSuccess.Render("  → "+strings.Join(links, ", ")))
		}
		lines = append(lines, "")
	}
	return lines
}
