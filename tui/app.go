// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Key design decisions:
//   - Tab-based navigation between Chat, Tables and Log
//   - Command mode (`:`) for reload and quit, outside text views
//   - Jump mode (`/`) for quick view switching
//   - Help overlay (`?`) toggled on/off
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greenscale93/IIsys/engine"
)

const appVersion = "0.1.0"

// Tab indices.
const (
	TabChat = iota
	TabTables
	TabLog
)

// InputMode determines what keystrokes do.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
	ModeJump
)

// App is the root Bubble Tea model.
type App struct {
	eng       *engine.Engine
	opts      Options
	views     []View
	activeTab int

	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
}

// NewApp builds the views over eng.
func NewApp(eng *engine.Engine, opts Options) *App {
	return &App{
		eng:  eng,
		opts: opts,
		views: []View{
			NewChatView(eng),
			NewTablesView(eng),
			NewLogView(opts.LogPath),
		},
		activeTab: TabChat,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.views[a.activeTab].Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// header(1) + status(1) + borders(2) + slack(1)
		contentW := a.width - 2
		viewH := a.height - 5
		for _, v := range a.views {
			v.SetSize(contentW, viewH)
		}
		return a, nil

	case StatusMsg:
		a.statusMsg = string(msg)
		if a.activeTab == TabTables {
			return a, a.views[TabTables].Init()
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	// Async results go to the view that asked for them.
	var cmds []tea.Cmd
	for i, v := range a.views {
		if !routes(v, msg) {
			continue
		}
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

// routes reports whether msg belongs to v. Other messages are dropped.
func routes(v View, msg tea.Msg) bool {
	switch msg.(type) {
	case AnswerMsg:
		_, ok := v.(*ChatView)
		return ok
	case TablesMsg:
		_, ok := v.(*TablesView)
		return ok
	case LogMsg, tickMsg:
		_, ok := v.(*LogView)
		return ok
	}
	return false
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeCommand:
		return a.handleCommandMode(msg)
	case ModeJump:
		return a.handleJumpMode(msg)
	default:
		return a.handleNormalMode(msg)
	}
}

func (a *App) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		return a.switchTab((a.activeTab + 1) % len(a.views))
	case "shift+tab":
		return a.switchTab((a.activeTab + len(a.views) - 1) % len(a.views))
	case "f1":
		return a.switchTab(TabChat)
	}

	// Text views receive everything else, including ? / and :.
	if !a.views[a.activeTab].WantsTextInput() {
		switch msg.String() {
		case ":":
			a.mode = ModeCommand
			a.cmdInput = ""
			return a, nil
		case "/":
			a.mode = ModeJump
			a.cmdInput = ""
			return a, nil
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case "q":
			return a, tea.Quit
		}
	}

	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		cmd := a.executeCommand(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, cmd
	case "esc":
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil
	case "backspace":
		a.cmdInput = dropLastRune(a.cmdInput)
		return a, nil
	default:
		if msg.Type == tea.KeyRunes {
			a.cmdInput += string(msg.Runes)
		}
		return a, nil
	}
}

func (a *App) handleJumpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.jumpToView(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, a.views[a.activeTab].Init()
	case "esc":
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil
	case "backspace":
		a.cmdInput = dropLastRune(a.cmdInput)
		return a, nil
	default:
		if msg.Type == tea.KeyRunes {
			a.cmdInput += string(msg.Runes)
		}
		return a, nil
	}
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(a.views) {
		return a, nil
	}
	a.activeTab = idx
	a.showHelp = false
	return a, a.views[a.activeTab].Init()
}

func (a *App) jumpToView(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, v := range a.views {
		if strings.Contains(strings.ToLower(v.Name()), name) {
			a.activeTab = i
			return
		}
	}
	a.statusMsg = "view not found: " + name
}

func (a *App) executeCommand(input string) tea.Cmd {
	switch strings.TrimSpace(input) {
	case "q", "quit":
		return tea.Quit
	case "reload":
		eng := a.eng
		a.statusMsg = "reloading..."
		return func() tea.Msg {
			if err := eng.Reload(); err != nil {
				return StatusMsg("reload failed: " + err.Error())
			}
			return StatusMsg("reloaded")
		}
	default:
		a.statusMsg = "unknown command: " + input
		return nil
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}
	header := a.renderHeader()

	var inner string
	if a.showHelp {
		inner = a.renderHelp()
	} else {
		inner = a.views[a.activeTab].View()
	}

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}
	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight).
		Render(inner)

	return header + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws the logo, the tab strip and the engine summary.
func (a *App) renderHeader() string {
	left := StyleBold.Render("iisys") + StyleDimmed.Render(" v"+appVersion) + "  "
	for i, v := range a.views {
		if i == a.activeTab {
			left += StyleTabActive.Render(v.Name())
		} else {
			left += StyleTabInactive.Render(v.Name())
		}
	}

	provider := a.opts.Provider
	if provider == "" {
		provider = "no model"
	}
	right := StyleDimmed.Render(fmt.Sprintf("%d datasets · %d templates · %s",
		a.eng.Registry().Len(), len(a.eng.Templates().List()), provider))

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().Width(a.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	var content string
	switch a.mode {
	case ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case ModeJump:
		content = StylePrompt.Render("/") + a.cmdInput + "█"
	default:
		if a.statusMsg != "" {
			content = a.statusMsg
		} else {
			var parts []string
			for _, h := range a.helpItems() {
				parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
			}
			content = strings.Join(parts, "  │  ")
		}
	}
	return StyleStatusBar.Width(a.width).Render(content)
}

func (a *App) helpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "Tab", Desc: "next view"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ iisys Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("Tab / Shift+Tab") + "  Switch between views",
		StyleHelpKey.Render("F1") + "               Back to chat",
		StyleHelpKey.Render("/") + "                Jump to view by name",
		StyleHelpKey.Render("?") + "                Toggle this help",
		StyleHelpKey.Render("Ctrl+C") + "          Quit",
		"",
		StyleTitle.Render("Chat"),
		"",
		StyleHelpKey.Render("Enter") + "            Ask",
		StyleHelpKey.Render("Ctrl+A") + "           Accept first candidate",
		StyleHelpKey.Render("1-9") + "              Accept candidate N (empty prompt)",
		StyleHelpKey.Render("Ctrl+R") + "           Reject suggestion",
		StyleHelpKey.Render("Ctrl+L") + "           Clear transcript",
		"",
		StyleTitle.Render("Commands"),
		"",
		StyleHelpKey.Render(":reload") + "          Re-read mappings, schema and templates",
		StyleHelpKey.Render(":quit") + "            Quit",
		"",
		StyleDimmed.Render("Press ? to close"),
	}
	return lipgloss.NewStyle().
		Width(a.width-4).
		Height(a.height-3).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}
