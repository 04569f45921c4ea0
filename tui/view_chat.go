// view_chat.go is the question/answer view.
//
// Questions go to an engine.Session asynchronously. The session's pending
// suggestion is shown in a panel under the transcript and can be accepted
// without typing the command: ctrl+a takes the first candidate, a digit
// on an empty prompt takes that candidate.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greenscale93/IIsys/engine"
	"github.com/greenscale93/IIsys/suggest"
)

type chatLine struct {
	user bool
	text string
}

// ChatView is the conversation with one engine session.
type ChatView struct {
	session  *engine.Session
	viewport *Viewport
	input    string
	lines    []chatLine
	pending  *suggest.Suggestion
	loading  bool
	width    int
	height   int
}

// NewChatView opens a fresh session on eng.
func NewChatView(eng *engine.Engine) *ChatView {
	return &ChatView{
		session:  eng.NewSession(),
		viewport: NewViewport(80, 20),
	}
}

func (v *ChatView) Name() string { return "Chat" }

func (v *ChatView) WantsTextInput() bool { return true }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.resizeViewport()
}

// resizeViewport leaves room for the prompt and the suggestion panel.
func (v *ChatView) resizeViewport() {
	panel := 0
	if v.pending != nil {
		panel = len(v.pending.Candidates) + 3
	}
	v.viewport.SetSize(v.width-2, max(1, v.height-3-panel))
}

func (v *ChatView) ShortHelp() []KeyBinding {
	help := []KeyBinding{
		{Key: "Enter", Desc: "ask"},
		{Key: "Ctrl+L", Desc: "clear"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
	}
	if v.pending != nil {
		help = append(help,
			KeyBinding{Key: "Ctrl+A", Desc: "accept"},
			KeyBinding{Key: "1-9", Desc: "pick"},
			KeyBinding{Key: "Ctrl+R", Desc: "reject"})
	}
	return help
}

func (v *ChatView) Init() tea.Cmd {
	v.viewport.SetContentLines(v.render())
	return nil
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case AnswerMsg:
		v.loading = false
		if msg.Err != nil {
			v.lines = append(v.lines, chatLine{text: StyleError.Render("Error: " + msg.Err.Error())})
			v.pending = v.session.Pending()
		} else {
			v.lines = append(v.lines, chatLine{text: msg.Resp.Text})
			v.pending = msg.Resp.Suggestion
		}
		v.resizeViewport()
		v.viewport.SetContentLines(v.render())
		v.viewport.End()
		return v, nil
	}
	return v, nil
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v, v.send(v.input)
	case "ctrl+a":
		if v.pending != nil {
			return v, v.send(engine.AcceptCommand(v.pending.Kind, 1))
		}
	case "ctrl+r":
		if v.pending != nil {
			return v, v.send(engine.CmdReject)
		}
	case "ctrl+l":
		v.lines = nil
		return v, v.Init()
	case "pgup":
		v.viewport.PageUp()
	case "pgdown":
		v.viewport.PageDown()
	case "backspace":
		if r := []rune(v.input); len(r) > 0 {
			v.input = string(r[:len(r)-1])
		}
	default:
		if msg.Type == tea.KeyRunes {
			if n, ok := candidateKey(msg, v.input, v.pending); ok {
				return v, v.send(engine.AcceptCommand(v.pending.Kind, n))
			}
			v.input += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			v.input += " "
		}
	}
	return v, nil
}

// candidateKey reports whether msg is a digit picking a candidate.
func candidateKey(msg tea.KeyMsg, input string, pending *suggest.Suggestion) (int, bool) {
	if input != "" || pending == nil || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	n := int(r - '0')
	return n, n <= pending.Len()
}

func (v *ChatView) send(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" || v.loading {
		return nil
	}
	v.lines = append(v.lines, chatLine{user: true, text: text})
	v.input = ""
	v.loading = true
	v.viewport.SetContentLines(v.render())
	v.viewport.End()

	session := v.session
	return func() tea.Msg {
		resp, err := session.Ask(context.Background(), text)
		return AnswerMsg{Resp: resp, Err: err}
	}
}

func (v *ChatView) render() []string {
	if len(v.lines) == 0 {
		return []string{
			StyleTitle.Render("Ask about the loaded tables"),
			"",
			"  Сколько проектов по руководителю \"Сорокин\"?",
			"  Выведи список проектов по статусу Открыт",
			"",
			StyleDimmed.Render("Type a question and press Enter."),
		}
	}
	userStyle := lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	var out []string
	for _, l := range v.lines {
		if l.user {
			out = append(out, userStyle.Render("You: ")+l.text, "")
			continue
		}
		for _, line := range strings.Split(l.text, "\n") {
			out = append(out, "  "+line)
		}
		out = append(out, "")
	}
	if v.loading {
		out = append(out, StyleDimmed.Render("  working..."))
	}
	return out
}

func (v *ChatView) renderSuggestion() string {
	if v.pending == nil {
		return ""
	}
	sg := v.pending
	var lines []string
	switch sg.Kind {
	case suggest.SaveAlias:
		lines = append(lines, fmt.Sprintf("Remember this phrasing for %s? Ctrl+A to save.", sg.TemplateID))
	default:
		title := sg.Kind.State()
		if sg.AskedValue != "" {
			title += fmt.Sprintf(" for %q", sg.AskedValue)
		}
		lines = append(lines, title)
		for i, c := range sg.Candidates {
			lines = append(lines, fmt.Sprintf(" %d) %s %s", i+1, c.Label, StyleDimmed.Render(fmt.Sprintf("(%d)", c.Score))))
		}
	}
	return StyleSuggestion.Width(max(0, v.width-2)).Render(strings.Join(lines, "\n"))
}

func (v *ChatView) View() string {
	prompt := StylePrompt.Render("Ask> ") + v.input + "█"
	if v.loading {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render("working...")
	}
	parts := []string{prompt, "", v.viewport.Render()}
	if p := v.renderSuggestion(); p != "" {
		parts = append(parts, p)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
