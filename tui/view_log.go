// view_log.go tails the application log.
//
// The file is re-read on a tick; only the last lines are kept. The user
// can pause and resume following.
package tui

import (
	"bufio"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	logRefreshInterval = 2 * time.Second
	logTailLines       = 200
)

// LogView follows the JSON log file.
type LogView struct {
	path     string
	viewport *Viewport
	paused   bool
	ticking  bool
	width    int
	height   int
}

// NewLogView follows path.
func NewLogView(path string) *LogView {
	return &LogView{path: path, viewport: NewViewport(80, 20)}
}

func (v *LogView) Name() string         { return "Log" }
func (v *LogView) WantsTextInput() bool { return false }

func (v *LogView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-2)
}

func (v *LogView) ShortHelp() []KeyBinding {
	pause := "pause"
	if v.paused {
		pause = "resume"
	}
	return []KeyBinding{
		{Key: "p", Desc: pause},
		{Key: "↑/↓", Desc: "scroll"},
	}
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// Init refreshes now. The tick loop is started once; tab switches call
// Init again.
func (v *LogView) Init() tea.Cmd {
	if v.ticking {
		return v.fetch()
	}
	v.ticking = true
	return tea.Batch(v.fetch(), v.tick())
}

func (v *LogView) tick() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (v *LogView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "p":
			v.paused = !v.paused
		case "up", "k":
			v.viewport.ScrollUp(1)
		case "down", "j":
			v.viewport.ScrollDown(1)
		case "pgup":
			v.viewport.PageUp()
		case "pgdown":
			v.viewport.PageDown()
		case "home":
			v.viewport.Home()
		case "end":
			v.viewport.End()
		}
		return v, nil

	case tickMsg:
		if v.paused {
			return v, v.tick()
		}
		return v, tea.Batch(v.fetch(), v.tick())

	case LogMsg:
		if msg.Err != nil {
			v.viewport.SetContentLines([]string{StyleError.Render("ERROR: " + msg.Err.Error())})
			return v, nil
		}
		v.viewport.SetContentLines(msg.Lines)
		if !v.paused {
			v.viewport.End()
		}
	}
	return v, nil
}

func (v *LogView) fetch() tea.Cmd {
	path := v.path
	return func() tea.Msg {
		lines, err := tailFile(path, logTailLines)
		return LogMsg{Lines: lines, Err: err}
	}
}

// tailFile returns the last n lines of path. A missing file is empty.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, sc.Text())
	}
	return ring, sc.Err()
}

func (v *LogView) View() string {
	status := StyleSuccess.Render("● FOLLOWING")
	if v.paused {
		status = StyleWarning.Render("● PAUSED")
	}
	return StyleTitle.Render("Log") + "  " + status + "\n" + v.viewport.Render()
}
