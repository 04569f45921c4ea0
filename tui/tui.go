package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/greenscale93/IIsys/engine"
)

// Options describe what the header and log view show.
type Options struct {
	Provider string
	LogPath  string
}

// Start launches the chat TUI over eng and blocks until the user quits.
func Start(eng *engine.Engine, opts Options) error {
	app := NewApp(eng, opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
