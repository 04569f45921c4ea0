// messages.go defines Bubble Tea messages used for async communication.
//
// Questions and file reads run inside tea.Cmd goroutines and report back
// through these types, so the UI never blocks on the engine.
package tui

import "github.com/greenscale93/IIsys/engine"

// AnswerMsg is sent when the engine has handled a question or command.
type AnswerMsg struct {
	Resp *engine.Response
	Err  error
}

// TablesMsg carries the rendered dataset overview.
type TablesMsg struct {
	Lines []string
}

// LogMsg carries the tail of the log file.
type LogMsg struct {
	Lines []string
	Err   error
}

// StatusMsg is a transient status message for the status bar.
type StatusMsg string
