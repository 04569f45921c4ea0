// viewport.go provides the scrollable text area used by every view.
//
// Lines may carry ANSI styling and Cyrillic text, so widths are measured
// and cut with lipgloss rather than by byte length.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Viewport is a vertically scrolling text area. Long lines are wrapped.
type Viewport struct {
	width   int
	height  int
	content []string
	wrapped []string
	scrollY int
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{width: width, height: height}
}

// SetContent replaces the content with s split into lines.
func (v *Viewport) SetContent(s string) {
	v.SetContentLines(strings.Split(s, "\n"))
}

// SetContentLines replaces the content.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = lines
	v.rewrap()
}

// SetSize updates the dimensions and rewraps.
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.rewrap()
}

func (v *Viewport) rewrap() {
	v.wrapped = v.wrapped[:0]
	for _, line := range v.content {
		if v.width <= 0 || lipgloss.Width(line) <= v.width {
			v.wrapped = append(v.wrapped, line)
			continue
		}
		v.wrapped = append(v.wrapped, strings.Split(lipgloss.NewStyle().Width(v.width).Render(line), "\n")...)
	}
	v.clampScroll()
}

// ScrollUp moves the viewport up by n lines.
func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.clampScroll()
}

// ScrollDown moves the viewport down by n lines.
func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
}

// PageUp scrolls up by one page.
func (v *Viewport) PageUp() { v.ScrollUp(v.height) }

// PageDown scrolls down by one page.
func (v *Viewport) PageDown() { v.ScrollDown(v.height) }

// Home scrolls to the top.
func (v *Viewport) Home() { v.scrollY = 0 }

// End scrolls to the bottom.
func (v *Viewport) End() { v.scrollY = v.maxScrollY() }

// Render returns the visible lines padded to the viewport height, plus a
// position indicator when the content overflows.
func (v *Viewport) Render() string {
	if len(v.wrapped) == 0 {
		return ""
	}
	end := min(v.scrollY+v.height, len(v.wrapped))
	visible := append([]string(nil), v.wrapped[v.scrollY:end]...)
	for len(visible) < v.height {
		visible = append(visible, "")
	}
	out := strings.Join(visible, "\n")
	if ind := v.scrollIndicator(); ind != "" {
		out += "\n" + ind
	}
	return out
}

func (v *Viewport) clampScroll() {
	v.scrollY = max(0, min(v.scrollY, v.maxScrollY()))
}

func (v *Viewport) maxScrollY() int {
	return max(0, len(v.wrapped)-v.height)
}

func (v *Viewport) scrollIndicator() string {
	total := len(v.wrapped)
	if total <= v.height {
		return ""
	}
	pos := fmt.Sprintf(" %d%% (%d/%d)", v.scrollY*100/total, v.scrollY+1, total)
	rule := max(0, v.width-lipgloss.Width(pos))
	return StyleDimmed.Render(strings.Repeat("─", rule) + pos)
}
