package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportScrollsAndWraps(t *testing.T) {
	v := NewViewport(10, 2)
	v.SetContentLines([]string{"один", "два", "три", "четыре"})

	out := v.Render()
	assert.True(t, strings.HasPrefix(out, "один\nдва"))

	v.End()
	assert.True(t, strings.HasPrefix(v.Render(), "три\nчетыре"))

	v.ScrollDown(10)
	v.ScrollUp(1)
	assert.True(t, strings.HasPrefix(v.Render(), "два\nтри"))

	v.SetContentLines([]string{"сколько проектов у руководителя"})
	assert.Greater(t, len(v.wrapped), 1, "long Cyrillic lines wrap by display width")
}
