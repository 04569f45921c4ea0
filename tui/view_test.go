package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/suggest"
)

func TestCandidateKey(t *testing.T) {
	pending := &suggest.Suggestion{
		Kind:       suggest.Value,
		Candidates: []apperrors.Candidate{{Label: "Сорокин", Score: 93}, {Label: "Сорокина", Score: 90}},
	}
	key := func(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

	tests := []struct {
		name    string
		msg     tea.KeyMsg
		input   string
		pending *suggest.Suggestion
		want    int
		ok      bool
	}{
		{name: "first", msg: key('1'), pending: pending, want: 1, ok: true},
		{name: "second", msg: key('2'), pending: pending, want: 2, ok: true},
		{name: "out of range", msg: key('3'), pending: pending, want: 3},
		{name: "typing", msg: key('1'), input: "2", pending: pending},
		{name: "letter", msg: key('a'), pending: pending},
		{name: "nothing pending", msg: key('1')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := candidateKey(tt.msg, tt.input, tt.pending)
			assert.Equal(t, tt.ok, ok)
			if tt.ok || tt.want != 0 {
				assert.Equal(t, tt.want, n)
			}
		})
	}
}

func TestTailFile(t *testing.T) {
	dir := t.TempDir()

	lines, err := tailFile(filepath.Join(dir, "missing.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, lines)

	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	path := filepath.Join(dir, "iisys.log")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))

	lines, err = tailFile(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, lines)
}

func TestDropLastRune(t *testing.T) {
	assert.Equal(t, "рел", dropLastRune("рело"))
	assert.Equal(t, "", dropLastRune(""))
}
