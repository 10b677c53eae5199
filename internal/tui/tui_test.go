package tui

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/internal/selector"
)

var testRows = []string{"git status", "ls -la", "git commit -m wip", "make test"}

func typeQuery(m model, query string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(query)})
	return next.(model)
}

func press(m model, msg tea.KeyMsg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestEmptyQueryKeepsOrder(t *testing.T) {
	m := newModel(testRows, selector.Options{})
	require.Len(t, m.matches, len(testRows))
	for i, match := range m.matches {
		assert.Equal(t, i, match.Index)
	}
	assert.Equal(t, 0, m.selectedIndex())
}

func TestFilterRanksMatches(t *testing.T) {
	m := typeQuery(newModel(testRows, selector.Options{}), "gco")

	require.NotEmpty(t, m.matches)
	assert.Equal(t, 2, m.matches[0].Index)
	for _, match := range m.matches {
		assert.Contains(t, match.Str, "g")
	}
}

func TestSelectReturnsOriginalIndex(t *testing.T) {
	m := typeQuery(newModel(testRows, selector.Options{}), "make")

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.NotNil(t, m.result)
	assert.Equal(t, 3, m.result.Index)
	assert.Equal(t, selector.ActionSelect, m.result.Action)
	assert.Equal(t, selector.ExitSelect, m.result.ExitCode)
}

func TestCursorMovement(t *testing.T) {
	m := newModel(testRows, selector.Options{})

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.selectedIndex())

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selectedIndex())

	for i := 0; i < 10; i++ {
		m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, len(testRows)-1, m.selectedIndex())
}

func TestCustomActions(t *testing.T) {
	tests := []struct {
		key    rune
		action selector.Action
		code   int
	}{
		{'e', selector.ActionEdit, selector.ExitEdit},
		{'r', selector.ActionRun, selector.ExitRun},
		{'c', selector.ActionCopy, selector.ExitCopy},
		{'h', selector.ActionHelp, selector.ExitHelp},
	}

	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			m := newModel(testRows, selector.Options{})
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})

			m, cmd := press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{tt.key}, Alt: true})
			require.NotNil(t, cmd)
			require.NotNil(t, m.result)
			assert.Equal(t, tt.action, m.result.Action)
			assert.Equal(t, tt.code, m.result.ExitCode)
			assert.Equal(t, 1, m.result.Index)
			assert.Empty(t, m.input.Value())
		})
	}
}

func TestEnterWithNoMatchesIsIgnored(t *testing.T) {
	m := typeQuery(newModel(testRows, selector.Options{}), "zzzz")
	require.Empty(t, m.matches)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Nil(t, m.result)
	assert.Equal(t, -1, m.selectedIndex())
}

func TestEscapeCancels(t *testing.T) {
	m, cmd := press(newModel(testRows, selector.Options{}), tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotNil(t, cmd)
	assert.Nil(t, m.result)
}

func TestViewScrollsWithCursor(t *testing.T) {
	rows := make([]string, 30)
	for i := range rows {
		rows[i] = string(rune('a'+i%26)) + " command"
	}
	m := newModel(rows, selector.Options{Prompt: "pick", Message: "alt+h for help"})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = next.(model)
	for i := 0; i < 12; i++ {
		m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	}

	assert.Equal(t, 13, m.cursor)
	assert.Equal(t, 13-m.listHeight()+1, m.offset)

	view := m.View()
	assert.Contains(t, view, "pick")
	assert.Contains(t, view, "alt+h for help")
	assert.Contains(t, view, "30/30")
}

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	p := &Picker{output: &buf, logger: logger.GetLogger()}

	require.NoError(t, p.ShowError(context.Background(), "history file not found", selector.Options{}))
	assert.Contains(t, buf.String(), "history file not found")
}
