package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/internal/selector"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Edit   key.Binding
	Run    key.Binding
	Copy   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Edit, k.Run, k.Copy, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Edit, k.Run, k.Copy},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓", "move down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "use"),
	),
	Edit: key.NewBinding(
		key.WithKeys("alt+e"),
		key.WithHelp("alt+e", "edit"),
	),
	Run: key.NewBinding(
		key.WithKeys("alt+r"),
		key.WithHelp("alt+r", "run"),
	),
	Copy: key.NewBinding(
		key.WithKeys("alt+c"),
		key.WithHelp("alt+c", "copy"),
	),
	Help: key.NewBinding(
		key.WithKeys("alt+h"),
		key.WithHelp("alt+h", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

var (
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	messageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginLeft(2)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	rowStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	matchStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Underline(true)
	countStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1)
	errorTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// defaultListHeight is used until the first WindowSizeMsg arrives
const defaultListHeight = 15

// model is the picker state
type model struct {
	rows    []string
	opts    selector.Options
	input   textinput.Model
	help    help.Model
	keys    keyMap
	matches []fuzzy.Match
	cursor  int
	offset  int
	width   int
	height  int
	result  *selector.Result
}

func newModel(rows []string, opts selector.Options) model {
	ti := textinput.New()
	ti.Placeholder = "filter history"
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.Focus()

	m := model{
		rows:  rows,
		opts:  opts,
		input: ti,
		help:  help.New(),
		keys:  keys,
	}
	m.filter()
	return m
}

// Init implements tea.Model
func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - lipgloss.Width(m.opts.Prompt) - 4
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.result = nil
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			if len(m.matches) == 0 {
				return m, nil
			}
			return m.finish(selector.ActionSelect, selector.ExitSelect)
		case key.Matches(msg, m.keys.Edit):
			return m.finish(selector.ActionEdit, selector.ExitEdit)
		case key.Matches(msg, m.keys.Run):
			return m.finish(selector.ActionRun, selector.ExitRun)
		case key.Matches(msg, m.keys.Copy):
			return m.finish(selector.ActionCopy, selector.ExitCopy)
		case key.Matches(msg, m.keys.Help):
			return m.finish(selector.ActionHelp, selector.ExitHelp)
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			m.scroll()
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			m.scroll()
			return m, nil
		}
	}

	previous := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != previous {
		m.filter()
	}
	return m, cmd
}

// finish records the outcome and quits
func (m model) finish(action selector.Action, code int) (tea.Model, tea.Cmd) {
	m.result = &selector.Result{Index: m.selectedIndex(), Action: action, ExitCode: code}
	return m, tea.Quit
}

// selectedIndex maps the cursor back to an index into rows
func (m model) selectedIndex() int {
	if m.cursor < 0 || m.cursor >= len(m.matches) {
		return -1
	}
	return m.matches[m.cursor].Index
}

// filter ranks rows against the query. An empty query keeps the input order.
func (m *model) filter() {
	query := m.input.Value()
	if query == "" {
		m.matches = make([]fuzzy.Match, len(m.rows))
		for i, row := range m.rows {
			m.matches[i] = fuzzy.Match{Str: row, Index: i}
		}
	} else {
		m.matches = fuzzy.Find(query, m.rows)
	}
	m.cursor = 0
	m.offset = 0
}

func (m model) listHeight() int {
	if m.height == 0 {
		return defaultListHeight
	}
	// prompt, message, count and help lines
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// scroll keeps the cursor inside the visible window
func (m *model) scroll() {
	height := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
}

// View implements tea.Model
func (m model) View() string {
	var b strings.Builder

	prompt := m.opts.Prompt
	if prompt == "" {
		prompt = "history"
	}
	b.WriteString(promptStyle.Render(prompt+": ") + m.input.View() + "\n")

	if m.opts.Message != "" {
		b.WriteString(messageStyle.Render(m.opts.Message) + "\n")
	}

	end := m.offset + m.listHeight()
	if end > len(m.matches) {
		end = len(m.matches)
	}
	for i := m.offset; i < end; i++ {
		match := m.matches[i]
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "))
			b.WriteString(lipgloss.StyleRunes(match.Str, match.MatchedIndexes, matchStyle.Inherit(selectedStyle), selectedStyle))
		} else {
			b.WriteString("  ")
			b.WriteString(lipgloss.StyleRunes(match.Str, match.MatchedIndexes, matchStyle, rowStyle))
		}
		b.WriteString("\n")
	}

	b.WriteString(countStyle.Render(fmt.Sprintf("  %d/%d", len(m.matches), len(m.rows))) + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Picker is a terminal selector built on bubbletea
type Picker struct {
	input  io.Reader
	output io.Writer
	logger *logger.Logger
}

// NewPicker creates a picker drawing on stderr, keeping stdout free for output
func NewPicker() *Picker {
	return &Picker{
		input:  os.Stdin,
		output: os.Stderr,
		logger: logger.GetLogger().TUI(),
	}
}

// Select runs the picker until the user chooses, cancels or the timeout expires
func (p *Picker) Select(ctx context.Context, rows []string, opts selector.Options) (*selector.Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	program := tea.NewProgram(
		newModel(rows, opts),
		tea.WithContext(ctx),
		tea.WithInput(p.input),
		tea.WithOutput(p.output),
		tea.WithAltScreen(),
	)

	p.logger.Debug().Int("rows", len(rows)).Msg("Launching picker")

	final, err := program.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, selector.ErrTimeout
		}
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
			return nil, selector.ErrCancelled
		}
		return nil, fmt.Errorf("picker failed: %w", err)
	}

	m, ok := final.(model)
	if !ok || m.result == nil {
		return nil, selector.ErrCancelled
	}
	return m.result, nil
}

// ShowError prints a boxed error message
func (p *Picker) ShowError(ctx context.Context, message string, opts selector.Options) error {
	_, err := fmt.Fprintln(p.output, errorBoxStyle.Render(errorTextStyle.Render("histpick")+"\n"+message))
	return err
}
