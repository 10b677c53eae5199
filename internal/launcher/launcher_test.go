package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverVane/histpick/internal/config"
	"github.com/NeverVane/histpick/internal/desktop"
	"github.com/NeverVane/histpick/internal/output"
	"github.com/NeverVane/histpick/internal/selector"
	"github.com/NeverVane/histpick/pkg/history"
	"github.com/NeverVane/histpick/pkg/security"
)

type fakeSelector struct {
	results   []*selector.Result
	err       error
	showErr   error
	rows      [][]string
	opts      []selector.Options
	shown     []string
	callCount int
}

func (f *fakeSelector) Select(ctx context.Context, rows []string, opts selector.Options) (*selector.Result, error) {
	f.rows = append(f.rows, rows)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	result := f.results[f.callCount%len(f.results)]
	f.callCount++
	return result, nil
}

func (f *fakeSelector) ShowError(ctx context.Context, message string, opts selector.Options) error {
	f.shown = append(f.shown, message)
	return f.showErr
}

type recorder struct {
	copied   []string
	typed    []string
	run      []string
	notified []string
	errors   []string
	edits    []string

	typeErr   error
	copyErr   error
	notifyErr error
	editTo    string
	editErr   error
}

func (r *recorder) Copy(ctx context.Context, text string) error {
	if r.copyErr != nil {
		return r.copyErr
	}
	r.copied = append(r.copied, text)
	return nil
}

func (r *recorder) Type(ctx context.Context, text string) error {
	if r.typeErr != nil {
		return r.typeErr
	}
	r.typed = append(r.typed, text)
	return nil
}

func (r *recorder) Notify(ctx context.Context, title, body string) error {
	r.notified = append(r.notified, title+": "+body)
	return r.notifyErr
}

func (r *recorder) NotifyError(ctx context.Context, title, body string) error {
	r.errors = append(r.errors, body)
	return r.notifyErr
}

func (r *recorder) Run(command string, hold bool) error {
	r.run = append(r.run, command)
	return nil
}

func (r *recorder) Edit(ctx context.Context, command string) (string, error) {
	r.edits = append(r.edits, command)
	return r.editTo, r.editErr
}

type fixture struct {
	cfg      *config.Config
	selector *fakeSelector
	rec      *recorder
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	temp     *security.TempFiles
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".zsh_history")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := config.DefaultConfig()
	cfg.History.Candidates = []string{path}

	return &fixture{
		cfg:      cfg,
		selector: &fakeSelector{},
		rec:      &recorder{},
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		temp:     security.NewTempFiles(dir),
	}
}

func (f *fixture) launcher(opts Options) *Launcher {
	if opts.HistoryFile == "" {
		opts.HistoryFile = f.cfg.History.Candidates[0]
	}
	return NewWithDeps(f.cfg, opts, Deps{
		Selector:  f.selector,
		Clipboard: f.rec,
		Typer:     f.rec,
		Notifier:  f.rec,
		Terminal:  f.rec,
		Editor:    f.rec,
		Formatter: output.NewFormatterWithWriters(f.cfg, f.stdout, f.stderr),
		Temp:      f.temp,
		Stdout:    f.stdout,
	})
}

const sampleHistory = ": 1700000000:0;ls -la\n: 1700000100:0;git status\n: 1700000200:0;make test\n"

func TestRunSelectTypesCommand(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionSelect, ExitCode: 0}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// Most recent command first
	assert.Equal(t, []string{"make test", "git status", "ls -la"}, f.selector.rows[0])
	assert.Equal(t, []string{"make test"}, f.rec.typed)
	assert.Equal(t, []string{"make test"}, f.rec.copied)
	assert.Equal(t, []string{"Executed: make test"}, f.rec.notified)
}

func TestRunTypedWithoutClipboard(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.rec.copyErr = desktop.ErrNoTool
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionSelect}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"make test"}, f.rec.typed)
	assert.Equal(t, []string{"Typed: make test"}, f.rec.notified)
}

func TestRunTypeAndCopyBothFail(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.rec.copyErr = desktop.ErrNoTool
	f.rec.typeErr = desktop.ErrNoTool
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionSelect}}

	code, err := f.launcher(Options{}).Run(context.Background())
	assert.ErrorIs(t, err, desktop.ErrNoTool)
	assert.Equal(t, selector.ExitCancel, code)
	require.Len(t, f.selector.shown, 1)
	assert.Contains(t, f.selector.shown[0], "could not type or copy")
}

func TestRunTypeFallsBackToCopy(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.rec.typeErr = desktop.ErrNoTool
	f.selector.results = []*selector.Result{{Index: 1, Action: selector.ActionSelect}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"git status"}, f.rec.copied)
	assert.Equal(t, []string{"Copied: git status"}, f.rec.notified)
}

func TestRunCustomBindings(t *testing.T) {
	tests := []struct {
		name   string
		result *selector.Result
		check  func(t *testing.T, rec *recorder)
	}{
		{
			name:   "copy",
			result: &selector.Result{Index: 2, Action: selector.ActionCopy, ExitCode: selector.ExitCopy},
			check: func(t *testing.T, rec *recorder) {
				assert.Equal(t, []string{"ls -la"}, rec.copied)
			},
		},
		{
			name:   "run",
			result: &selector.Result{Index: 0, Action: selector.ActionRun, ExitCode: selector.ExitRun},
			check: func(t *testing.T, rec *recorder) {
				assert.Equal(t, []string{"make test"}, rec.run)
				assert.Equal(t, []string{"Running in terminal: make test"}, rec.notified)
			},
		},
		{
			name:   "edit then run",
			result: &selector.Result{Index: 1, Action: selector.ActionEdit, ExitCode: selector.ExitEdit},
			check: func(t *testing.T, rec *recorder) {
				assert.Equal(t, []string{"git status"}, rec.edits)
				assert.Equal(t, []string{"git status --short"}, rec.run)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, sampleHistory)
			f.rec.editTo = "git status --short"
			f.selector.results = []*selector.Result{tt.result}

			code, err := f.launcher(Options{}).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.result.ExitCode, code)
			tt.check(t, f.rec)
		})
	}
}

func TestRunEditModeAndPrint(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.cfg.Actions.AfterEdit = ActionPrint
	f.rec.editTo = "make test -j4"
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionSelect}}

	code, err := f.launcher(Options{EditMode: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"make test"}, f.rec.edits)
	assert.Equal(t, "make test -j4\n", f.stdout.String())
}

func TestRunEmptyEditAbandons(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.rec.editErr = desktop.ErrEmptyEdit
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionEdit, ExitCode: selector.ExitEdit}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Empty(t, f.rec.run)
	assert.Empty(t, f.selector.shown)
}

// detachedTerminal returns before the editor has done anything, like a
// terminal wrapper that forks and exits
type detachedTerminal struct{}

func (detachedTerminal) RunAndWait(ctx context.Context, program []string) error {
	return nil
}

func TestRunUnchangedEditNeverRuns(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionEdit, ExitCode: selector.ExitEdit}}

	l := NewWithDeps(f.cfg, Options{HistoryFile: f.cfg.History.Candidates[0]}, Deps{
		Selector:  f.selector,
		Clipboard: f.rec,
		Typer:     f.rec,
		Notifier:  f.rec,
		Terminal:  f.rec,
		Editor:    desktop.NewEditor(detachedTerminal{}, f.temp, "vi", time.Second, "bash"),
		Formatter: output.NewFormatterWithWriters(f.cfg, f.stdout, f.stderr),
		Temp:      f.temp,
		Stdout:    f.stdout,
	})

	code, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Empty(t, f.rec.run)
	assert.Empty(t, f.rec.typed)
	assert.Empty(t, f.selector.shown)
}

func TestRunNoColorReport(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	f := newFixture(t, sampleHistory)
	f.cfg.Output.AutoDetectTTY = false
	f.selector.showErr = desktop.ErrNoTool
	f.cfg.Desktop.Notify = false

	_, err := f.launcher(Options{HistoryFile: filepath.Join(t.TempDir(), "missing"), NoColor: true}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(f.stderr.String(), "[FAIL] history file not found"), f.stderr.String())
	assert.NotContains(t, f.stderr.String(), "\x1b[")
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.err = selector.ErrCancelled

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Empty(t, f.selector.shown)
}

func TestRunTimeoutIsReported(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.err = selector.ErrTimeout

	code, err := f.launcher(Options{}).Run(context.Background())
	assert.ErrorIs(t, err, selector.ErrTimeout)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Equal(t, []string{"selection timed out"}, f.selector.shown)
}

func TestRunPassthroughExitCode(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{{Index: -1, Action: selector.ActionPassthrough, ExitCode: 17}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, code)
}

func TestRunHelpReopensSelector(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{
		{Index: -1, Action: selector.ActionHelp, ExitCode: selector.ExitHelp},
		{Index: 0, Action: selector.ActionCopy, ExitCode: selector.ExitCopy},
	}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, selector.ExitCopy, code)
	assert.Equal(t, 2, f.selector.callCount)
	require.Len(t, f.selector.shown, 1)
	assert.Contains(t, f.selector.shown[0], "Alt+e")
}

func TestRunHelpLoopIsBounded(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{{Index: -1, Action: selector.ActionHelp, ExitCode: selector.ExitHelp}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, selector.ExitHelp, code)
	assert.Equal(t, maxHelpRounds, f.selector.callCount)
}

func TestRunReportsMissingHistory(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.showErr = desktop.ErrNoTool
	f.rec.notifyErr = desktop.ErrNoTool

	code, err := f.launcher(Options{HistoryFile: filepath.Join(t.TempDir(), "missing")}).Run(context.Background())
	assert.ErrorIs(t, err, history.ErrHistoryNotFound)
	assert.Equal(t, selector.ExitCancel, code)

	// Selector and notification failed, so the message lands on stderr
	require.Len(t, f.selector.shown, 1)
	require.Len(t, f.rec.errors, 1)
	assert.Contains(t, f.stderr.String(), "history file not found")
}

func TestRunEmptyHistory(t *testing.T) {
	f := newFixture(t, "\n\n")

	code, err := f.launcher(Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Equal(t, []string{"no history available"}, f.selector.shown)
}

func TestRunActionFailureExitsOne(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.rec.copyErr = errors.New("clipboard locked")
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionCopy, ExitCode: selector.ExitCopy}}

	code, err := f.launcher(Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, selector.ExitCancel, code)
	assert.Equal(t, []string{"clipboard locked"}, f.selector.shown)
}

func TestRunRowOptionsAndCleanup(t *testing.T) {
	f := newFixture(t, sampleHistory)
	f.selector.results = []*selector.Result{{Index: 0, Action: selector.ActionSelect}}

	path, err := f.temp.WriteFile("histpick-edit-*.sh", []byte("x"))
	require.NoError(t, err)

	_, err = f.launcher(Options{ShowLineNumbers: true, Action: ActionPrint}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "3  make test", f.selector.rows[0][0])
	assert.Equal(t, "make test\n", f.stdout.String())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadEntriesHonorsConfig(t *testing.T) {
	f := newFixture(t, ": 1:0;a\n: 2:0;b\n: 3:0;a\n: 4:0;c\n")

	entries, err := LoadEntries(f.cfg, Options{HistoryFile: f.cfg.History.Candidates[0]})
	require.NoError(t, err)
	commands := make([]string, len(entries))
	for i, e := range entries {
		commands[i] = e.Command
	}
	assert.Equal(t, []string{"c", "b", "a"}, commands)

	f.cfg.History.Dedup = "latest"
	f.cfg.History.MaxEntries = 2
	entries, err = LoadEntries(f.cfg, Options{HistoryFile: f.cfg.History.Candidates[0]})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Command)
	assert.Equal(t, "a", entries[1].Command)
}
