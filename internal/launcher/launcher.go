package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/NeverVane/histpick/internal/config"
	"github.com/NeverVane/histpick/internal/desktop"
	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/internal/output"
	"github.com/NeverVane/histpick/internal/selector"
	"github.com/NeverVane/histpick/internal/tui"
	"github.com/NeverVane/histpick/pkg/history"
	"github.com/NeverVane/histpick/pkg/security"
)

// ErrNoHistory is returned when the history file holds no usable commands
var ErrNoHistory = errors.New("no history available")

// maxHelpRounds bounds how often the help message can reopen the selector
const maxHelpRounds = 5

// Action names accepted by actions.default and --action
const (
	ActionType  = "type"
	ActionCopy  = "copy"
	ActionRun   = "run"
	ActionEdit  = "edit"
	ActionPrint = "print"
)

// Options are the per-invocation settings taken from the command line
type Options struct {
	// HistoryFile skips detection when set
	HistoryFile string

	// Shell overrides the shell name used for detection
	Shell string

	ShowTimestamps  bool
	ShowLineNumbers bool

	// EditMode makes a plain selection open the editor
	EditMode bool

	// Action overrides actions.default
	Action string

	// UseTUI picks the terminal picker instead of rofi
	UseTUI bool

	// NoColor disables colour in messages written to stderr
	NoColor bool
}

// Copier writes text to the clipboard
type Copier interface {
	Copy(ctx context.Context, text string) error
}

// Typist types text into the focused window
type Typist interface {
	Type(ctx context.Context, text string) error
}

// Notifier shows desktop notifications
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
	NotifyError(ctx context.Context, title, body string) error
}

// CommandRunner opens a terminal running a command
type CommandRunner interface {
	Run(command string, hold bool) error
}

// CommandEditor lets the user rewrite a command
type CommandEditor interface {
	Edit(ctx context.Context, command string) (string, error)
}

// Deps are the collaborators the launcher drives
type Deps struct {
	Selector  selector.Selector
	Clipboard Copier
	Typer     Typist
	Notifier  Notifier
	Terminal  CommandRunner
	Editor    CommandEditor
	Formatter *output.Formatter
	Temp      *security.TempFiles
	Stdout    io.Writer
}

// Launcher loads history, shows the selector and acts on the choice
type Launcher struct {
	cfg    *config.Config
	opts   Options
	deps   Deps
	logger *logger.Logger
}

// New wires the launcher to the real desktop tools
func New(cfg *config.Config, opts Options) *Launcher {
	runner := desktop.NewExecRunner()
	temp := security.NewTempFiles("")
	timeout := cfg.GetCommandTimeout()

	var sel selector.Selector
	if opts.UseTUI || cfg.Selector.Program == "tui" {
		sel = tui.NewPicker()
	} else {
		sel = selector.NewRofi(runner, "")
	}

	var preferred []string
	if env := os.Getenv("TERMINAL"); env != "" {
		preferred = append(preferred, env)
	}
	if cfg.Desktop.Terminal != "" {
		preferred = append(preferred, cfg.Desktop.Terminal)
	}
	terminal := desktop.NewTerminal(runner, preferred, cfg.Desktop.TerminalCandidates)

	return NewWithDeps(cfg, opts, Deps{
		Selector:  sel,
		Clipboard: desktop.NewClipboard(runner, cfg.Desktop.ClipboardTools, timeout),
		Typer:     desktop.NewTyper(runner, cfg.Desktop.TypeTools, timeout),
		Notifier:  desktop.NewNotifier(runner, cfg.Desktop.Notify, timeout),
		Terminal:  terminal,
		Editor:    desktop.NewEditor(terminal, temp, cfg.Desktop.Editor, cfg.GetEditorTimeout(), desktop.UserShell()),
		Formatter: output.NewFormatter(cfg),
		Temp:      temp,
		Stdout:    os.Stdout,
	})
}

// NewWithDeps creates a launcher with explicit collaborators
func NewWithDeps(cfg *config.Config, opts Options, deps Deps) *Launcher {
	if deps.Temp == nil {
		deps.Temp = security.NewTempFiles("")
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Formatter == nil {
		deps.Formatter = output.NewFormatter(cfg)
	}
	deps.Formatter.SetFlags(false, false, opts.NoColor)
	return &Launcher{
		cfg:    cfg,
		opts:   opts,
		deps:   deps,
		logger: logger.GetLogger().WithComponent("launcher"),
	}
}

// Run executes one launcher session and returns the process exit code.
// Temp files are removed before it returns.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	defer func() {
		if cleanupErr := l.deps.Temp.Cleanup(); cleanupErr != nil {
			l.logger.WithError(cleanupErr).Warn().Msg("Failed to remove temp files")
		}
	}()

	entries, err := l.LoadEntries()
	if err != nil {
		l.report(ctx, selector.Options{}, err.Error())
		return selector.ExitCancel, err
	}
	if len(entries) == 0 {
		l.report(ctx, selector.Options{}, ErrNoHistory.Error())
		return selector.ExitCancel, ErrNoHistory
	}

	opts := selector.Options{
		Prompt:  l.cfg.Selector.Prompt,
		Timeout: l.cfg.GetSelectorTimeout(),
		Keys:    selector.DefaultKeys(),
	}
	if _, isRofi := l.deps.Selector.(*selector.Rofi); isRofi {
		themePath, err := selector.WriteTheme(selector.ThemeFromConfig(l.cfg.Theme), l.deps.Temp)
		if err != nil {
			l.logger.WithError(err).Warn().Msg("Using rofi's default theme")
		} else {
			opts.ThemePath = themePath
		}
	}

	rows := selector.FormatRows(entries, l.rowOptions())

	for round := 0; round < maxHelpRounds; round++ {
		result, err := l.deps.Selector.Select(ctx, rows, opts)
		switch {
		case errors.Is(err, selector.ErrCancelled):
			l.logger.Debug().Msg("Selection cancelled")
			return selector.ExitCancel, nil
		case errors.Is(err, selector.ErrTimeout):
			l.report(ctx, opts, "selection timed out")
			return selector.ExitCancel, err
		case err != nil:
			l.report(ctx, opts, err.Error())
			return selector.ExitCancel, err
		}

		l.logger.Debug().
			Str("action", result.Action.String()).
			Int("index", result.Index).
			Int("exit_code", result.ExitCode).
			Msg("Selection made")

		switch result.Action {
		case selector.ActionHelp:
			if err := l.deps.Selector.ShowError(ctx, selector.HelpText(opts.Keys), opts); err != nil {
				l.logger.WithError(err).Warn().Msg("Failed to show help")
			}
			continue
		case selector.ActionPassthrough:
			return result.ExitCode, nil
		}

		if result.Index < 0 || result.Index >= len(entries) {
			l.report(ctx, opts, "no command selected")
			return selector.ExitCancel, nil
		}

		command := entries[result.Index].Command
		if err := l.dispatch(ctx, result.Action, command); err != nil {
			if errors.Is(err, desktop.ErrEmptyEdit) || errors.Is(err, desktop.ErrUnchangedEdit) {
				l.logger.WithError(err).Info().Msg("Edit abandoned")
				return selector.ExitCancel, nil
			}
			l.report(ctx, opts, err.Error())
			return selector.ExitCancel, err
		}
		return result.ExitCode, nil
	}

	l.logger.Warn().Int("rounds", maxHelpRounds).Msg("Help shown too often, giving up")
	return selector.ExitHelp, nil
}

// LoadEntries detects and loads the history file
func (l *Launcher) LoadEntries() ([]*history.Entry, error) {
	return LoadEntries(l.cfg, l.opts)
}

// LoadEntries resolves the history file for opts and loads it with the
// configured window and dedup policy
func LoadEntries(cfg *config.Config, opts Options) ([]*history.Entry, error) {
	log := logger.GetLogger().History()

	path := opts.HistoryFile
	if path == "" {
		shell := opts.Shell
		if shell == "" {
			shell = os.Getenv("SHELL")
		}
		var err error
		path, err = history.DetectHistoryFile(shell, cfg.History.Candidates)
		if err != nil {
			return nil, err
		}
	}

	if err := security.ValidateReadable(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", history.ErrHistoryNotFound, path)
		}
		return nil, err
	}

	format, err := history.ParseFormat(cfg.History.Format)
	if err != nil {
		return nil, err
	}
	policy, err := history.ParseDedupPolicy(cfg.History.Dedup)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := history.Load(path, &history.LoadOptions{
		MaxEntries:     cfg.History.MaxEntries,
		TailMultiplier: cfg.History.TailMultiplier,
		Format:         format,
		Dedup:          policy,
	})
	if err != nil {
		return nil, err
	}

	log.Performance("load_history", time.Since(start), map[string]interface{}{
		"path":       path,
		"lines":      result.LinesRead,
		"records":    result.ScannedRecords,
		"duplicates": result.DuplicateRecords,
		"entries":    len(result.Entries),
	})
	return result.Entries, nil
}

func (l *Launcher) rowOptions() selector.RowOptions {
	return selector.RowOptions{
		ShowLineNumbers: l.opts.ShowLineNumbers || l.cfg.Selector.ShowLineNumbers,
		ShowTimestamps:  l.opts.ShowTimestamps || l.cfg.Selector.ShowTimestamps,
		TimestampFormat: l.cfg.Selector.TimestampFormat,
		MaxWidth:        l.cfg.Selector.MaxWidth,
	}
}

// defaultAction is what a plain selection does
func (l *Launcher) defaultAction() string {
	switch {
	case l.opts.EditMode:
		return ActionEdit
	case l.opts.Action != "":
		return l.opts.Action
	default:
		return l.cfg.Actions.Default
	}
}

func (l *Launcher) dispatch(ctx context.Context, action selector.Action, command string) error {
	switch action {
	case selector.ActionSelect:
		return l.perform(ctx, l.defaultAction(), command)
	case selector.ActionEdit:
		return l.perform(ctx, ActionEdit, command)
	case selector.ActionRun:
		return l.perform(ctx, ActionRun, command)
	case selector.ActionCopy:
		return l.perform(ctx, ActionCopy, command)
	default:
		return fmt.Errorf("unexpected action %s", action)
	}
}

// perform applies a named action to command
func (l *Launcher) perform(ctx context.Context, action, command string) error {
	l.logger.WithOperation(action).Debug().Msg("Performing action")

	switch action {
	case ActionType:
		return l.typeAndCopy(ctx, command)

	case ActionCopy:
		return l.copy(ctx, command)

	case ActionRun:
		if err := l.deps.Terminal.Run(command, true); err != nil {
			return err
		}
		l.notify(ctx, "Running in terminal", command)
		return nil

	case ActionEdit:
		edited, err := l.deps.Editor.Edit(ctx, command)
		if err != nil {
			return err
		}
		after := l.cfg.Actions.AfterEdit
		if after == ActionEdit || after == "" {
			after = ActionRun
		}
		return l.perform(ctx, after, edited)

	case ActionPrint:
		_, err := fmt.Fprintln(l.deps.Stdout, command)
		return err

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// typeAndCopy puts command on the clipboard and types it. Either one
// succeeding is enough.
func (l *Launcher) typeAndCopy(ctx context.Context, command string) error {
	copyErr := l.deps.Clipboard.Copy(ctx, command)
	typeErr := l.deps.Typer.Type(ctx, command)

	switch {
	case copyErr == nil && typeErr == nil:
		l.notify(ctx, "Executed", command)
	case copyErr == nil:
		l.logger.WithError(typeErr).Info().Msg("Typing unavailable, command copied")
		l.notify(ctx, "Copied", command)
	case typeErr == nil:
		l.logger.WithError(copyErr).Info().Msg("Clipboard unavailable, command typed")
		l.notify(ctx, "Typed", command)
	default:
		return fmt.Errorf("could not type or copy the command: %w", errors.Join(typeErr, copyErr))
	}
	return nil
}

func (l *Launcher) copy(ctx context.Context, command string) error {
	if err := l.deps.Clipboard.Copy(ctx, command); err != nil {
		return err
	}
	l.notify(ctx, "Copied", command)
	return nil
}

func (l *Launcher) notify(ctx context.Context, title, command string) {
	if err := l.deps.Notifier.Notify(ctx, title, firstLine(command)); err != nil {
		l.logger.WithError(err).Debug().Msg("Notification skipped")
	}
}

// report shows message through the selector's error mode, then a
// notification, then stderr
func (l *Launcher) report(ctx context.Context, opts selector.Options, message string) {
	l.logger.Error().Str("message", message).Msg("Reporting error")

	if l.deps.Selector != nil {
		err := l.deps.Selector.ShowError(ctx, message, opts)
		if err == nil {
			return
		}
		l.logger.WithError(err).Debug().Msg("Selector error display failed")
	}

	if l.deps.Notifier != nil && l.cfg.Desktop.Notify {
		err := l.deps.Notifier.NotifyError(ctx, "histpick", message)
		if err == nil {
			return
		}
		l.logger.WithError(err).Debug().Msg("Error notification failed")
	}

	l.deps.Formatter.Error("%s", message)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
