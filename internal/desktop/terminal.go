package desktop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/NeverVane/histpick/internal/logger"
)

// terminalSpec describes how a terminal emulator is told to run a program
type terminalSpec struct {
	// execArgs precede the program argv
	execArgs []string

	// waitArgs replace execArgs when the caller must block until the program exits
	waitArgs []string

	// singleString terminals take the program as one shell-quoted argument
	singleString bool
}

var knownTerminals = map[string]terminalSpec{
	"x-terminal-emulator": {execArgs: []string{"-e"}},
	"kitty":               {},
	"alacritty":           {execArgs: []string{"-e"}},
	"foot":                {},
	"wezterm":             {execArgs: []string{"start", "--"}, waitArgs: []string{"start", "--always-new-process", "--"}},
	"gnome-terminal":      {execArgs: []string{"--"}, waitArgs: []string{"--wait", "--"}},
	"konsole":             {execArgs: []string{"-e"}},
	"xfce4-terminal":      {execArgs: []string{"-x"}, waitArgs: []string{"--disable-server", "-x"}},
	"terminator":          {execArgs: []string{"-e"}, singleString: true},
	"urxvt":               {execArgs: []string{"-e"}},
	"st":                  {execArgs: []string{"-e"}},
	"xterm":               {execArgs: []string{"-e"}},
}

// Terminal launches commands inside a terminal emulator
type Terminal struct {
	runner     Runner
	preferred  []string
	candidates []string
	logger     *logger.Logger
}

// NewTerminal creates a terminal launcher. preferred entries (from $TERMINAL
// and the config) are tried before the candidate list.
func NewTerminal(runner Runner, preferred []string, candidates []string) *Terminal {
	return &Terminal{
		runner:     runner,
		preferred:  preferred,
		candidates: candidates,
		logger:     logger.GetLogger().Desktop(),
	}
}

// Detect returns the first terminal emulator found on PATH
func (t *Terminal) Detect() (string, error) {
	names := make([]string, 0, len(t.preferred)+len(t.candidates))
	for _, p := range t.preferred {
		// $TERMINAL sometimes carries flags
		if fields := strings.Fields(p); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	names = append(names, t.candidates...)

	if name, ok := firstAvailable(t.runner, names); ok {
		t.logger.Debug().Str("terminal", name).Msg("Detected terminal emulator")
		return name, nil
	}
	return "", fmt.Errorf("terminal emulator: %w (tried %v)", ErrNoTool, names)
}

// Command builds the argv that runs program inside the terminal
func (t *Terminal) Command(terminal string, program []string, wait bool) (Cmd, error) {
	ts, ok := knownTerminals[filepath.Base(terminal)]
	if !ok {
		ts = terminalSpec{execArgs: []string{"-e"}}
	}

	args := ts.execArgs
	if wait && ts.waitArgs != nil {
		args = ts.waitArgs
	}
	args = append([]string(nil), args...)

	if ts.singleString {
		quoted, err := quoteArgv(program)
		if err != nil {
			return Cmd{}, err
		}
		args = append(args, quoted)
	} else {
		args = append(args, program...)
	}

	return Cmd{Name: terminal, Args: args}, nil
}

// Run opens a terminal running command through the user's shell. With hold
// the terminal drops into an interactive shell afterwards instead of closing.
func (t *Terminal) Run(command string, hold bool) error {
	terminal, err := t.Detect()
	if err != nil {
		return err
	}

	shell := UserShell()
	script := command
	if hold {
		script = command + "\nexec " + shell
	}

	cmd, err := t.Command(terminal, []string{shell, "-c", script}, false)
	if err != nil {
		return err
	}

	t.logger.Info().Str("terminal", terminal).Msg("Launching command in terminal")
	return t.runner.Start(cmd)
}

// RunAndWait runs program in a terminal and blocks until it exits or ctx ends
func (t *Terminal) RunAndWait(ctx context.Context, program []string) error {
	terminal, err := t.Detect()
	if err != nil {
		return err
	}

	cmd, err := t.Command(terminal, program, true)
	if err != nil {
		return err
	}

	out, err := t.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("%s exited with status %d", terminal, out.ExitCode)
	}
	return nil
}

// UserShell returns $SHELL, falling back to sh
func UserShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "sh"
}

func quoteArgv(argv []string) (string, error) {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", arg, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
