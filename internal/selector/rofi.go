package selector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NeverVane/histpick/internal/desktop"
	"github.com/NeverVane/histpick/internal/logger"
)

// Rofi runs rofi in dmenu mode
type Rofi struct {
	runner  desktop.Runner
	program string
	logger  *logger.Logger
}

// NewRofi creates a rofi selector; program defaults to "rofi"
func NewRofi(runner desktop.Runner, program string) *Rofi {
	if program == "" {
		program = "rofi"
	}
	return &Rofi{
		runner:  runner,
		program: program,
		logger:  logger.GetLogger().Selector(),
	}
}

// Available reports whether the rofi binary is on PATH
func (r *Rofi) Available() bool {
	_, err := r.runner.LookPath(r.program)
	return err == nil
}

func (r *Rofi) args(opts Options) []string {
	keys := opts.Keys
	if keys == (Keys{}) {
		keys = DefaultKeys()
	}

	args := []string{
		"-dmenu",
		"-i",
		"-no-custom",
		"-format", "i",
		"-p", opts.Prompt,
		"-kb-custom-1", keys.Edit,
		"-kb-custom-2", keys.Run,
		"-kb-custom-3", keys.Copy,
		"-kb-custom-4", keys.Help,
	}
	if opts.Message != "" {
		args = append(args, "-mesg", opts.Message)
	}
	if opts.ThemePath != "" {
		args = append(args, "-theme", opts.ThemePath)
	}
	return args
}

// Select shows rows and waits for the user, bounded by opts.Timeout
func (r *Rofi) Select(ctx context.Context, rows []string, opts Options) (*Result, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%s: %w", r.program, desktop.ErrNoTool)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	out, err := r.runner.Run(ctx, desktop.Cmd{
		Name:    r.program,
		Args:    r.args(opts),
		Stdin:   strings.Join(rows, "\n"),
		Capture: true,
	})
	if err != nil {
		if errors.Is(err, desktop.ErrTimeout) {
			return nil, fmt.Errorf("%s: %w", r.program, ErrTimeout)
		}
		return nil, err
	}

	r.logger.Debug().Int("exit_code", out.ExitCode).Msg("Selector finished")

	action, err := ActionForExitCode(out.ExitCode)
	if err != nil {
		return nil, err
	}

	index, err := parseIndex(out.Stdout, len(rows))
	if err != nil {
		return nil, err
	}
	if action == ActionSelect && index < 0 {
		// rofi exits 0 with no output when launched with an empty list
		return nil, ErrCancelled
	}

	return &Result{Index: index, Action: action, ExitCode: out.ExitCode}, nil
}

// ShowError displays message in rofi's error mode
func (r *Rofi) ShowError(ctx context.Context, message string, opts Options) error {
	if !r.Available() {
		return fmt.Errorf("%s: %w", r.program, desktop.ErrNoTool)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := []string{"-e", message}
	if opts.ThemePath != "" {
		args = append(args, "-theme", opts.ThemePath)
	}

	out, err := r.runner.Run(ctx, desktop.Cmd{Name: r.program, Args: args, Capture: true})
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("%s -e exited with status %d: %s", r.program, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// parseIndex reads the "-format i" output; empty output means no row
func parseIndex(stdout string, rowCount int) (int, error) {
	text := strings.TrimSpace(stdout)
	if text == "" {
		return -1, nil
	}

	index, err := strconv.Atoi(text)
	if err != nil {
		return -1, fmt.Errorf("unexpected selector output %q: %w", text, err)
	}
	if index < 0 || index >= rowCount {
		return -1, fmt.Errorf("selector returned index %d outside %d rows", index, rowCount)
	}
	return index, nil
}
