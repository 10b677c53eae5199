package desktop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NeverVane/histpick/internal/logger"
)

// DefaultTypeDelay lets the selector window release focus before typing starts
const DefaultTypeDelay = 150 * time.Millisecond

// Typer types text into the focused window
type Typer struct {
	runner  Runner
	tools   []string
	timeout time.Duration
	delay   time.Duration
	logger  *logger.Logger
}

// NewTyper creates a typer trying tools in order
func NewTyper(runner Runner, tools []string, timeout time.Duration) *Typer {
	return &Typer{
		runner:  runner,
		tools:   tools,
		timeout: timeout,
		delay:   DefaultTypeDelay,
		logger:  logger.GetLogger().Desktop(),
	}
}

// SetDelay changes the pause before typing
func (t *Typer) SetDelay(d time.Duration) {
	t.delay = d
}

func typeCommand(tool, text string) (Cmd, bool) {
	switch tool {
	case "wtype":
		// "-" reads the text from stdin so leading dashes are not taken as flags
		return Cmd{Name: tool, Args: []string{"-"}, Stdin: text}, true
	case "xdotool":
		return Cmd{Name: tool, Args: []string{"type", "--clearmodifiers", "--", text}}, true
	case "ydotool":
		return Cmd{Name: tool, Args: []string{"type", "--", text}}, true
	default:
		return Cmd{}, false
	}
}

// Type sends text as keystrokes
func (t *Typer) Type(ctx context.Context, text string) error {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	for _, tool := range t.tools {
		cmd, known := typeCommand(tool, text)
		if !known {
			t.logger.Warn().Str("tool", tool).Msg("Unknown typing tool, skipping")
			continue
		}
		if _, err := t.runner.LookPath(tool); err != nil {
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, t.timeout)
		cmd.Capture = true
		out, err := t.runner.Run(runCtx, cmd)
		cancel()

		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !out.Success() {
			errs = append(errs, fmt.Errorf("%s exited with status %d: %s", tool, out.ExitCode, out.Stderr))
			continue
		}

		t.logger.Debug().Str("tool", tool).Msg("Typed command")
		return nil
	}

	if len(errs) == 0 {
		return fmt.Errorf("typing: %w (tried %v)", ErrNoTool, t.tools)
	}
	return fmt.Errorf("typing: %w: %w", ErrNoTool, errors.Join(errs...))
}
