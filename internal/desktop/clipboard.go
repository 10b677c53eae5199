package desktop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"

	"github.com/NeverVane/histpick/internal/logger"
)

// clipboardArgs holds the write-mode arguments of known clipboard tools
var clipboardArgs = map[string][]string{
	"wl-copy": nil,
	"xclip":   {"-selection", "clipboard"},
	"xsel":    {"--clipboard", "--input"},
	"pbcopy":  nil,
}

// Clipboard copies text to the system clipboard
type Clipboard struct {
	runner  Runner
	tools   []string
	timeout time.Duration
	logger  *logger.Logger

	// writeAll is the library path tried before the explicit tool list
	writeAll func(string) error
}

// NewClipboard creates a clipboard writer trying tools in order after the library path
func NewClipboard(runner Runner, tools []string, timeout time.Duration) *Clipboard {
	return &Clipboard{
		runner:   runner,
		tools:    tools,
		timeout:  timeout,
		logger:   logger.GetLogger().Desktop(),
		writeAll: clipboard.WriteAll,
	}
}

// Copy places text on the clipboard
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if c.writeAll != nil {
		err := c.writeAll(text)
		if err == nil {
			c.logger.Debug().Msg("Copied via clipboard library")
			return nil
		}
		c.logger.Debug().Err(err).Msg("Clipboard library failed, trying tools")
	}

	var errs []error
	for _, tool := range c.tools {
		if _, err := c.runner.LookPath(tool); err != nil {
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.runner.Run(runCtx, Cmd{Name: tool, Args: clipboardArgs[tool], Stdin: text})
		cancel()

		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !out.Success() {
			errs = append(errs, fmt.Errorf("%s exited with status %d", tool, out.ExitCode))
			continue
		}

		c.logger.Debug().Str("tool", tool).Msg("Copied via clipboard tool")
		return nil
	}

	if len(errs) == 0 {
		return fmt.Errorf("clipboard: %w (tried %v)", ErrNoTool, c.tools)
	}
	return fmt.Errorf("clipboard: %w: %w", ErrNoTool, errors.Join(errs...))
}
