package desktop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/pkg/security"
)

var (
	// ErrEmptyEdit is returned when the user saved an empty buffer
	ErrEmptyEdit = errors.New("edited command is empty")

	// ErrUnchangedEdit is returned when the editor left the command as it was.
	// Editors that detach from the terminal land here too.
	ErrUnchangedEdit = errors.New("command was not edited")
)

// launcher opens an editor and blocks until it exits
type launcher interface {
	RunAndWait(ctx context.Context, program []string) error
}

// Editor lets the user edit a command in their editor before it is used
type Editor struct {
	terminal launcher
	temp     *security.TempFiles
	fallback string
	timeout  time.Duration
	shell    string
	logger   *logger.Logger
}

// NewEditor creates an editor that opens a scratch file inside a terminal
func NewEditor(terminal launcher, temp *security.TempFiles, fallback string, timeout time.Duration, shell string) *Editor {
	return &Editor{
		terminal: terminal,
		temp:     temp,
		fallback: fallback,
		timeout:  timeout,
		shell:    shell,
		logger:   logger.GetLogger().Desktop(),
	}
}

// EditorCommand returns the editor argv: $VISUAL, then $EDITOR, then the fallback
func EditorCommand(fallback string) []string {
	for _, candidate := range []string{os.Getenv("VISUAL"), os.Getenv("EDITOR"), fallback, "vi"} {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

// Edit writes command to a scratch file, waits for the editor and returns the
// saved text. The result is syntax-checked for the user's shell. An empty or
// unchanged buffer abandons the edit.
func (e *Editor) Edit(ctx context.Context, command string) (string, error) {
	path, err := e.temp.WriteFile("histpick-edit-*.sh", []byte(command+"\n"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	program := append(EditorCommand(e.fallback), path)
	e.logger.Debug().Strs("editor", program).Msg("Opening editor")

	if err := e.terminal.RunAndWait(ctx, program); err != nil {
		return "", fmt.Errorf("editor failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited command: %w", err)
	}

	edited := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(edited) == "" {
		return "", ErrEmptyEdit
	}
	if strings.TrimSpace(edited) == strings.TrimSpace(command) {
		return "", ErrUnchangedEdit
	}

	if err := ValidateCommand(edited, e.shell); err != nil {
		return "", err
	}

	return edited, nil
}
