package selector

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCancelled is returned when the user dismissed the selector
	ErrCancelled = errors.New("selection cancelled")

	// ErrTimeout is returned when the user did not choose within the timeout
	ErrTimeout = errors.New("selection timed out")
)

// Exit codes shared by every selector. The custom bindings follow rofi's
// kb-custom-N convention (kb-custom-1 exits with 10).
const (
	ExitSelect = 0
	ExitCancel = 1
	ExitEdit   = 10
	ExitRun    = 11
	ExitCopy   = 12
	ExitHelp   = 13
)

// Action is what the user asked for when leaving the selector
type Action int

const (
	ActionSelect Action = iota
	ActionEdit
	ActionRun
	ActionCopy
	ActionHelp
	ActionPassthrough
)

func (a Action) String() string {
	switch a {
	case ActionSelect:
		return "select"
	case ActionEdit:
		return "edit"
	case ActionRun:
		return "run"
	case ActionCopy:
		return "copy"
	case ActionHelp:
		return "help"
	case ActionPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ActionForExitCode maps a selector exit status to an action
func ActionForExitCode(code int) (Action, error) {
	switch code {
	case ExitSelect:
		return ActionSelect, nil
	case ExitCancel:
		return 0, ErrCancelled
	case ExitEdit:
		return ActionEdit, nil
	case ExitRun:
		return ActionRun, nil
	case ExitCopy:
		return ActionCopy, nil
	case ExitHelp:
		return ActionHelp, nil
	default:
		return ActionPassthrough, nil
	}
}

// Result is the outcome of one selection
type Result struct {
	// Index into the rows passed to Select, -1 when nothing was highlighted
	Index    int
	Action   Action
	ExitCode int
}

// Keys are the bindings for the custom actions
type Keys struct {
	Edit string
	Run  string
	Copy string
	Help string
}

// DefaultKeys returns the bindings advertised in the help message
func DefaultKeys() Keys {
	return Keys{
		Edit: "Alt+e",
		Run:  "Alt+r",
		Copy: "Alt+c",
		Help: "Alt+h",
	}
}

// Options configures one selection
type Options struct {
	Prompt    string
	Message   string
	ThemePath string
	Timeout   time.Duration
	Keys      Keys
}

// Selector presents rows and reports the user's choice
type Selector interface {
	Select(ctx context.Context, rows []string, opts Options) (*Result, error)
	ShowError(ctx context.Context, message string, opts Options) error
}

// HelpText describes the key bindings
func HelpText(keys Keys) string {
	return fmt.Sprintf(`Enter	use the selected command
%s	edit the command before using it
%s	run the command in a terminal
%s	copy the command to the clipboard
%s	show this help
Esc	cancel`, keys.Edit, keys.Run, keys.Copy, keys.Help)
}
