package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrNoTool is returned when every tool in a fallback list is unavailable or failed
	ErrNoTool = errors.New("no usable tool found")

	// ErrTimeout is returned when an external program exceeds its deadline
	ErrTimeout = errors.New("external program timed out")
)

// Cmd describes one external program invocation
type Cmd struct {
	Name  string
	Args  []string
	Stdin string

	// Capture collects stdout and stderr. Tools that fork a daemon holding
	// stdout open (xclip) must run without it.
	Capture bool

	// Interactive attaches the controlling terminal
	Interactive bool
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output is the result of a finished program
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports a zero exit status
func (o *Output) Success() bool {
	return o != nil && o.ExitCode == 0
}

// Runner runs external programs. A non-zero exit is reported through
// Output.ExitCode, not as an error.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (*Output, error)
	Start(cmd Cmd) error
	LookPath(name string) (string, error)
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

// NewExecRunner returns the default Runner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) (*Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)

	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if c.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	if c.Interactive {
		if c.Stdin == "" {
			cmd.Stdin = os.Stdin
		}
		cmd.Stderr = os.Stderr
		if !c.Capture {
			cmd.Stdout = os.Stdout
		}
	}

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", c.Name, ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}

	out := &Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}

	return out, nil
}

// Start launches a program without waiting for it
func (r *ExecRunner) Start(c Cmd) error {
	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Name, err)
	}
	return cmd.Process.Release()
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// firstAvailable returns the first name that resolves on PATH
func firstAvailable(runner Runner, names []string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := runner.LookPath(name); err == nil {
			return name, true
		}
	}
	return "", false
}
