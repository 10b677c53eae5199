package desktop

import (
	"context"
	"fmt"
	"time"
)

const notifyApp = "histpick"

// Notifier shows desktop notifications through notify-send
type Notifier struct {
	runner  Runner
	enabled bool
	timeout time.Duration
}

// NewNotifier creates a notifier; a disabled notifier does nothing
func NewNotifier(runner Runner, enabled bool, timeout time.Duration) *Notifier {
	return &Notifier{runner: runner, enabled: enabled, timeout: timeout}
}

// Notify shows a notification. It returns ErrNoTool when notify-send is missing.
func (n *Notifier) Notify(ctx context.Context, title, body string) error {
	return n.send(ctx, "normal", title, body)
}

// NotifyError shows a critical notification
func (n *Notifier) NotifyError(ctx context.Context, title, body string) error {
	return n.send(ctx, "critical", title, body)
}

func (n *Notifier) send(ctx context.Context, urgency, title, body string) error {
	if !n.enabled {
		return nil
	}
	if _, err := n.runner.LookPath("notify-send"); err != nil {
		return fmt.Errorf("notify-send: %w", ErrNoTool)
	}

	runCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	out, err := n.runner.Run(runCtx, Cmd{
		Name:    "notify-send",
		Args:    []string{"-a", notifyApp, "-u", urgency, title, body},
		Capture: true,
	})
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("notify-send exited with status %d: %s", out.ExitCode, out.Stderr)
	}
	return nil
}
