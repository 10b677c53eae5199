package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/NeverVane/histpick/internal/config"
)

// ColorFormatter handles colored output based on configuration
type ColorFormatter struct {
	config   *config.OutputConfig
	renderer *lipgloss.Renderer
	enabled  bool
	noColor  bool
	isTTY    bool
	styles   map[StatusType]lipgloss.Style
}

// StatusType represents different types of CLI output status
type StatusType string

const (
	StatusSuccess StatusType = "success"
	StatusError   StatusType = "error"
	StatusWarning StatusType = "warning"
	StatusInfo    StatusType = "info"
)

// NewColorFormatter creates a color formatter for output written to w
func NewColorFormatter(cfg *config.OutputConfig, w io.Writer) *ColorFormatter {
	formatter := &ColorFormatter{
		config:   cfg,
		renderer: lipgloss.NewRenderer(w),
		isTTY:    isTerminal(w),
	}

	formatter.enabled = cfg.ColorsEnabled && (!cfg.AutoDetectTTY || formatter.isTTY)

	// NO_COLOR disables colors regardless of configuration
	if os.Getenv("NO_COLOR") != "" {
		formatter.enabled = false
	}

	formatter.loadStyles()
	return formatter
}

// SetNoColor disables color output (for --no-color flag)
func (cf *ColorFormatter) SetNoColor(noColor bool) {
	cf.noColor = noColor
	cf.enabled = cf.config.ColorsEnabled && !noColor && (!cf.config.AutoDetectTTY || cf.isTTY) && os.Getenv("NO_COLOR") == ""
}

func (cf *ColorFormatter) loadStyles() {
	colors := cf.config.Colors
	cf.styles = map[StatusType]lipgloss.Style{
		StatusSuccess: cf.colorStyle(colors.Success),
		StatusError:   cf.colorStyle(colors.Error),
		StatusWarning: cf.colorStyle(colors.Warning),
		StatusInfo:    cf.colorStyle(colors.Info),
	}
}

func (cf *ColorFormatter) colorStyle(hex string) lipgloss.Style {
	style := cf.renderer.NewStyle()
	if hex != "" {
		style = style.Foreground(lipgloss.Color(hex))
	}
	return style
}

func (cf *ColorFormatter) Success(message string) string {
	return cf.formatStatus("[OK]", message, StatusSuccess)
}

func (cf *ColorFormatter) Error(message string) string {
	return cf.formatStatus("[FAIL]", message, StatusError)
}

func (cf *ColorFormatter) Warning(message string) string {
	return cf.formatStatus("[WARN]", message, StatusWarning)
}

func (cf *ColorFormatter) Info(message string) string {
	return cf.formatStatus("[INFO]", message, StatusInfo)
}

// formatStatus formats a status message with colored indicator
func (cf *ColorFormatter) formatStatus(indicator, message string, statusType StatusType) string {
	return cf.Colorize(indicator, statusType) + " " + message
}

// Colorize applies color to text based on status type
func (cf *ColorFormatter) Colorize(text string, statusType StatusType) string {
	if !cf.enabled {
		return text
	}
	style, ok := cf.styles[statusType]
	if !ok {
		return text
	}
	return style.Render(text)
}

// Bold makes text bold (if colors are enabled)
func (cf *ColorFormatter) Bold(text string) string {
	if !cf.enabled {
		return text
	}
	return cf.renderer.NewStyle().Bold(true).Render(text)
}

// IsEnabled returns whether colors are currently enabled
func (cf *ColorFormatter) IsEnabled() bool {
	return cf.enabled
}

// isTerminal checks if w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
