package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/NeverVane/histpick/internal/config"
	"github.com/NeverVane/histpick/internal/logger"
)

// Markers delimiting the block added to shell config files
const (
	MarkerStart = "# histpick widget - START"
	MarkerEnd   = "# histpick widget - END"
)

// SupportedShells lists the shells a widget can be generated for
var SupportedShells = []string{"bash", "zsh", "fish"}

// WidgetManager installs the Ctrl+R widget that opens histpick in the
// terminal and puts the chosen command on the command line
type WidgetManager struct {
	logger     *logger.Logger
	homeDir    string
	widgetsDir string
	binaryPath string
}

// NewWidgetManager creates a widget manager storing scripts under the config dir
func NewWidgetManager(cfg *config.Config) (*WidgetManager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	binaryPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	return newWidgetManager(homeDir, filepath.Join(cfg.ConfigDir, "widgets"), binaryPath), nil
}

func newWidgetManager(homeDir, widgetsDir, binaryPath string) *WidgetManager {
	return &WidgetManager{
		logger:     logger.GetLogger().WithComponent("widget"),
		homeDir:    homeDir,
		widgetsDir: widgetsDir,
		binaryPath: binaryPath,
	}
}

// ShellName reduces a shell path such as /usr/bin/zsh to its name
func ShellName(shell string) string {
	return filepath.Base(shell)
}

// GenerateWidget returns the widget script for shell
func (wm *WidgetManager) GenerateWidget(shell string) (string, error) {
	var tmpl *template.Template
	switch shell {
	case "bash":
		tmpl = bashWidget
	case "zsh":
		tmpl = zshWidget
	case "fish":
		tmpl = fishWidget
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}

	binary, err := syntax.Quote(wm.binaryPath, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote binary path %q: %w", wm.binaryPath, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, struct{ Binary string }{Binary: binary}); err != nil {
		return "", fmt.Errorf("failed to render %s widget: %w", shell, err)
	}
	return buf.String(), nil
}

// WidgetPath returns where the widget script for shell is written.
// Fish loads conf.d snippets itself, so its widget lives there.
func (wm *WidgetManager) WidgetPath(shell string) string {
	switch shell {
	case "bash", "zsh":
		return filepath.Join(wm.widgetsDir, shell+"_widget.sh")
	case "fish":
		return filepath.Join(wm.homeDir, ".config", "fish", "conf.d", "histpick.fish")
	default:
		return ""
	}
}

// ShellConfigPath detects the rc file that should source the widget
func (wm *WidgetManager) ShellConfigPath(shell string) (string, error) {
	var candidates []string
	switch shell {
	case "bash":
		candidates = []string{filepath.Join(wm.homeDir, ".bashrc")}
		if runtime.GOOS == "darwin" {
			candidates = append([]string{filepath.Join(wm.homeDir, ".bash_profile")}, candidates...)
		}
	case "zsh":
		zdot := os.Getenv("ZDOTDIR")
		if zdot == "" {
			zdot = wm.homeDir
		}
		candidates = []string{filepath.Join(zdot, ".zshrc")}
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return candidates[0], nil
}

// IsInstalled reports whether the widget block is present in configPath
func (wm *WidgetManager) IsInstalled(configPath string) (bool, error) {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return strings.Contains(string(content), MarkerStart), nil
}

// Install writes the widget script and, for bash and zsh, sources it from the rc file
func (wm *WidgetManager) Install(shell string, force bool) (string, error) {
	script, err := wm.GenerateWidget(shell)
	if err != nil {
		return "", err
	}
	widgetPath := wm.WidgetPath(shell)

	if shell == "fish" {
		if _, err := os.Stat(widgetPath); err == nil && !force {
			return "", fmt.Errorf("widget already installed at %s (use --force to reinstall)", widgetPath)
		}
		if err := writeWidget(widgetPath, script); err != nil {
			return "", err
		}
		wm.logger.WithField("widget_path", widgetPath).Info().Msg("Installed fish widget")
		return widgetPath, nil
	}

	configPath, err := wm.ShellConfigPath(shell)
	if err != nil {
		return "", err
	}
	if !force {
		installed, err := wm.IsInstalled(configPath)
		if err != nil {
			return "", err
		}
		if installed {
			return "", fmt.Errorf("widget already installed in %s (use --force to reinstall)", configPath)
		}
	}

	if _, err := wm.backup(configPath); err != nil {
		return "", err
	}
	if err := writeWidget(widgetPath, script); err != nil {
		return "", err
	}
	if err := wm.addSourceBlock(configPath, widgetPath); err != nil {
		return "", err
	}

	wm.logger.WithFields(map[string]interface{}{
		"shell":       shell,
		"config_path": configPath,
		"widget_path": widgetPath,
	}).Info().Msg("Installed widget")
	return configPath, nil
}

// Uninstall removes the widget block and script
func (wm *WidgetManager) Uninstall(shell string) error {
	widgetPath := wm.WidgetPath(shell)
	if widgetPath == "" {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	if shell != "fish" {
		configPath, err := wm.ShellConfigPath(shell)
		if err != nil {
			return err
		}
		installed, err := wm.IsInstalled(configPath)
		if err != nil {
			return err
		}
		if !installed {
			return fmt.Errorf("widget is not installed in %s", configPath)
		}
		if _, err := wm.backup(configPath); err != nil {
			return err
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(removeBlock(string(content))), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	if err := os.Remove(widgetPath); err != nil && !os.IsNotExist(err) {
		wm.logger.WithError(err).WithField("widget_path", widgetPath).Warn().Msg("Failed to remove widget script")
	}
	return nil
}

// backup copies configPath next to itself with a timestamp suffix
func (wm *WidgetManager) backup(configPath string) (string, error) {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config file for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.histpick-backup-%s", configPath, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	wm.logger.WithField("backup_path", backupPath).Debug().Msg("Created shell config backup")
	return backupPath, nil
}

func (wm *WidgetManager) addSourceBlock(configPath, widgetPath string) error {
	var content string
	if existing, err := os.ReadFile(configPath); err == nil {
		content = string(existing)
	}

	clean := strings.TrimRight(removeBlock(content), "\n")
	if clean != "" {
		clean += "\n"
	}

	quoted, err := syntax.Quote(widgetPath, syntax.LangPOSIX)
	if err != nil {
		return fmt.Errorf("cannot quote widget path %q: %w", widgetPath, err)
	}

	block := fmt.Sprintf("\n%s\nif [ -f %s ]; then\n    . %s\nfi\n%s\n", MarkerStart, quoted, quoted, MarkerEnd)
	if err := os.WriteFile(configPath, []byte(clean+block), 0644); err != nil {
		return fmt.Errorf("failed to write to config file: %w", err)
	}
	return nil
}

// removeBlock strips any existing widget block from rc file content
func removeBlock(content string) string {
	lines := strings.Split(content, "\n")
	var result []string
	inBlock := false

	for _, line := range lines {
		if strings.Contains(line, MarkerStart) {
			inBlock = true
			continue
		}
		if strings.Contains(line, MarkerEnd) {
			inBlock = false
			continue
		}
		if !inBlock {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

func writeWidget(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create widget directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write widget: %w", err)
	}
	return nil
}

var bashWidget = template.Must(template.New("bash").Parse(`# histpick bash widget
# Auto-generated file - do not edit manually

__histpick_widget() {
    local selected
    selected=$({{.Binary}} --tui --action print </dev/tty) || return
    READLINE_LINE=$selected
    READLINE_POINT=${#READLINE_LINE}
}

if [[ $- == *i* ]]; then
    bind -x '"\C-r": __histpick_widget'
fi
`))

var zshWidget = template.Must(template.New("zsh").Parse(`# histpick zsh widget
# Auto-generated file - do not edit manually

__histpick_widget() {
    local selected
    selected=$({{.Binary}} --tui --action print </dev/tty)
    if [[ $? -eq 0 && -n "$selected" ]]; then
        BUFFER=$selected
        CURSOR=${#BUFFER}
    fi
    zle reset-prompt
}

if [[ -o interactive ]]; then
    zle -N __histpick_widget
    bindkey '^R' __histpick_widget
fi
`))

var fishWidget = template.Must(template.New("fish").Parse(`# histpick fish widget
# Auto-generated file - do not edit manually

function __histpick_widget
    set -l selected ({{.Binary}} --tui --action print </dev/tty | string collect)
    and commandline -r -- $selected
    commandline -f repaint
end

if status is-interactive
    bind \cr __histpick_widget
end
`))
