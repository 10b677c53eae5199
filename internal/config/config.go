package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NeverVane/histpick/internal/logger"
	"github.com/NeverVane/histpick/pkg/history"
)

const appName = "histpick"

// Config represents the complete configuration for histpick
type Config struct {
	// History loading configuration
	History HistoryConfig `toml:"history"`

	// Selector configuration
	Selector SelectorConfig `toml:"selector"`

	// Theme used when generating the selector theme file
	Theme ThemeConfig `toml:"theme"`

	// Actions taken on selection
	Actions ActionsConfig `toml:"actions"`

	// Desktop tool configuration
	Desktop DesktopConfig `toml:"desktop"`

	// Output configuration
	Output OutputConfig `toml:"output"`

	// Log configuration
	Log LogConfig `toml:"log"`

	// Directory paths (computed, not stored in TOML)
	ConfigDir string `toml:"-"`
}

// HistoryConfig contains history loading settings
type HistoryConfig struct {
	// Maximum number of entries shown
	MaxEntries int `toml:"max_entries"`

	// Raw lines read = max_entries * tail_multiplier
	TailMultiplier int `toml:"tail_multiplier"`

	// Which occurrence of a repeated command survives (first, latest)
	Dedup string `toml:"dedup"`

	// Record format (auto, line, block)
	Format string `toml:"format"`

	// Fallback history files tried in order
	Candidates []string `toml:"candidates"`
}

// SelectorConfig contains selector UI settings
type SelectorConfig struct {
	// Selector program (rofi, tui)
	Program string `toml:"program"`

	Prompt string `toml:"prompt"`

	// Timeout for the interactive selection in seconds
	TimeoutSeconds int `toml:"timeout_seconds"`

	ShowTimestamps  bool   `toml:"show_timestamps"`
	ShowLineNumbers bool   `toml:"show_line_numbers"`
	TimestampFormat string `toml:"timestamp_format"`

	// Commands longer than this are truncated in the list
	MaxWidth int `toml:"max_width"`
}

// ThemeConfig contains the colors and geometry of the selector window
type ThemeConfig struct {
	Font       string `toml:"font"`
	Width      int    `toml:"width"`
	Lines      int    `toml:"lines"`
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Accent     string `toml:"accent"`
	Urgent     string `toml:"urgent"`
	Border     string `toml:"border"`
}

// ActionsConfig decides what happens to a chosen command
type ActionsConfig struct {
	// Action for a plain selection (type, copy, run, edit, print)
	Default string `toml:"default"`

	// Action applied to an edited command (run, type, copy, print)
	AfterEdit string `toml:"after_edit"`
}

// DesktopConfig contains external tool settings
type DesktopConfig struct {
	// Preferred terminal emulator, tried after $TERMINAL
	Terminal string `toml:"terminal"`

	TerminalCandidates []string `toml:"terminal_candidates"`
	ClipboardTools     []string `toml:"clipboard_tools"`
	TypeTools          []string `toml:"type_tools"`

	// Show desktop notifications
	Notify bool `toml:"notify"`

	// Editor used when $VISUAL and $EDITOR are unset
	Editor string `toml:"editor"`

	EditorTimeoutSeconds  int `toml:"editor_timeout_seconds"`
	CommandTimeoutSeconds int `toml:"command_timeout_seconds"`
}

// OutputConfig contains terminal output settings
type OutputConfig struct {
	ColorsEnabled bool        `toml:"colors_enabled"`
	AutoDetectTTY bool        `toml:"auto_detect_tty"`
	Colors        ColorConfig `toml:"colors"`
}

// ColorConfig contains hex colors for status output
type ColorConfig struct {
	Success string `toml:"success"`
	Error   string `toml:"error"`
	Warning string `toml:"warning"`
	Info    string `toml:"info"`
}

// LogConfig contains logger settings
type LogConfig struct {
	// Log level (debug, info, warn, error)
	Level string `toml:"level"`

	// Output destination (stdout, stderr, or file path)
	Output string `toml:"output"`
}

var (
	validPrograms     = map[string]bool{"rofi": true, "tui": true}
	validDedup        = map[string]bool{"first": true, "latest": true}
	validFormats      = map[string]bool{"auto": true, "line": true, "block": true}
	validActions      = map[string]bool{"type": true, "copy": true, "run": true, "edit": true, "print": true}
	validAfterActions = map[string]bool{"type": true, "copy": true, "run": true, "print": true}
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	configDir := DefaultConfigDir()

	return &Config{
		History: HistoryConfig{
			MaxEntries:     1000,
			TailMultiplier: 3,
			Dedup:          "first",
			Format:         "auto",
			Candidates:     append([]string(nil), history.DefaultCandidates...),
		},
		Selector: SelectorConfig{
			Program:         "rofi",
			Prompt:          "history",
			TimeoutSeconds:  120,
			ShowTimestamps:  false,
			ShowLineNumbers: false,
			TimestampFormat: "2006-01-02 15:04",
			MaxWidth:        160,
		},
		Theme: ThemeConfig{
			Font:       "monospace 11",
			Width:      60,
			Lines:      15,
			Background: "#1e1e2e",
			Foreground: "#cdd6f4",
			Accent:     "#89b4fa",
			Urgent:     "#f38ba8",
			Border:     "#45475a",
		},
		Actions: ActionsConfig{
			Default:   "type",
			AfterEdit: "run",
		},
		Desktop: DesktopConfig{
			TerminalCandidates: []string{
				"x-terminal-emulator",
				"kitty",
				"alacritty",
				"foot",
				"wezterm",
				"gnome-terminal",
				"konsole",
				"xfce4-terminal",
				"xterm",
			},
			ClipboardTools:        []string{"wl-copy", "xclip", "xsel", "pbcopy"},
			TypeTools:             []string{"wtype", "xdotool", "ydotool"},
			Notify:                true,
			Editor:                "vi",
			EditorTimeoutSeconds:  600,
			CommandTimeoutSeconds: 10,
		},
		Output: OutputConfig{
			ColorsEnabled: true,
			AutoDetectTTY: true,
			Colors: ColorConfig{
				Success: "#00FF00", // Bright Green
				Error:   "#FF0000", // Bright Red
				Warning: "#FF8800", // Orange
				Info:    "#0088FF", // Bright Blue
			},
		},
		Log: LogConfig{
			Level:  "error",
			Output: "stderr",
		},
		ConfigDir: configDir,
	}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/histpick or ~/.config/histpick
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", appName)
}

// DefaultConfigPath returns the path of the config file when none is given
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// Load loads configuration from the specified file path. A missing file is
// not an error: the defaults are returned.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = DefaultConfigPath()
		if configPath == "" {
			return config, nil // Return defaults if can't determine home dir
		}
	}

	log := logger.GetLogger().Config()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Debug().Str("path", configPath).Msg("No config file, using defaults")
		config.ApplyDefaults()
		return config, nil
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	config.ConfigDir = filepath.Dir(configPath)

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug().Str("path", configPath).Msg("Loaded config file")
	return config, nil
}

// Save saves the configuration to the specified file path
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config as TOML: %w", err)
	}

	return nil
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("history.max_entries must be positive")
	}
	if c.History.TailMultiplier < 1 {
		return fmt.Errorf("history.tail_multiplier must be at least 1")
	}
	if !validDedup[c.History.Dedup] {
		return fmt.Errorf("history.dedup must be one of: first, latest")
	}
	if !validFormats[c.History.Format] {
		return fmt.Errorf("history.format must be one of: auto, line, block")
	}

	if !validPrograms[c.Selector.Program] {
		return fmt.Errorf("selector.program must be one of: rofi, tui")
	}
	if c.Selector.TimeoutSeconds <= 0 {
		return fmt.Errorf("selector.timeout_seconds must be positive")
	}
	if c.Selector.MaxWidth <= 0 {
		return fmt.Errorf("selector.max_width must be positive")
	}

	if c.Theme.Width <= 0 || c.Theme.Width > 100 {
		return fmt.Errorf("theme.width must be between 1 and 100 (percent)")
	}
	if c.Theme.Lines <= 0 {
		return fmt.Errorf("theme.lines must be positive")
	}

	if !validActions[c.Actions.Default] {
		return fmt.Errorf("actions.default must be one of: type, copy, run, edit, print")
	}
	if !validAfterActions[c.Actions.AfterEdit] {
		return fmt.Errorf("actions.after_edit must be one of: type, copy, run, print")
	}

	if c.Desktop.EditorTimeoutSeconds <= 0 {
		return fmt.Errorf("desktop.editor_timeout_seconds must be positive")
	}
	if c.Desktop.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("desktop.command_timeout_seconds must be positive")
	}

	return nil
}

// ApplyDefaults fills in zero values left by a partial config file
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	// History defaults
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = defaults.History.MaxEntries
	}
	if c.History.TailMultiplier == 0 {
		c.History.TailMultiplier = defaults.History.TailMultiplier
	}
	if c.History.Dedup == "" {
		c.History.Dedup = defaults.History.Dedup
	}
	if c.History.Format == "" {
		c.History.Format = defaults.History.Format
	}
	if len(c.History.Candidates) == 0 {
		c.History.Candidates = defaults.History.Candidates
	}

	// Selector defaults
	if c.Selector.Program == "" {
		c.Selector.Program = defaults.Selector.Program
	}
	if c.Selector.Prompt == "" {
		c.Selector.Prompt = defaults.Selector.Prompt
	}
	if c.Selector.TimeoutSeconds == 0 {
		c.Selector.TimeoutSeconds = defaults.Selector.TimeoutSeconds
	}
	if c.Selector.TimestampFormat == "" {
		c.Selector.TimestampFormat = defaults.Selector.TimestampFormat
	}
	if c.Selector.MaxWidth == 0 {
		c.Selector.MaxWidth = defaults.Selector.MaxWidth
	}

	// Theme defaults
	if c.Theme.Font == "" {
		c.Theme.Font = defaults.Theme.Font
	}
	if c.Theme.Width == 0 {
		c.Theme.Width = defaults.Theme.Width
	}
	if c.Theme.Lines == 0 {
		c.Theme.Lines = defaults.Theme.Lines
	}
	if c.Theme.Background == "" {
		c.Theme.Background = defaults.Theme.Background
	}
	if c.Theme.Foreground == "" {
		c.Theme.Foreground = defaults.Theme.Foreground
	}
	if c.Theme.Accent == "" {
		c.Theme.Accent = defaults.Theme.Accent
	}
	if c.Theme.Urgent == "" {
		c.Theme.Urgent = defaults.Theme.Urgent
	}
	if c.Theme.Border == "" {
		c.Theme.Border = defaults.Theme.Border
	}

	// Action defaults
	if c.Actions.Default == "" {
		c.Actions.Default = defaults.Actions.Default
	}
	if c.Actions.AfterEdit == "" {
		c.Actions.AfterEdit = defaults.Actions.AfterEdit
	}

	// Desktop defaults
	if len(c.Desktop.TerminalCandidates) == 0 {
		c.Desktop.TerminalCandidates = defaults.Desktop.TerminalCandidates
	}
	if len(c.Desktop.ClipboardTools) == 0 {
		c.Desktop.ClipboardTools = defaults.Desktop.ClipboardTools
	}
	if len(c.Desktop.TypeTools) == 0 {
		c.Desktop.TypeTools = defaults.Desktop.TypeTools
	}
	if c.Desktop.Editor == "" {
		c.Desktop.Editor = defaults.Desktop.Editor
	}
	if c.Desktop.EditorTimeoutSeconds == 0 {
		c.Desktop.EditorTimeoutSeconds = defaults.Desktop.EditorTimeoutSeconds
	}
	if c.Desktop.CommandTimeoutSeconds == 0 {
		c.Desktop.CommandTimeoutSeconds = defaults.Desktop.CommandTimeoutSeconds
	}

	// Output defaults
	if c.Output.Colors.Success == "" {
		c.Output.Colors.Success = defaults.Output.Colors.Success
	}
	if c.Output.Colors.Error == "" {
		c.Output.Colors.Error = defaults.Output.Colors.Error
	}
	if c.Output.Colors.Warning == "" {
		c.Output.Colors.Warning = defaults.Output.Colors.Warning
	}
	if c.Output.Colors.Info == "" {
		c.Output.Colors.Info = defaults.Output.Colors.Info
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Output == "" {
		c.Log.Output = defaults.Log.Output
	}
}

// GetSelectorTimeout returns the selector timeout as a time.Duration
func (c *Config) GetSelectorTimeout() time.Duration {
	return time.Duration(c.Selector.TimeoutSeconds) * time.Second
}

// GetEditorTimeout returns the editor timeout as a time.Duration
func (c *Config) GetEditorTimeout() time.Duration {
	return time.Duration(c.Desktop.EditorTimeoutSeconds) * time.Second
}

// GetCommandTimeout returns the timeout for non-interactive tools as a time.Duration
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Desktop.CommandTimeoutSeconds) * time.Second
}
