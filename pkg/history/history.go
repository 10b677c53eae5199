package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrHistoryNotFound is returned when no history file could be located or opened
var ErrHistoryNotFound = errors.New("history file not found")

// Entry is a single deduplicated command from the history file
type Entry struct {
	Command    string
	Timestamp  *time.Time
	LineNumber int
}

// HasTimestamp reports whether the record carried a usable timestamp
func (e *Entry) HasTimestamp() bool {
	return e.Timestamp != nil
}

// Format identifies the on-disk layout of a history file
type Format string

const (
	FormatAuto  Format = "auto"
	FormatLine  Format = "line"
	FormatBlock Format = "block"
)

// ParseFormat validates a format name coming from flags or config
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatLine, FormatBlock:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported history format: %s (supported: auto, line, block)", name)
	}
}

// DedupPolicy decides which occurrence of a repeated command survives
type DedupPolicy string

const (
	// KeepFirst keeps the oldest occurrence inside the tail window
	KeepFirst DedupPolicy = "first"
	// KeepLatest keeps the most recent occurrence
	KeepLatest DedupPolicy = "latest"
)

// ParseDedupPolicy validates a dedup policy name
func ParseDedupPolicy(name string) (DedupPolicy, error) {
	switch p := DedupPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return KeepFirst, nil
	case KeepFirst, KeepLatest:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported dedup policy: %s (supported: first, latest)", name)
	}
}

// DefaultCandidates is the fixed fallback list tried when the shell's own file is missing
var DefaultCandidates = []string{
	"~/.zsh_history",
	"~/.bash_history",
	"~/.local/share/fish/fish_history",
	"~/.zhistory",
	"~/.histfile",
	"~/.history",
}

// DetectHistoryFile picks the history file for the given shell, which may be a
// full path as found in $SHELL. When the shell's primary file does not exist the
// candidates are tried in order.
func DetectHistoryFile(shell string, candidates []string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	for _, candidate := range primaryCandidates(filepath.Base(shell), homeDir) {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if candidates == nil {
		candidates = DefaultCandidates
	}
	for _, candidate := range candidates {
		path := ExpandHome(candidate, homeDir)
		if fileExists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w for shell %q", ErrHistoryNotFound, filepath.Base(shell))
}

func primaryCandidates(shell, homeDir string) []string {
	switch strings.ToLower(shell) {
	case "fish":
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		return []string{filepath.Join(dataDir, "fish", "fish_history")}

	case "zsh":
		return withHistfile(
			filepath.Join(homeDir, ".zsh_history"),
			filepath.Join(homeDir, ".zhistory"),
		)

	case "bash":
		return withHistfile(filepath.Join(homeDir, ".bash_history"))

	default:
		return withHistfile()
	}
}

// withHistfile puts $HISTFILE in front when the launching shell exported it
func withHistfile(paths ...string) []string {
	if histfile := os.Getenv("HISTFILE"); histfile != "" {
		return append([]string{histfile}, paths...)
	}
	return paths
}

// ExpandHome replaces a leading ~ with the home directory
func ExpandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DetectFormat guesses the record layout from the file name and its first record
func DetectFormat(path string) (Format, error) {
	if filepath.Base(path) == "fish_history" {
		return FormatBlock, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, blockCommandMarker) {
			return FormatBlock, nil
		}
		return FormatLine, nil
	}

	// An empty file parses the same either way
	return FormatLine, scanner.Err()
}
