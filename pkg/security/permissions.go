package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/NeverVane/histpick/internal/logger"
)

// File permission constants
const (
	// Permissions for temporary files (read/write for owner only)
	TempFilePermission = 0600
)

// PermissionError represents a permission-related error
type PermissionError struct {
	Path      string
	Expected  os.FileMode
	Actual    os.FileMode
	Operation string
	Message   string
}

func (pe *PermissionError) Error() string {
	if pe.Expected == 0 && pe.Actual == 0 {
		return fmt.Sprintf("permission error on %s: %s", pe.Path, pe.Message)
	}
	return fmt.Sprintf("permission error on %s: %s (expected %o, got %o)",
		pe.Path, pe.Message, pe.Expected, pe.Actual)
}

// IsPermissionError checks if an error is a permission-related error
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// ValidateReadable checks that a history file can be opened for reading
func ValidateReadable(path string) error {
	if err := validatePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			info, statErr := os.Stat(path)
			pe := &PermissionError{
				Path:      path,
				Operation: "read",
				Message:   "file is not readable by the current user",
			}
			if statErr == nil {
				pe.Actual = info.Mode().Perm()
			}
			return pe
		}
		return err
	}
	return file.Close()
}

// ValidateFilePermissions validates that a file has no more than the expected permissions
func ValidateFilePermissions(path string, expected os.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	actual := info.Mode().Perm()
	if actual&^expected != 0 {
		return &PermissionError{
			Path:      path,
			Expected:  expected,
			Actual:    actual,
			Operation: "validate",
			Message:   "file permissions are too permissive",
		}
	}

	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	return nil
}

// TempFiles creates owner-only temporary files and removes them on Cleanup
type TempFiles struct {
	dir    string
	paths  []string
	logger *logger.Logger
}

// NewTempFiles creates a temp file registry rooted at dir ("" uses the OS default)
func NewTempFiles(dir string) *TempFiles {
	return &TempFiles{
		dir:    dir,
		logger: logger.GetLogger().WithComponent("security"),
	}
}

// Create creates a new temporary file with TempFilePermission. The caller owns
// the returned handle; removal happens in Cleanup.
func (tf *TempFiles) Create(pattern string) (*os.File, error) {
	file, err := os.CreateTemp(tf.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tf.paths = append(tf.paths, file.Name())

	if err := file.Chmod(TempFilePermission); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to set permissions on %s: %w", file.Name(), err)
	}
	if err := ValidateFilePermissions(file.Name(), TempFilePermission); err != nil {
		file.Close()
		return nil, err
	}

	tf.logger.Debug().Str("path", file.Name()).Msg("Created temp file")
	return file, nil
}

// WriteFile creates a temporary file holding data and returns its path
func (tf *TempFiles) WriteFile(pattern string, data []byte) (string, error) {
	file, err := tf.Create(pattern)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return "", fmt.Errorf("failed to write temp file %s: %w", file.Name(), err)
	}
	return file.Name(), nil
}

// Paths returns the files currently tracked
func (tf *TempFiles) Paths() []string {
	return append([]string(nil), tf.paths...)
}

// Cleanup removes every file created through this registry
func (tf *TempFiles) Cleanup() error {
	var errs []error
	for _, path := range tf.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		tf.logger.Debug().Str("path", path).Msg("Removed temp file")
	}
	tf.paths = nil
	return errors.Join(errs...)
}
