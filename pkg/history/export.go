package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportFormat represents the export format type
type ExportFormat string

const (
	ExportPlain ExportFormat = "plain"
	ExportJSON  ExportFormat = "json"
	ExportYAML  ExportFormat = "yaml"
	ExportZsh   ExportFormat = "zsh"
	ExportBash  ExportFormat = "bash"
	ExportCSV   ExportFormat = "csv"
)

// ExportRecord is the serialized form of an entry
type ExportRecord struct {
	Line      int        `json:"line" yaml:"line"`
	Command   string     `json:"command" yaml:"command"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Export writes entries in the given format and returns the bytes written.
// Entries are written in the order given.
func Export(writer io.Writer, entries []*Entry, format ExportFormat) (int64, error) {
	cw := &countingWriter{w: writer}

	var err error
	switch format {
	case ExportPlain:
		err = exportToPlain(cw, entries)
	case ExportJSON:
		err = exportToJSON(cw, entries)
	case ExportYAML:
		err = exportToYAML(cw, entries)
	case ExportZsh:
		err = exportToZsh(cw, entries)
	case ExportBash:
		err = exportToBash(cw, entries)
	case ExportCSV:
		err = exportToCSV(cw, entries)
	default:
		return 0, fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return cw.n, fmt.Errorf("failed to export to %s format: %w", format, err)
	}

	return cw.n, nil
}

func toRecords(entries []*Entry) []ExportRecord {
	records := make([]ExportRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, ExportRecord{
			Line:      entry.LineNumber,
			Command:   entry.Command,
			Timestamp: entry.Timestamp,
		})
	}
	return records
}

func exportToJSON(writer io.Writer, entries []*Entry) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toRecords(entries))
}

func exportToYAML(writer io.Writer, entries []*Entry) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(toRecords(entries)); err != nil {
		return err
	}
	return encoder.Close()
}

func exportToPlain(writer io.Writer, entries []*Entry) error {
	bufWriter := bufio.NewWriter(writer)
	for _, entry := range entries {
		if _, err := bufWriter.WriteString(entry.Command + "\n"); err != nil {
			return err
		}
	}
	return bufWriter.Flush()
}

// exportToZsh writes extended history lines; multi-line commands keep the
// backslash continuation zsh uses
func exportToZsh(writer io.Writer, entries []*Entry) error {
	bufWriter := bufio.NewWriter(writer)
	for _, entry := range entries {
		var ts int64
		if entry.Timestamp != nil {
			ts = entry.Timestamp.Unix()
		}
		command := strings.ReplaceAll(entry.Command, "\n", "\\\n")
		if _, err := fmt.Fprintf(bufWriter, ": %d:0;%s\n", ts, command); err != nil {
			return err
		}
	}
	return bufWriter.Flush()
}

func exportToBash(writer io.Writer, entries []*Entry) error {
	bufWriter := bufio.NewWriter(writer)
	for _, entry := range entries {
		if entry.Timestamp != nil {
			if _, err := fmt.Fprintf(bufWriter, "#%d\n", entry.Timestamp.Unix()); err != nil {
				return err
			}
		}
		if _, err := bufWriter.WriteString(entry.Command + "\n"); err != nil {
			return err
		}
	}
	return bufWriter.Flush()
}

func exportToCSV(writer io.Writer, entries []*Entry) error {
	bufWriter := bufio.NewWriter(writer)
	if _, err := bufWriter.WriteString("line,timestamp,command\n"); err != nil {
		return err
	}
	for _, entry := range entries {
		timestamp := ""
		if entry.Timestamp != nil {
			timestamp = entry.Timestamp.Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(bufWriter, "%d,%s,%s\n", entry.LineNumber, timestamp, escapeCSVField(entry.Command)); err != nil {
			return err
		}
	}
	return bufWriter.Flush()
}

// escapeCSVField escapes a field for CSV format
func escapeCSVField(field string) string {
	if strings.ContainsAny(field, ",\n\r\"") {
		field = strings.ReplaceAll(field, "\"", "\"\"")
		return "\"" + field + "\""
	}
	return field
}

// GetSupportedFormats returns a list of supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{
		ExportPlain,
		ExportJSON,
		ExportYAML,
		ExportZsh,
		ExportBash,
		ExportCSV,
	}
}

// ValidateExportFormat checks if the given format is supported
func ValidateExportFormat(format string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(format))

	for _, supported := range GetSupportedFormats() {
		if f == supported {
			return f, nil
		}
	}

	return "", fmt.Errorf("unsupported export format: %s. Supported formats: %v", format, GetSupportedFormats())
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
