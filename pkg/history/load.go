package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultMaxEntries     = 1000
	DefaultTailMultiplier = 3

	tailChunkSize = 64 * 1024
)

// LoadOptions controls how much of the history file is read and how it is reduced
type LoadOptions struct {
	// MaxEntries caps the number of entries returned (most recent kept)
	MaxEntries int

	// TailMultiplier sizes the raw tail window as MaxEntries * TailMultiplier lines
	TailMultiplier int

	Format Format
	Dedup  DedupPolicy
}

// DefaultLoadOptions returns the options used when none are supplied
func DefaultLoadOptions() *LoadOptions {
	return &LoadOptions{
		MaxEntries:     DefaultMaxEntries,
		TailMultiplier: DefaultTailMultiplier,
		Format:         FormatAuto,
		Dedup:          KeepFirst,
	}
}

// LoadResult contains the entries and counters of a load operation
type LoadResult struct {
	Entries          []*Entry
	Format           Format
	LinesRead        int
	ScannedRecords   int
	DuplicateRecords int
}

// Load reads the tail of a history file and returns deduplicated entries,
// most recent first. Line numbers follow the original chronological order.
func Load(path string, opts *LoadOptions) (*LoadResult, error) {
	if opts == nil {
		opts = DefaultLoadOptions()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.TailMultiplier <= 0 {
		opts.TailMultiplier = DefaultTailMultiplier
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, wrapOpenError(path, err)
		}
		format = detected
	}

	window := windowLines(opts.MaxEntries, opts.TailMultiplier)
	readLines := window
	if format == FormatLine && window < math.MaxInt {
		// One extra line tells whether the window opens mid-command
		readLines++
	}

	rawLines, err := readTail(path, readLines)
	if err != nil {
		return nil, wrapOpenError(path, err)
	}
	if len(rawLines) > window {
		rawLines = skipContinuation(rawLines[1:], rawLines[0])
	}

	metafied := format == FormatLine && isZshHistory(path, rawLines)
	lines := make([]string, len(rawLines))
	for i, raw := range rawLines {
		if metafied {
			raw = unmetafy(raw)
		}
		lines[i] = strings.TrimSuffix(string(raw), "\r")
	}

	var records []rawRecord
	switch format {
	case FormatBlock:
		records = ParseBlocks(lines)
	case FormatLine:
		records = parseLineRecords(lines)
	default:
		return nil, fmt.Errorf("unsupported history format: %s", format)
	}

	unique := dedupe(records, opts.Dedup)

	entries := make([]*Entry, len(unique))
	for i, rec := range unique {
		entries[i] = &Entry{
			Command:    rec.command,
			Timestamp:  rec.timestamp,
			LineNumber: i + 1,
		}
	}
	entries = lo.Reverse(entries)

	if len(entries) > opts.MaxEntries {
		entries = entries[:opts.MaxEntries]
	}

	return &LoadResult{
		Entries:          entries,
		Format:           format,
		LinesRead:        len(lines),
		ScannedRecords:   len(records),
		DuplicateRecords: len(records) - len(unique),
	}, nil
}

// windowLines is the tail window size, saturated instead of overflowing
func windowLines(maxEntries, multiplier int) int {
	if maxEntries > math.MaxInt/multiplier {
		return math.MaxInt
	}
	return maxEntries * multiplier
}

// skipContinuation drops the leading lines of a backslash-continued command
// whose start, ending in before, fell outside the window
func skipContinuation(lines [][]byte, before []byte) [][]byte {
	if !bytes.HasSuffix(bytes.TrimSuffix(before, []byte{'\r'}), []byte{'\\'}) {
		return lines
	}
	for i, line := range lines {
		if !bytes.HasSuffix(bytes.TrimSuffix(line, []byte{'\r'}), []byte{'\\'}) {
			return lines[i+1:]
		}
	}
	return nil
}

// dedupe removes repeated commands by exact text and returns the survivors in
// chronological order
func dedupe(records []rawRecord, policy DedupPolicy) []rawRecord {
	if policy == KeepLatest {
		reversed := lo.Reverse(append([]rawRecord(nil), records...))
		return lo.Reverse(lo.UniqBy(reversed, func(r rawRecord) string { return r.command }))
	}
	return lo.UniqBy(records, func(r rawRecord) string { return r.command })
}

// readTail returns at most maxLines complete lines from the end of the file.
// The file is read backwards in chunks so large histories are never fully loaded.
func readTail(path string, maxLines int) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	offset := info.Size()
	var buf []byte
	newlines := 0

	for offset > 0 && newlines <= maxLines {
		chunk := int64(tailChunkSize)
		if offset < chunk {
			chunk = offset
		}
		offset -= chunk

		part := make([]byte, chunk)
		if _, err := file.ReadAt(part, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading history file: %w", err)
		}
		newlines += bytes.Count(part, []byte{'\n'})
		buf = append(part, buf...)
	}

	if len(buf) == 0 {
		return nil, nil
	}

	lines := bytes.Split(buf, []byte{'\n'})
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	// The first line is partial unless we reached the start of the file
	if offset > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	return lines, nil
}

func isZshHistory(path string, lines [][]byte) bool {
	base := filepath.Base(path)
	if strings.Contains(base, "zsh") || base == ".zhistory" {
		return true
	}
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		return extendedPrefix.Match(line)
	}
	return false
}

func wrapOpenError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrHistoryNotFound, path)
	}
	return fmt.Errorf("failed to read history file %s: %w", path, err)
}
