package history

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	blockCommandMarker = "- cmd:"
	blockWhenField     = "when:"

	// zsh stores bytes >= 0x83 as a meta marker followed by the byte xor 0x20
	zshMeta = 0x83
)

// extendedPrefix matches ": <epoch>:<duration>;<command>"
var extendedPrefix = regexp.MustCompile(`(?s)^:\s*(\d+):(\d*);(.*)$`)

// bashTimestamp matches the "#<epoch>" comment bash writes when HISTTIMEFORMAT is set
var bashTimestamp = regexp.MustCompile(`^#(\d+)$`)

// rawRecord is a parsed record before deduplication and numbering
type rawRecord struct {
	command   string
	timestamp *time.Time
}

// ParseLine parses a single-line record. Lines without the timestamp prefix
// are returned as bare commands with a nil timestamp.
func ParseLine(line string) (string, *time.Time) {
	m := extendedPrefix.FindStringSubmatch(line)
	if m == nil {
		return line, nil
	}
	return m[3], parseEpoch(m[1])
}

// parseLineRecords walks single-line records oldest to newest
func parseLineRecords(lines []string) []rawRecord {
	records := make([]rawRecord, 0, len(lines))
	var pending *time.Time

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// zsh escapes embedded newlines with a trailing backslash
		for strings.HasSuffix(line, `\`) && i+1 < len(lines) {
			line = line[:len(line)-1] + "\n" + lines[i+1]
			i++
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := bashTimestamp.FindStringSubmatch(line); m != nil {
			pending = parseEpoch(m[1])
			continue
		}

		command, ts := ParseLine(line)
		if ts == nil {
			ts = pending
		}
		pending = nil

		if strings.TrimSpace(command) == "" {
			continue
		}
		records = append(records, rawRecord{command: command, timestamp: ts})
	}

	return records
}

// ParseBlocks parses fish-style records:
//
//	- cmd: git status
//	  when: 1700000000
//	  paths:
//	    - ./src
//
// Lines before the first command marker belong to a record cut off by the
// tail window and are skipped.
func ParseBlocks(lines []string) []rawRecord {
	var records []rawRecord
	current := -1

	for _, line := range lines {
		if strings.HasPrefix(line, blockCommandMarker) {
			command := unescapeFish(strings.TrimPrefix(strings.TrimPrefix(line, blockCommandMarker), " "))
			if strings.TrimSpace(command) == "" {
				current = -1
				continue
			}
			records = append(records, rawRecord{command: command})
			current = len(records) - 1
			continue
		}

		if current < 0 {
			continue
		}

		field := strings.TrimSpace(line)
		if strings.HasPrefix(field, blockWhenField) {
			records[current].timestamp = parseEpoch(strings.TrimSpace(strings.TrimPrefix(field, blockWhenField)))
		}
	}

	return records
}

// parseEpoch returns nil for anything that is not a valid epoch in seconds
func parseEpoch(value string) *time.Time {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil || secs < 0 {
		return nil
	}
	ts := time.Unix(secs, 0).UTC()
	return &ts
}

func unescapeFish(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unmetafy decodes zsh's metafied byte encoding
func unmetafy(line []byte) []byte {
	idx := -1
	for i, c := range line {
		if c == zshMeta {
			idx = i
			break
		}
	}
	if idx < 0 {
		return line
	}

	out := make([]byte, 0, len(line))
	out = append(out, line[:idx]...)
	for i := idx; i < len(line); i++ {
		if line[i] == zshMeta && i+1 < len(line) {
			i++
			out = append(out, line[i]^0x20)
			continue
		}
		out = append(out, line[i])
	}
	return out
}
