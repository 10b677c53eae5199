package selector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/NeverVane/histpick/pkg/history"
)

const (
	newlineMarker = " ⏎ "
	ellipsis      = "…"
)

// RowOptions controls how entries are rendered as selector rows
type RowOptions struct {
	ShowLineNumbers bool
	ShowTimestamps  bool
	TimestampFormat string

	// Relative renders timestamps as "3 hours ago"
	Relative bool

	// MaxWidth truncates the command part; 0 disables truncation
	MaxWidth int

	// Now is used for relative timestamps; nil means time.Now
	Now func() time.Time
}

// FormatRows renders one display line per entry. Rows never contain
// newlines, so a row index always maps back to its entry.
func FormatRows(entries []*history.Entry, opts RowOptions) []string {
	numberWidth := 0
	if opts.ShowLineNumbers {
		for _, e := range entries {
			if w := len(strconv.Itoa(e.LineNumber)); w > numberWidth {
				numberWidth = w
			}
		}
	}

	var stamps []string
	stampWidth := 0
	if opts.ShowTimestamps {
		stamps = make([]string, len(entries))
		for i, e := range entries {
			stamps[i] = FormatTimestamp(e, opts)
			if w := len([]rune(stamps[i])); w > stampWidth {
				stampWidth = w
			}
		}
	}

	rows := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		if opts.ShowLineNumbers {
			fmt.Fprintf(&b, "%*d  ", numberWidth, e.LineNumber)
		}
		if opts.ShowTimestamps {
			b.WriteString(stamps[i])
			b.WriteString(strings.Repeat(" ", stampWidth-len([]rune(stamps[i]))))
			b.WriteString("  ")
		}
		b.WriteString(DisplayCommand(e.Command, opts.MaxWidth))
		rows[i] = b.String()
	}

	return rows
}

// FormatTimestamp renders an entry's timestamp, or "" when it has none
func FormatTimestamp(e *history.Entry, opts RowOptions) string {
	if e.Timestamp == nil {
		return ""
	}
	if opts.Relative {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		return humanize.RelTime(*e.Timestamp, now(), "ago", "from now")
	}

	layout := opts.TimestampFormat
	if layout == "" {
		layout = "2006-01-02 15:04"
	}
	return e.Timestamp.Local().Format(layout)
}

// DisplayCommand flattens a command onto one line and truncates it to maxWidth cells
func DisplayCommand(command string, maxWidth int) string {
	flat := strings.ReplaceAll(command, "\r", "")
	flat = strings.ReplaceAll(flat, "\n", newlineMarker)
	flat = strings.ReplaceAll(flat, "\t", " ")
	if maxWidth <= 0 {
		return flat
	}
	return truncate.StringWithTail(flat, uint(maxWidth), ellipsis)
}
