package history

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistory(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func commands(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Command
	}
	return out
}

func TestLoadZshHistory(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("extended records", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "zsh_history", `: 1700000000:0;ls -la
: 1700000060:5;cd /tmp && ls
: 1700000120:2;grep pattern file.txt
`)

		result, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, FormatLine, result.Format)
		require.Len(t, result.Entries, 3)

		assert.Equal(t, []string{"grep pattern file.txt", "cd /tmp && ls", "ls -la"}, commands(result.Entries))

		last := result.Entries[2]
		require.NotNil(t, last.Timestamp)
		assert.True(t, last.Timestamp.Equal(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)))
		assert.Equal(t, 1, last.LineNumber)
	})

	t.Run("multi-line command", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "zsh_multiline", ": 1700000000:0;for f in *; do\\\n  echo $f\\\ndone\n: 1700000001:0;pwd\n")

		result, err := Load(path, nil)
		require.NoError(t, err)
		require.Len(t, result.Entries, 2)
		assert.Equal(t, "pwd", result.Entries[0].Command)
		assert.Equal(t, "for f in *; do\n  echo $f\ndone", result.Entries[1].Command)
	})

	t.Run("metafied bytes", func(t *testing.T) {
		// "echo σ" where σ is 0xCF 0x83, stored by zsh as 0xCF 0x83 0xA3
		raw := []byte(": 1700000000:0;echo \xcf\x83\xa3\n")
		path := filepath.Join(tmpDir, "zsh_meta")
		require.NoError(t, os.WriteFile(path, raw, 0600))

		result, err := Load(path, nil)
		require.NoError(t, err)
		require.Len(t, result.Entries, 1)
		assert.Equal(t, "echo σ", result.Entries[0].Command)
	})
}

func TestLoadBashHistory(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("plain and timestamped lines", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "bash_history", `#1700000000
ls -la
cd /tmp
#1700000100
grep pattern file.txt
`)

		result, err := Load(path, nil)
		require.NoError(t, err)
		require.Len(t, result.Entries, 3)

		assert.Equal(t, "grep pattern file.txt", result.Entries[0].Command)
		require.NotNil(t, result.Entries[0].Timestamp)
		assert.Equal(t, int64(1700000100), result.Entries[0].Timestamp.Unix())

		assert.Equal(t, "cd /tmp", result.Entries[1].Command)
		assert.Nil(t, result.Entries[1].Timestamp)

		assert.Equal(t, "ls -la", result.Entries[2].Command)
		require.NotNil(t, result.Entries[2].Timestamp)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "empty_history", "")

		result, err := Load(path, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Entries)
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := Load(filepath.Join(tmpDir, "missing"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHistoryNotFound)
	})

	t.Run("crlf line endings", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "crlf_history", "ls\r\npwd\r\n")

		result, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"pwd", "ls"}, commands(result.Entries))
	})
}

func TestLoadFishHistory(t *testing.T) {
	tmpDir := t.TempDir()

	path := writeHistory(t, tmpDir, "fish_history", `- cmd: git status
  when: 1700000000
- cmd: echo one\ntwo
  when: 1700000010
  paths:
    - ./one
- cmd: make build
- cmd: ls
  when: not-a-number
`)

	result, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatBlock, result.Format)
	require.Len(t, result.Entries, 4)

	assert.Equal(t, []string{"ls", "make build", "echo one\ntwo", "git status"}, commands(result.Entries))

	assert.Nil(t, result.Entries[0].Timestamp, "malformed when field is ignored")
	assert.Nil(t, result.Entries[1].Timestamp, "missing when field yields nil")
	require.NotNil(t, result.Entries[3].Timestamp)
	assert.Equal(t, int64(1700000000), result.Entries[3].Timestamp.Unix())
}

func TestLoadDeduplication(t *testing.T) {
	tmpDir := t.TempDir()
	content := `echo hi
ls
echo hi
pwd
ls
echo hi
`
	path := writeHistory(t, tmpDir, "dup_history", content)

	t.Run("keep first", func(t *testing.T) {
		result, err := Load(path, &LoadOptions{Dedup: KeepFirst})
		require.NoError(t, err)

		assert.Equal(t, 6, result.ScannedRecords)
		assert.Equal(t, 3, result.DuplicateRecords)
		assert.Equal(t, []string{"pwd", "ls", "echo hi"}, commands(result.Entries))
	})

	t.Run("keep latest", func(t *testing.T) {
		result, err := Load(path, &LoadOptions{Dedup: KeepLatest})
		require.NoError(t, err)

		assert.Equal(t, 3, result.DuplicateRecords)
		assert.Equal(t, []string{"echo hi", "ls", "pwd"}, commands(result.Entries))

		// Numbered after dedup, so still strictly decreasing
		lineNumbers := make([]int, len(result.Entries))
		for i, e := range result.Entries {
			lineNumbers[i] = e.LineNumber
		}
		assert.Equal(t, []int{3, 2, 1}, lineNumbers)
	})

	t.Run("exact match only", func(t *testing.T) {
		path := writeHistory(t, tmpDir, "near_dup_history", "echo hi\necho hi \nEcho hi\n")

		result, err := Load(path, nil)
		require.NoError(t, err)
		assert.Len(t, result.Entries, 3)
	})
}

func TestLoadLineNumbers(t *testing.T) {
	tmpDir := t.TempDir()

	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, ": %d:0;cmd-%d\n", 1700000000+i, i%20)
	}
	path := writeHistory(t, tmpDir, "zsh_history", b.String())

	result, err := Load(path, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, 20)

	for i := 1; i < len(result.Entries); i++ {
		assert.Greater(t, result.Entries[i-1].LineNumber, result.Entries[i].LineNumber)
	}
	assert.Equal(t, 20, result.Entries[0].LineNumber)
	assert.Equal(t, 1, result.Entries[len(result.Entries)-1].LineNumber)
}

func TestLoadTailWindow(t *testing.T) {
	tmpDir := t.TempDir()

	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "command-%03d\n", i)
	}
	path := writeHistory(t, tmpDir, "bash_history", b.String())

	t.Run("old entries are unreachable", func(t *testing.T) {
		result, err := Load(path, &LoadOptions{MaxEntries: 10, TailMultiplier: 2})
		require.NoError(t, err)

		assert.Equal(t, 20, result.LinesRead)
		require.Len(t, result.Entries, 10)
		assert.Equal(t, "command-099", result.Entries[0].Command)
		assert.Equal(t, "command-090", result.Entries[9].Command)
	})

	t.Run("zsh window starting mid-command", func(t *testing.T) {
		zshPath := writeHistory(t, tmpDir, "zsh_history",
			": 1700000000:0;for f in *; do\\\n  echo $f\\\ndone\n: 1700000001:0;pwd\n: 1700000002:0;ls\n")

		// 3 lines: the tail of the loop plus pwd and ls
		result, err := Load(zshPath, &LoadOptions{MaxEntries: 3, TailMultiplier: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"ls", "pwd"}, commands(result.Entries))
		assert.Equal(t, 2, result.LinesRead)
	})

	t.Run("oversized limit saturates", func(t *testing.T) {
		small := writeHistory(t, tmpDir, "small_history", "ls\npwd\n")

		result, err := Load(small, &LoadOptions{MaxEntries: math.MaxInt/2 + 1, TailMultiplier: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"pwd", "ls"}, commands(result.Entries))
		assert.Equal(t, math.MaxInt, windowLines(math.MaxInt/2+1, 3))
		assert.Equal(t, 30, windowLines(10, 3))
	})

	t.Run("fish window starting mid-record", func(t *testing.T) {
		var fb strings.Builder
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&fb, "- cmd: fish-%d\n  when: %d\n", i, 1700000000+i)
		}
		fishPath := writeHistory(t, tmpDir, "fish_history", fb.String())

		// 5 lines: the trailing "when" of fish-7 plus fish-8 and fish-9
		result, err := Load(fishPath, &LoadOptions{MaxEntries: 5, TailMultiplier: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"fish-9", "fish-8"}, commands(result.Entries))
	})
}

func TestReadTailAcrossChunks(t *testing.T) {
	tmpDir := t.TempDir()

	long := strings.Repeat("x", tailChunkSize)
	content := "first\n" + long + "\nsecond\nthird\n"
	path := writeHistory(t, tmpDir, "big_history", content)

	lines, err := readTail(path, 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, long, string(lines[0]))
	assert.Equal(t, "third", string(lines[2]))

	all, err := readTail(path, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "first", string(all[0]))
}

func TestDetectHistoryFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("HISTFILE", "")
	t.Setenv("XDG_DATA_HOME", "")

	t.Run("history file not found", func(t *testing.T) {
		_, err := DetectHistoryFile("/bin/bash", []string{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHistoryNotFound)
	})

	t.Run("detect bash history", func(t *testing.T) {
		bashHistoryPath := writeHistory(t, tmpHome, ".bash_history", "ls\n")

		path, err := DetectHistoryFile("/usr/bin/bash", nil)
		require.NoError(t, err)
		assert.Equal(t, bashHistoryPath, path)
	})

	t.Run("detect zsh history", func(t *testing.T) {
		zshHistoryPath := writeHistory(t, tmpHome, ".zsh_history", ": 1:0;ls\n")

		path, err := DetectHistoryFile("zsh", nil)
		require.NoError(t, err)
		assert.Equal(t, zshHistoryPath, path)
	})

	t.Run("HISTFILE takes precedence", func(t *testing.T) {
		custom := writeHistory(t, tmpHome, "custom_hist", "ls\n")
		t.Setenv("HISTFILE", custom)

		path, err := DetectHistoryFile("zsh", nil)
		require.NoError(t, err)
		assert.Equal(t, custom, path)
	})

	t.Run("detect fish history", func(t *testing.T) {
		dataDir := filepath.Join(tmpHome, "data")
		require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "fish"), 0700))
		t.Setenv("XDG_DATA_HOME", dataDir)
		fishPath := writeHistory(t, filepath.Join(dataDir, "fish"), "fish_history", "- cmd: ls\n")

		path, err := DetectHistoryFile("fish", nil)
		require.NoError(t, err)
		assert.Equal(t, fishPath, path)
	})

	t.Run("plain .history is a default candidate", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		plain := writeHistory(t, home, ".history", "ls\n")

		path, err := DetectHistoryFile("nushell", nil)
		require.NoError(t, err)
		assert.Equal(t, plain, path)
	})

	t.Run("falls back through candidates", func(t *testing.T) {
		fallback := writeHistory(t, tmpHome, ".histfile", "ls\n")

		path, err := DetectHistoryFile("nushell", []string{"~/.does_not_exist", "~/.histfile"})
		require.NoError(t, err)
		assert.Equal(t, fallback, path)
	})
}
