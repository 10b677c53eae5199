package launcher

import (
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"github.com/NeverVane/histpick/pkg/history"
)

// entrySource adapts entries for fuzzy matching on the command text
type entrySource []*history.Entry

func (s entrySource) String(i int) string { return s[i].Command }
func (s entrySource) Len() int            { return len(s) }

// RankEntries returns the entries matching query, best match first.
// An empty query returns entries unchanged.
func RankEntries(entries []*history.Entry, query string) []*history.Entry {
	if query == "" {
		return entries
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	return lo.Map(matches, func(m fuzzy.Match, _ int) *history.Entry {
		return entries[m.Index]
	})
}
