// Package highlight turns the oracle's claimed edits into validated, positioned
// spans over the rewritten text.
package highlight

import (
	"sort"
	"strings"
	"unicode/utf8"

	"rephrasego/internal/models"
)

// Claim is one edit reported by the oracle. ApproxStart is a rune offset into
// the rewritten text and is only used as a search hint.
type Claim struct {
	OriginalPhrase  string
	RewrittenPhrase string
	Kind            models.HighlightKind
	ApproxStart     int
}

// Reconstruct locates every claim in rewritten, drops the ones that do not
// match real text, and coalesces overlapping or touching spans of the same
// kind. The result is sorted by Start and every span satisfies
// 0 <= Start < End <= rune length of rewritten.
func Reconstruct(rewritten string, claims []Claim) []models.Highlight {
	candidates := make([]models.Highlight, 0, len(claims))
	for _, claim := range claims {
		if h, ok := locate(rewritten, claim); ok {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return []models.Highlight{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start < candidates[j].Start
	})

	merged := make([]models.Highlight, 0, len(candidates))
	current := candidates[0]
	for _, next := range candidates[1:] {
		if next.Start <= current.End && next.Kind == current.Kind {
			if next.End > current.End {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// locate finds claim.RewrittenPhrase at or after the hinted rune offset.
func locate(rewritten string, claim Claim) (models.Highlight, bool) {
	if claim.RewrittenPhrase == "" || !claim.Kind.Valid() {
		return models.Highlight{}, false
	}
	hint := claim.ApproxStart
	if hint < 0 {
		hint = 0
	}
	from, ok := byteOffset(rewritten, hint)
	if !ok {
		return models.Highlight{}, false
	}
	idx := strings.Index(rewritten[from:], claim.RewrittenPhrase)
	if idx < 0 {
		return models.Highlight{}, false
	}
	startByte := from + idx
	start := hint + utf8.RuneCountInString(rewritten[from:startByte])
	end := start + utf8.RuneCountInString(claim.RewrittenPhrase)
	return models.Highlight{Start: start, End: end, Kind: claim.Kind}, true
}

// byteOffset converts a rune offset into a byte offset. An offset equal to the
// rune length maps to len(s); anything past it is out of range.
func byteOffset(s string, runes int) (int, bool) {
	if runes == 0 {
		return 0, true
	}
	count := 0
	for i := range s {
		if count == runes {
			return i, true
		}
		count++
	}
	if count == runes {
		return len(s), true
	}
	return 0, false
}
