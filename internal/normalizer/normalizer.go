// Package normalizer canonicalises entity names and performs intra-document
// fuzzy merging of tagger output.
package normalizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// DefaultSimilarityThreshold is the Ratcliff/Obershelp ratio at or above
// which two canonical names of the same kind are considered the same entity.
const DefaultSimilarityThreshold = 0.85

var titleCaser = cases.Title(language.Und)

// Canonicalise normalises a name deterministically: NFC unicode compose,
// trim, collapse internal whitespace runs to a single space, title-case.
// Empty input yields empty output.
func Canonicalise(name string) string {
	if name == "" {
		return ""
	}
	composed := norm.NFC.String(name)
	collapsed := strings.Join(strings.Fields(composed), " ")
	if collapsed == "" {
		return ""
	}
	return titleCaser.String(collapsed)
}

// Resolver merges tagger output within a single document.
type Resolver struct {
	threshold float64
}

// NewResolver creates a resolver using the given similarity threshold. A
// non-positive threshold falls back to DefaultSimilarityThreshold.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{threshold: threshold}
}

// Resolve merges extracted entities of the same kind whose canonical names
// are similar enough, in a single left-to-right pass. The longer canonical
// name wins when two candidates merge.
func (r *Resolver) Resolve(extracted []domain.ExtractedEntity) []domain.NormalisedEntity {
	var result []domain.NormalisedEntity

	for _, e := range extracted {
		canonical := Canonicalise(e.Name)
		if canonical == "" {
			continue
		}

		idx := r.findMatch(result, canonical, e.Kind)
		if idx < 0 {
			result = append(result, domain.NormalisedEntity{
				Name:        canonical,
				Kind:        e.Kind,
				Occurrences: 1,
				Spans:       []domain.Span{e.Span},
			})
			continue
		}

		candidate := &result[idx]
		candidate.Occurrences++
		candidate.Spans = append(candidate.Spans, e.Span)
		if len(canonical) > len(candidate.Name) {
			candidate.Name = canonical
		}
	}

	return result
}

func (r *Resolver) findMatch(existing []domain.NormalisedEntity, canonical string, kind domain.EntityKind) int {
	for i, candidate := range existing {
		if candidate.Kind != kind {
			continue
		}
		if Similarity(candidate.Name, canonical) >= r.threshold {
			return i
		}
	}
	return -1
}

// Similarity computes the Ratcliff/Obershelp similarity ratio between two
// strings, comparing case-insensitively: 2*M / T, where M is the total
// length of matching, non-overlapping substrings found recursively (the
// longest common substring, then the same procedure applied to the
// left and right remainders), and T is the combined length of both
// strings. Ranges from 0 to 1; either string empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	matches := matchLength(ra, rb)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return 2 * float64(matches) / float64(total)
}

// matchLength computes Ratcliff/Obershelp's M: the length of the longest
// common substring, plus the recursive match length of the substrings to
// its left and right in both inputs.
func matchLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aStart, bStart, length := longestCommonSubstring(a, b)
	if length == 0 {
		return 0
	}
	left := matchLength(a[:aStart], b[:bStart])
	right := matchLength(a[aStart+length:], b[bStart+length:])
	return left + length + right
}

// longestCommonSubstring returns the start index in a, start index in b,
// and length of the longest common contiguous run between a and b. Ties
// favor the earliest match in a, then in b.
func longestCommonSubstring(a, b []rune) (int, int, int) {
	m, n := len(a), len(b)
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	bestLen, bestAEnd, bestBEnd := 0, 0, 0
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestAEnd = i
					bestBEnd = j
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	if bestLen == 0 {
		return 0, 0, 0
	}
	return bestAEnd - bestLen, bestBEnd - bestLen, bestLen
}
