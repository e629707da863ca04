// Package tagger extracts person, organization, and location mentions
// from raw text. The tagger is stateless with respect to its input: it
// holds no cross-document state and is safe for concurrent use.
package tagger

import (
	"strings"
	"unicode"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// Tagger extracts entity mentions from a single document's text. A real
// deployment wires in a statistical NER model behind this interface;
// StaticTagger is the gazetteer-backed reference implementation that
// exercises the rest of the pipeline against a fixed, deterministic
// contract.
type Tagger interface {
	Tag(text string) []domain.ExtractedEntity
}

// Gazetteer is the set of known names per kind, keyed by lowercase name.
type Gazetteer struct {
	People        map[string]struct{}
	Organizations map[string]struct{}
	Locations     map[string]struct{}
}

// DefaultGazetteer returns a small deterministic set of well-known names
// across all three kinds, enough to exercise the pipeline end to end
// without depending on an external NER model.
func DefaultGazetteer() Gazetteer {
	return Gazetteer{
		People: toSet(
			"Angela Merkel", "Emmanuel Macron", "Joe Biden", "Xi Jinping",
			"Vladimir Putin", "Volodymyr Zelensky", "Rishi Sunak",
			"Olaf Scholz", "Kamala Harris", "Mette Frederiksen",
		),
		Organizations: toSet(
			"United Nations", "European Union", "NATO", "World Health Organization",
			"Google", "Microsoft", "Amazon", "Reuters", "Associated Press",
			"International Monetary Fund", "World Bank",
		),
		Locations: toSet(
			"Washington", "Beijing", "Moscow", "Kyiv", "Berlin", "Paris",
			"London", "Copenhagen", "Brussels", "New York", "Ukraine",
			"Russia", "Germany", "France", "Denmark", "China",
		),
	}
}

func toSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// StaticTagger matches gazetteer entries against text by simple substring
// scan, longest-match-first. It is the seam a real NER model would
// replace; its contract (Tag) is what the rest of the pipeline depends on.
type StaticTagger struct {
	entries []gazetteerEntry
}

type gazetteerEntry struct {
	name string
	kind domain.EntityKind
}

// NewStaticTagger builds a tagger over the given gazetteer, sorted so
// that longer names are matched before their substrings (e.g. "New York"
// before a hypothetical "York").
func NewStaticTagger(g Gazetteer) *StaticTagger {
	var entries []gazetteerEntry
	add := func(set map[string]struct{}, kind domain.EntityKind) {
		for name := range set {
			entries = append(entries, gazetteerEntry{name: name, kind: kind})
		}
	}
	add(g.People, domain.KindPerson)
	add(g.Organizations, domain.KindOrganization)
	add(g.Locations, domain.KindLocation)

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j].name) > len(entries[j-1].name); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return &StaticTagger{entries: entries}
}

// Tag scans text for gazetteer matches and returns one ExtractedEntity per
// surviving occurrence, deduplicated by (lowercase(name), kind) with the
// first occurrence's span preserved. Empty or whitespace-only input
// returns an empty list.
func (t *StaticTagger) Tag(text string) []domain.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lower := strings.ToLower(text)
	taken := make([]bool, len(text))
	var found []domain.ExtractedEntity

	for _, entry := range t.entries {
		start := 0
		for {
			idx := strings.Index(lower[start:], entry.name)
			if idx < 0 {
				break
			}
			matchStart := start + idx
			matchEnd := matchStart + len(entry.name)
			start = matchEnd

			if !wordBoundary(text, matchStart, matchEnd) {
				continue
			}
			if rangeTaken(taken, matchStart, matchEnd) {
				continue
			}
			markTaken(taken, matchStart, matchEnd)

			found = append(found, domain.ExtractedEntity{
				Name:       text[matchStart:matchEnd],
				Kind:       entry.kind,
				Span:       domain.Span{Start: matchStart, End: matchEnd},
				Confidence: 1.0,
			})
		}
	}

	return dedupe(found)
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 && isWordRune(rune(text[start-1])) {
		return false
	}
	if end < len(text) && isWordRune(rune(text[end])) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func rangeTaken(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func markTaken(taken []bool, start, end int) {
	for i := start; i < end; i++ {
		taken[i] = true
	}
}

// dedupe collapses entities sharing (lowercase(name), kind) to the first
// occurrence, ordered by span start.
func dedupe(entities []domain.ExtractedEntity) []domain.ExtractedEntity {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Span.Start < entities[j-1].Span.Start; j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}

	seen := make(map[string]struct{}, len(entities))
	result := make([]domain.ExtractedEntity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Name) + "\x00" + string(e.Kind)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, e)
	}
	return result
}
