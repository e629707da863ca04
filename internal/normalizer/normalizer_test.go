package normalizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/osint-ingest/internal/domain"
	"github.com/couchcryptid/osint-ingest/internal/normalizer"
)

func TestCanonicalise(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"  joe   biden  ":       "Joe Biden",
		"joe biden":        "Joe Biden",
		"ANGELA MERKEL":         "Angela Merkel",
		"new\t\nyork   city":    "New York City",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizer.Canonicalise(in), "input %q", in)
	}
}

func TestSimilarity_IdenticalStringsIsOne(t *testing.T) {
	assert.Equal(t, 1.0, normalizer.Similarity("Joe Biden", "Joe Biden"))
}

func TestSimilarity_EmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0.0, normalizer.Similarity("", "Joe Biden"))
	assert.Equal(t, 0.0, normalizer.Similarity("Joe Biden", ""))
}

func TestSimilarity_SimilarNamesScoreHigh(t *testing.T) {
	ratio := normalizer.Similarity("Joe Biden", "Joseph Biden")
	assert.Greater(t, ratio, 0.7)
}

func TestSimilarity_UnrelatedNamesScoreLow(t *testing.T) {
	// Matching blocks "j", "i", "n": 2*3 / (9+10).
	ratio := normalizer.Similarity("Joe Biden", "Xi Jinping")
	assert.Less(t, ratio, 0.35)
}

func TestResolver_Resolve_MergesSimilarNamesWithinThreshold(t *testing.T) {
	r := normalizer.NewResolver(0.85)
	extracted := []domain.ExtractedEntity{
		{Name: "Joe Biden", Kind: domain.KindPerson, Span: domain.Span{Start: 0, End: 9}},
		{Name: "Joe  Biden", Kind: domain.KindPerson, Span: domain.Span{Start: 20, End: 30}},
	}

	result := r.Resolve(extracted)
	if assert.Len(t, result, 1) {
		assert.Equal(t, "Joe Biden", result[0].Name)
		assert.Equal(t, 2, result[0].Occurrences)
		assert.Len(t, result[0].Spans, 2)
	}
}

func TestResolver_Resolve_LongerNameWinsOnMerge(t *testing.T) {
	r := normalizer.NewResolver(0.5)
	extracted := []domain.ExtractedEntity{
		{Name: "Biden", Kind: domain.KindPerson, Span: domain.Span{Start: 0, End: 5}},
		{Name: "Joe Biden", Kind: domain.KindPerson, Span: domain.Span{Start: 20, End: 29}},
	}

	result := r.Resolve(extracted)
	if assert.Len(t, result, 1) {
		assert.Equal(t, "Joe Biden", result[0].Name)
		assert.Equal(t, 2, result[0].Occurrences)
	}
}

func TestResolver_Resolve_DifferentKindsNeverMerge(t *testing.T) {
	r := normalizer.NewResolver(0.85)
	extracted := []domain.ExtractedEntity{
		{Name: "Washington", Kind: domain.KindPerson, Span: domain.Span{Start: 0, End: 10}},
		{Name: "Washington", Kind: domain.KindLocation, Span: domain.Span{Start: 20, End: 30}},
	}

	result := r.Resolve(extracted)
	assert.Len(t, result, 2)
}

func TestResolver_Resolve_DissimilarNamesStaySeparate(t *testing.T) {
	r := normalizer.NewResolver(0.85)
	extracted := []domain.ExtractedEntity{
		{Name: "Joe Biden", Kind: domain.KindPerson, Span: domain.Span{Start: 0, End: 9}},
		{Name: "Xi Jinping", Kind: domain.KindPerson, Span: domain.Span{Start: 20, End: 30}},
	}

	result := r.Resolve(extracted)
	assert.Len(t, result, 2)
}

func TestResolver_Resolve_EmptyInputYieldsEmptyOutput(t *testing.T) {
	r := normalizer.NewResolver(0.85)
	assert.Empty(t, r.Resolve(nil))
}
