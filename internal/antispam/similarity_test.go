package antispam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"Identical", "hello world", "hello world", 1.0},
		{"Identical Ignoring Whitespace", "hello   world", "helloworld", 1.0},
		{"Completely Different", "abcdef", "uvwxyz", 0.0},
		{"Empty Both", "", "", 0.0},
		{"One Empty", "hello", "", 0.0},
		{"Single Character", "a", "a", 1.0},
		{"Single Character vs Longer", "a", "abc", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarityNearDuplicate(t *testing.T) {
	t.Parallel()
	// One changed word in a long sentence stays above the 0.8 threshold.
	a := "this post completely changed how i think about databases"
	b := "this post completely changed how i think about caching"
	got := Similarity(a, b)
	assert.Greater(t, got, 0.8)
	assert.Less(t, got, 1.0)
}

func TestSimilaritySymmetric(t *testing.T) {
	t.Parallel()
	a := "the quick brown fox"
	b := "the quick brown dog"
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
}

func TestSimilarityDistinctSentences(t *testing.T) {
	t.Parallel()
	a := "i really enjoyed reading this article"
	b := "what time does the event start tomorrow"
	assert.Less(t, Similarity(a, b), 0.4)
}
