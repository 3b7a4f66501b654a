// Package antispam implements the synchronous admission gate run before a
// comment is accepted: condemned-text lookup, duplicate and near-duplicate
// detection over the author's recent comments, and a per-post rate limit.
package antispam

import "strings"

// Similarity returns the Sørensen-Dice coefficient over character bigrams of
// a and b, ignoring whitespace. Symmetric, 1.0 for identical strings, 0.0
// when either input has fewer than two non-space characters.
func Similarity(a, b string) float64 {
	a = stripSpace(a)
	b = stripSpace(b)

	if a == b {
		if len(a) == 0 {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	matches := 0
	for i := 0; i < len(b)-1; i++ {
		gram := b[i : i+2]
		if bigrams[gram] > 0 {
			bigrams[gram]--
			matches++
		}
	}

	return 2.0 * float64(matches) / float64(len(a)+len(b)-2)
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
