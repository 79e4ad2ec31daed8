package selector

import (
	"strings"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// TitleSimilarity returns a normalized similarity score in [0, 1]
// between two titles. Both are lowercased and stripped of punctuation
// first, so trivial case and punctuation differences score 1.0. The
// score is the maximum of an edit-based ratio (2*LCS / total length)
// and token-set Jaccard overlap; both components are symmetric.
func TitleSimilarity(left, right string) float64 {
	leftNorm := paper.NormalizeText(left)
	rightNorm := paper.NormalizeText(right)
	if leftNorm == "" || rightNorm == "" {
		return 0
	}
	if leftNorm == rightNorm {
		return 1
	}

	ratio := editRatio([]rune(leftNorm), []rune(rightNorm))
	overlap := tokenJaccard(leftNorm, rightNorm)
	if overlap > ratio {
		return overlap
	}
	return ratio
}

// editRatio computes 2*LCS(a, b) / (len(a)+len(b)), the classic
// sequence-matching ratio.
func editRatio(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Single-row LCS table.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// tokenJaccard computes |A∩B| / |A∪B| over whitespace tokens of
// already-normalized text.
func tokenJaccard(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	intersection := 0
	for token := range aTokens {
		if bTokens[token] {
			intersection++
		}
	}
	union := len(aTokens) + len(bTokens) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, token := range strings.Fields(text) {
		set[token] = true
	}
	return set
}
