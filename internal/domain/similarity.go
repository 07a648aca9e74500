package domain

import "strings"

// noiseTokens are stripped from both the query and the skill name before
// scoring, and separately compared as multisets (s3 below).
// Grounded on skill_entry.py's match(): ['skill', 'fallback', 'mycroft'].
var noiseTokens = []string{"skill", "fallback", "assistant"}

// ratio computes the Ratcliff/Obershelp string similarity of a and b, in
// [0, 1]: twice the number of matching characters (found via a recursive
// longest-common-substring search) divided by the combined length.
// This is the same algorithm underlying Python's
// difflib.SequenceMatcher.ratio(), reimplemented here because no library
// in the retrieved example pack offers an equivalent (see DESIGN.md).
func ratio(a, b string) float64 {
	return seqRatio([]byte(a), []byte(b))
}

// seqRatio is ratio over any two sequences of comparable elements.
func seqRatio[T comparable](a, b []T) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	matches := matchingBlockLength(a, b)
	return 2.0 * float64(matches) / float64(len(a)+len(b))
}

func matchingBlockLength[T comparable](a, b []T) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingBlockLength(a[:i], b[:j]) + matchingBlockLength(a[i+size:], b[j+size:])
}

// longestMatch finds the longest common substring between a and b, returning
// its start index in a, start index in b, and its length.
func longestMatch[T comparable](a, b []T) (int, int, int) {
	bestI, bestJ, bestLen := 0, 0, 0
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			l := 0
			for i+l < len(a) && j+l < len(b) && a[i+l] == b[j+l] {
				l++
			}
			if l > bestLen {
				bestI, bestJ, bestLen = i, j, l
			}
		}
	}
	return bestI, bestJ, bestLen
}

// tokenRatio computes the similarity of two token sequences element-wise,
// with whole tokens as the units — the Go equivalent of comparing two
// Python lists with SequenceMatcher.
func tokenRatio(a, b []string) float64 {
	return seqRatio(a, b)
}

// extractTokens lowercases s, replaces '-' with space, then removes every
// occurrence of each noise token (counting them), returning the cleaned
// string, its remaining whitespace-split tokens, and the extracted noise
// tokens (in extraction order, repeated per occurrence).
// Grounded on skill_entry.py's _extract_tokens.
func extractTokens(s string) (cleaned string, tokens []string, noise []string) {
	s = strings.ToLower(strings.ReplaceAll(s, "-", " "))
	for _, tok := range noiseTokens {
		count := strings.Count(s, tok)
		for i := 0; i < count; i++ {
			noise = append(noise, tok)
		}
		s = strings.ReplaceAll(s, tok, "")
	}
	fields := strings.Fields(s)
	return strings.Join(fields, " "), fields, noise
}

// Match scores how well query (with an optional author hint) matches this
// descriptor, combining name/token/noise similarity with weights (9, 9, 2)
// and an author-similarity multiplier, exactly per SPEC_FULL.md §4.C.
func (d *Descriptor) Match(query string, author string) float64 {
	searchClean, searchTokens, searchNoise := extractTokens(query)
	nameClean, nameTokens, nameNoise := extractTokens(d.Name)

	type weighted struct {
		weight float64
		value  float64
	}
	weights := []weighted{
		{9, ratio(nameClean, searchClean)},
		{9, tokenRatio(nameTokens, searchTokens)},
		{2, tokenRatio(nameNoise, searchNoise)},
	}

	authorWeight := 1.0
	if author != "" {
		authorWeight = ratio(d.Author, author)
		weights = append(weights, weighted{5, authorWeight})
	}

	var sumWeighted, sumWeights float64
	for _, w := range weights {
		sumWeighted += w.weight * w.value
		sumWeights += w.weight
	}

	return authorWeight * (sumWeighted / sumWeights)
}
