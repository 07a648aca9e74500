package domain

import "strings"

// ambiguityThreshold is the minimum score for a match to be considered at
// all. Grounded on mycroft_skills_manager.py's find_skill().
const ambiguityThreshold = 0.3

// ambiguityRatio is the fraction of the best score above which a second
// candidate is considered an ambiguous match rather than a clear loser.
const ambiguityRatio = 0.7

// Resolve maps a user token (a URL, or a fuzzy name with an optional
// author) to exactly one descriptor drawn from candidates, or returns a
// structured error: ErrSkillNotFound if nothing scores high enough, or
// MultipleSkillMatchesError if more than one candidate is within the
// ambiguity band of the best score.
// Grounded on original_source/msm/mycroft_skills_manager.py's find_skill().
func Resolve(query string, author string, candidates []*Descriptor) (*Descriptor, error) {
	if isGitURL(query) {
		return resolveURL(query, candidates), nil
	}
	return resolveFuzzy(query, author, candidates)
}

// isGitURL reports whether query names a git remote rather than a bare
// skill name: any of the schemes git supports natively (http(s), ssh,
// git, file), an scp-style "user@host:path" form, or a plain filesystem
// path (relevant for local/test catalogs and locally-authored skills).
func isGitURL(query string) bool {
	for _, scheme := range []string{"http://", "https://", "ssh://", "git://", "file://"} {
		if strings.HasPrefix(query, scheme) {
			return true
		}
	}
	if strings.Contains(query, "@") && strings.Contains(query, ":") {
		return true
	}
	return strings.HasPrefix(query, "/") || strings.HasPrefix(query, "./") || strings.HasPrefix(query, "../")
}

func resolveURL(url string, candidates []*Descriptor) *Descriptor {
	id := ExtractID(url)
	for _, c := range candidates {
		if c.ID() == id {
			return c
		}
	}
	// No known skill with this id: synthesize a new, unattached descriptor.
	return NewDescriptor("", "", url, "")
}

func resolveFuzzy(query, author string, candidates []*Descriptor) (*Descriptor, error) {
	if len(candidates) == 0 {
		return nil, ErrSkillNotFound
	}

	type scored struct {
		d     *Descriptor
		score float64
	}
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		scores[i] = scored{c, c.Match(query, author)}
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.score > best.score {
			best = s
		}
	}

	if best.score < ambiguityThreshold {
		return nil, ErrSkillNotFound
	}

	low := best.score * ambiguityRatio
	if best.score == 1.0 {
		low = 1.0
	}

	others := []*Descriptor{best.d}
	for _, s := range scores {
		if s.d == best.d {
			continue
		}
		if s.score >= low {
			others = append(others, s.d)
		}
	}
	if len(others) > 1 {
		return nil, &MultipleSkillMatchesError{Query: query, Candidates: others}
	}

	return best.d, nil
}

// Search returns every candidate whose score against query (and optional
// author) is at least ambiguityThreshold, sorted by descending score.
// Grounded on the §6 `search` command's "print names whose score ≥ 0.3".
func Search(query, author string, candidates []*Descriptor) []*Descriptor {
	type scored struct {
		d     *Descriptor
		score float64
	}
	var scores []scored
	for _, c := range candidates {
		if s := c.Match(query, author); s >= ambiguityThreshold {
			scores = append(scores, scored{c, s})
		}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].score > scores[j-1].score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	result := make([]*Descriptor, len(scores))
	for i, s := range scores {
		result[i] = s.d
	}
	return result
}
