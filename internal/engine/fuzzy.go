package engine

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Fuzzy match cutoffs. The conservative cutoff is used for the single
// best-effort resolution pass; the loose cutoff trades precision for recall
// when upstream needs multi-candidate recovery.
const (
	DefaultMatchCutoff = 0.6
	LooseMatchCutoff   = 0.3
)

// MatchStage names the cascade stage that produced a match.
type MatchStage string

const (
	StageExact  MatchStage = "exact"
	StageApprox MatchStage = "approximate"
	StageToken  MatchStage = "token_overlap"
)

// MatchResult describes a resolved vocabulary entry.
type MatchResult struct {
	Entry      string
	Index      int
	Similarity float64
	Stage      MatchStage
}

// Matcher resolves free-form labels against a canonical vocabulary through
// a strict three-stage cascade: normalized exact match, sequence-ratio
// approximate match, then token-overlap scan. The first stage that yields a
// result wins. A failed resolution is a normal outcome, not an error.
type Matcher struct {
	// Cutoff is the minimum sequence ratio accepted by the approximate stage.
	Cutoff float64
}

// NewMatcher returns a Matcher with the given approximate-stage cutoff;
// cutoff <= 0 selects DefaultMatchCutoff.
func NewMatcher(cutoff float64) Matcher {
	if cutoff <= 0 {
		cutoff = DefaultMatchCutoff
	}
	return Matcher{Cutoff: cutoff}
}

// NormalizeLabel lower-cases a label, maps underscores and hyphens to
// spaces, and collapses runs of whitespace. Normalization is idempotent.
func NormalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Resolve finds the best vocabulary entry for label, or reports no match.
// Parameters:
//   - label: free-form label to resolve.
//   - vocab: canonical vocabulary in corpus iteration order.
// Returns:
//   - MatchResult: resolved entry, its index, similarity, and stage.
//   - bool: false when no stage matched.
func (m Matcher) Resolve(label string, vocab []string) (MatchResult, bool) {
	query := NormalizeLabel(label)
	if query == "" || len(vocab) == 0 {
		return MatchResult{}, false
	}

	// Stage 1: exact match after normalization.
	for i, entry := range vocab {
		if NormalizeLabel(entry) == query {
			return MatchResult{Entry: entry, Index: i, Similarity: 1.0, Stage: StageExact}, true
		}
	}

	// Stage 2: sequence ratio against every entry, keep the best at or
	// above the cutoff. Strict greater-than keeps the first of equals.
	best := MatchResult{Index: -1}
	for i, entry := range vocab {
		ratio := sequenceRatio(query, NormalizeLabel(entry))
		if ratio >= m.Cutoff && ratio > best.Similarity {
			best = MatchResult{Entry: entry, Index: i, Similarity: ratio, Stage: StageApprox}
		}
	}
	if best.Index >= 0 {
		return best, true
	}

	// Stage 3: token overlap, first hit in corpus order wins. No scoring.
	queryTokens := strings.Fields(query)
	for i, entry := range vocab {
		normalized := NormalizeLabel(entry)
		if normalized == "" {
			continue
		}
		if strings.Contains(normalized, query) || strings.Contains(query, normalized) {
			return MatchResult{Entry: entry, Index: i, Stage: StageToken}, true
		}
		for _, token := range queryTokens {
			if containsToken(normalized, token) {
				return MatchResult{Entry: entry, Index: i, Stage: StageToken}, true
			}
		}
	}

	return MatchResult{}, false
}

// sequenceRatio computes the difflib longest-matching-block ratio between
// two strings, compared rune-wise.
func sequenceRatio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// containsToken reports whether token appears as a whitespace-delimited
// token of s.
func containsToken(s, token string) bool {
	for _, t := range strings.Fields(s) {
		if t == token {
			return true
		}
	}
	return false
}
