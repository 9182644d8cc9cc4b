package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/motionclinic/casematch/internal/domain"
)

// Policy holds the named routing knobs. Consolidating them here replaces
// what would otherwise be parallel near-identical routing paths with one
// configurable router.
type Policy struct {
	// MatchCutoff is the conservative fuzzy cutoff for label resolution.
	MatchCutoff float64

	// LooseCutoff is the recovery-mode fuzzy cutoff, applied when
	// RecoveryPass is enabled and the conservative pass finds nothing.
	LooseCutoff float64

	// RecoveryPass enables a second fuzzy pass at LooseCutoff.
	RecoveryPass bool

	// RecordedFallback draws a random recorded case when a retrieved label
	// fails to resolve, so every response carries fields from a real case
	// instead of an empty value. The returned case is not evidentially
	// related to the query; disabling the flag keeps the retrieved label
	// and assembles a contextless report instead.
	RecordedFallback bool

	// TopK is the number of nearest neighbors retrieved per query.
	TopK int
}

// DefaultPolicy mirrors the observed production behavior, recorded
// fallback included.
func DefaultPolicy() Policy {
	return Policy{
		MatchCutoff:      DefaultMatchCutoff,
		LooseCutoff:      LooseMatchCutoff,
		RecoveryPass:     false,
		RecordedFallback: true,
		TopK:             3,
	}
}

// Candidate is one ranked search result after score fusion.
type Candidate struct {
	ID         string  `json:"record_id"`
	Label      string  `json:"label"`
	RawScore   float64 `json:"raw_score"`
	FusedScore float64 `json:"fused_score"`
}

// Decision is the router's terminal state for one request. Exactly one
// tier fires per request; Record is set for the tiers backed by a
// recorded case, Label for the rest.
type Decision struct {
	Tier       domain.Tier
	Record     *domain.CaseRecord
	Label      string
	Similarity float64
}

// CaptionFunc produces the natural-language description consumed by the
// caption fallback tier. It is only invoked when that tier is reached.
type CaptionFunc func() (string, error)

// Router is the tier-routing state machine. Given the best fused candidate
// (or its absence) it selects exactly one of the four output strategies.
type Router struct {
	policy Policy
	rng    *rand.Rand
}

// NewRouter creates a Router. The random source is injectable so tests can
// pin fallback selection with a fixed seed; nil seeds from the clock.
func NewRouter(policy Policy, rng *rand.Rand) *Router {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Router{policy: policy, rng: rng}
}

// Decide routes one request. Transition order:
//
//  1. best label resolves against the corpus vocabulary -> DatasetMatch
//  2. best label exists but does not resolve -> RandomFallback when the
//     recorded-fallback flag is on, else ContextlessMatch
//  3. no label at all -> RandomFallback when the corpus has records,
//     else the caption tier
//  4. CaptionFallback keyword-matches the caption, generic label otherwise
//
// The reported similarity is always clamped to >= 0.
// Parameters:
//   - best: top fused candidate, nil when the search returned nothing.
//   - corpus: the category corpus.
//   - caption: lazy caption provider for the terminal tier.
// Returns:
//   - Decision: the terminal state.
//   - error: only a caption provider failure; "no match" never errors.
func (r *Router) Decide(best *Candidate, corpus *Corpus, caption CaptionFunc) (Decision, error) {
	if best != nil {
		similarity := clampScore(best.FusedScore)

		matcher := NewMatcher(r.policy.MatchCutoff)
		res, ok := matcher.Resolve(best.Label, corpus.Vocabulary())
		if !ok && r.policy.RecoveryPass {
			res, ok = NewMatcher(r.policy.LooseCutoff).Resolve(best.Label, corpus.Vocabulary())
		}
		if ok {
			return Decision{
				Tier:       domain.TierDatasetMatch,
				Record:     corpus.RecordAt(res.Index),
				Label:      res.Entry,
				Similarity: similarity,
			}, nil
		}

		if r.policy.RecordedFallback && !corpus.Empty() {
			return r.randomDecision(corpus, similarity), nil
		}

		return Decision{
			Tier:       domain.TierContextlessMatch,
			Label:      best.Label,
			Similarity: similarity,
		}, nil
	}

	if r.policy.RecordedFallback && !corpus.Empty() {
		return r.randomDecision(corpus, 0), nil
	}

	return r.captionDecision(caption)
}

// randomDecision draws one record uniformly from the corpus.
func (r *Router) randomDecision(corpus *Corpus, similarity float64) Decision {
	record := &corpus.Records[r.rng.Intn(len(corpus.Records))]
	return Decision{
		Tier:       domain.TierRandomFallback,
		Record:     record,
		Label:      record.Label,
		Similarity: clampScore(similarity),
	}
}

// captionDecision runs the terminal tier.
func (r *Router) captionDecision(caption CaptionFunc) (Decision, error) {
	if caption == nil {
		return Decision{Tier: domain.TierCaptionFallback, Label: GenericCaptionLabel}, nil
	}
	text, err := caption()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", domain.ErrCaption, err)
	}
	return Decision{
		Tier:  domain.TierCaptionFallback,
		Label: LabelFromCaption(text),
	}, nil
}

// clampScore floors a similarity at zero; the caller-facing score is never
// negative regardless of which tier fired.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	return s
}
