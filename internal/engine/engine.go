package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/motionclinic/casematch/internal/domain"
)

// Query is one evaluation request. Exactly one of Text or Image must be
// set; Age is the optional auxiliary attribute consumed by score fusion.
type Query struct {
	Text        string
	Image       []byte
	ImageFormat string
	Age         *int
}

// Encoder turns a query into a fixed-dimension unit embedding.
type Encoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, image []byte, format string) ([]float32, error)
}

// Captioner produces a natural-language description of a query. It is
// only consulted on the terminal fallback tier.
type Captioner interface {
	Caption(ctx context.Context, q Query) (string, error)
}

// Evaluator is the retrieval pipeline: encode, search, fuse, route,
// assemble. Corpora are loaded once and shared read-only, so one Evaluator
// serves concurrent requests without locking; the random source inside the
// router is the only consumed state.
type Evaluator struct {
	encoder   Encoder
	captioner Captioner
	corpora   map[string]*Corpus
	router    *Router
	assembler Assembler
	policy    Policy
}

// NewEvaluator wires the pipeline. Corpora is keyed by category.
func NewEvaluator(encoder Encoder, captioner Captioner, corpora map[string]*Corpus, router *Router, policy Policy) *Evaluator {
	return &Evaluator{
		encoder:   encoder,
		captioner: captioner,
		corpora:   corpora,
		router:    router,
		policy:    policy,
	}
}

// Evaluate runs one query against one category's corpus and returns the
// assembled report.
// Parameters:
//   - ctx: passed through to the encoder, index, and captioner.
//   - q: the query; text or image.
//   - category: corpus key; unknown categories fail with ErrCorpusNotFound.
// Returns:
//   - domain.Report: the structured answer.
//   - error: corpus lookup, encoding, search, or caption failure. A query
//     that matches nothing is not an error; the fallback chain absorbs it.
func (e *Evaluator) Evaluate(ctx context.Context, q Query, category string) (domain.Report, error) {
	corpus, ok := e.corpora[category]
	if !ok {
		return domain.Report{}, fmt.Errorf("%w: %q", domain.ErrCorpusNotFound, category)
	}

	embedding, err := e.encode(ctx, q)
	if err != nil {
		return domain.Report{}, err
	}

	best, err := e.bestCandidate(ctx, embedding, q.Age, corpus)
	if err != nil {
		return domain.Report{}, err
	}

	decision, err := e.router.Decide(best, corpus, func() (string, error) {
		if e.captioner == nil {
			return "", nil
		}
		return e.captioner.Caption(ctx, q)
	})
	if err != nil {
		return domain.Report{}, err
	}

	return e.assembler.Build(decision, category), nil
}

// encode dispatches to the image or text encoder. A query carrying
// neither is malformed.
func (e *Evaluator) encode(ctx context.Context, q Query) ([]float32, error) {
	switch {
	case len(q.Image) > 0:
		return e.encoder.EncodeImage(ctx, q.Image, q.ImageFormat)
	case q.Text != "":
		return e.encoder.EncodeText(ctx, q.Text)
	default:
		return nil, fmt.Errorf("%w: query carries neither text nor image", domain.ErrMalformedRequest)
	}
}

// bestCandidate searches the corpus index, applies attribute decay to each
// hit, and returns the top fused candidate. Nil means the index is empty.
func (e *Evaluator) bestCandidate(ctx context.Context, embedding []float32, age *int, corpus *Corpus) (*Candidate, error) {
	if corpus.Index == nil || corpus.Index.Len() == 0 {
		return nil, nil
	}

	k := e.policy.TopK
	if k <= 0 {
		k = 1
	}
	hits, err := corpus.Index.Search(ctx, embedding, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		// Resolve the hit's own record for the age attribute; records can
		// share a label, so the id lookup comes first. A remote index may
		// carry substituted point ids, in which case the label is the best
		// remaining key.
		var candidateAge *int
		if rec := corpus.RecordByID(h.ID); rec != nil {
			candidateAge = rec.Age
		} else if rec := corpus.FirstByLabel(h.Label); rec != nil {
			candidateAge = rec.Age
		}
		candidates[i] = Candidate{
			ID:         h.ID,
			Label:      h.Label,
			RawScore:   h.Score,
			FusedScore: Fuse(h.Score, age, candidateAge),
		}
	}

	// Re-rank by fused score; stable sort keeps the search order for ties,
	// which itself preserves corpus insertion order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FusedScore > candidates[j].FusedScore
	})

	return &candidates[0], nil
}

// Categories returns the loaded corpus keys in sorted order.
func (e *Evaluator) Categories() []string {
	out := make([]string, 0, len(e.corpora))
	for c := range e.corpora {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Corpus returns the corpus for a category, or nil.
func (e *Evaluator) Corpus(category string) *Corpus {
	return e.corpora[category]
}
