package engine

import "math"

// Attribute decay constants. For every ten units of absolute difference
// between the query and candidate attribute the similarity is reduced by
// twenty percent, floored at 0.2.
const (
	decayPerUnit = 0.2
	decayUnit    = 10.0
	decayFloor   = 0.2
)

// Fuse combines a semantic similarity with auxiliary-attribute agreement
// into a single ranking score in [0, 1].
//
// If either attribute is absent the similarity passes through unchanged.
// Otherwise fused = s * max(0.2, 1 - 0.2*|Δattr|/10), re-clamped to [0, 1].
// The fused score is monotone in both inputs and never exceeds the raw
// similarity when a decay applies.
func Fuse(similarity float64, queryAttr, candidateAttr *int) float64 {
	s := clamp01(similarity)
	if queryAttr == nil || candidateAttr == nil {
		return s
	}

	diff := math.Abs(float64(*queryAttr - *candidateAttr))
	factor := 1.0 - decayPerUnit*diff/decayUnit
	if factor < decayFloor {
		factor = decayFloor
	}
	return clamp01(s * factor)
}
