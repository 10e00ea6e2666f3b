package earth

import (
	"github.com/splinefit/goearth/pkg/errors"
)

// effectiveParams is the effective parameter count C(M) of a model with m
// terms: m coefficients plus penaltyD degrees of freedom for each of the
// m−1 selected knots. The intercept carries no knot and is excluded from
// the penalty.
func effectiveParams(m int, penaltyD float64) float64 {
	return float64(m) + penaltyD*float64(m-1)
}

// GCV computes the generalized cross-validation score
//
//	GCV = (RSS / n) / (1 − C(M)/n)²
//
// for a model with m terms (intercept included) fitted on n rows. It
// returns a GCVDegenerateError when C(M) >= n, where the complexity penalty
// cannot be formed; the forward pass caps model growth so pruning never
// scores a model in that region.
func GCV(rss float64, n, m int, penaltyD float64) (float64, error) {
	if n <= 0 {
		return 0, errors.NewValueError("GCV", "sample count must be positive")
	}
	if m < 1 {
		return 0, errors.NewValueError("GCV", "term count must be at least 1")
	}

	c := effectiveParams(m, penaltyD)
	if c >= float64(n) {
		return 0, errors.NewGCVDegenerateError(c, n)
	}

	denom := 1 - c/float64(n)
	return (rss / float64(n)) / (denom * denom), nil
}
