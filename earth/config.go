package earth

import (
	"math"
	"time"

	"github.com/splinefit/goearth/pkg/errors"
)

// Config holds the fitting hyperparameters.
type Config struct {
	// MaxDegree is the maximum number of distinct predictors multiplied
	// together in one term. 1 fits an additive model with no interactions.
	MaxDegree int `json:"max_degree"`

	// MaxTerms caps the number of terms (including the intercept) the
	// forward pass may create. It is additionally hard-capped relative to
	// the sample count so that GCV scoring never degenerates.
	MaxTerms int `json:"max_terms"`

	// PenaltyD is the GCV cost per non-intercept term, reflecting the extra
	// degrees of freedom consumed by each knot search. 0 disables the
	// complexity penalty entirely, making pruning pure RSS minimization.
	PenaltyD float64 `json:"penalty_d"`

	// Minspan controls knot spacing on continuous predictors: at least
	// Minspan-1 observations must fall strictly between consecutive
	// selectable knots, so 1 admits every eligible distinct value. Values
	// <= 0 select Friedman's automatic formula.
	Minspan int `json:"minspan"`

	// Endspan is the minimum number of observations between a selectable
	// knot and either data boundary. Values <= 0 select Friedman's
	// automatic formula.
	Endspan int `json:"endspan"`

	// ImprovementThreshold is the minimum relative RSS reduction required
	// to accept a forward addition.
	ImprovementThreshold float64 `json:"improvement_threshold"`

	// TimeBudget bounds the wall-clock time of a fit. On expiry the fit
	// returns the best model found so far. 0 means unbounded.
	TimeBudget time.Duration `json:"time_budget"`

	// MaxCandidates bounds the total number of candidates scored across the
	// whole fit. On expiry the fit returns the best model found so far.
	// 0 means unbounded.
	MaxCandidates int `json:"max_candidates"`

	// NumWorkers is the goroutine count for the candidate scans inside a
	// single search step. <= 0 uses all CPU cores.
	NumWorkers int `json:"num_workers"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		MaxDegree:            1,
		MaxTerms:             21,
		PenaltyD:             3,
		Minspan:              0, // automatic
		Endspan:              0, // automatic
		ImprovementThreshold: 1e-10,
	}
}

// Validate checks the configuration for inconsistent values.
func (c Config) Validate() error {
	if c.MaxDegree < 1 {
		return errors.NewValidationError("max_degree", "must be at least 1", c.MaxDegree)
	}
	if c.MaxTerms < 1 {
		return errors.NewValidationError("max_terms", "must be at least 1", c.MaxTerms)
	}
	if c.PenaltyD < 0 {
		return errors.NewValidationError("penalty_d", "must be non-negative", c.PenaltyD)
	}
	if c.ImprovementThreshold < 0 {
		return errors.NewValidationError("improvement_threshold", "must be non-negative", c.ImprovementThreshold)
	}
	if c.TimeBudget < 0 {
		return errors.NewValidationError("time_budget", "must be non-negative", c.TimeBudget)
	}
	if c.MaxCandidates < 0 {
		return errors.NewValidationError("max_candidates", "must be non-negative", c.MaxCandidates)
	}
	return nil
}

// autoSpans resolves Minspan and Endspan for n rows and p predictors.
// Non-positive values select Friedman's formulas (MARS paper §3.8) at
// alpha = 0.05.
func (c Config) autoSpans(n, p int) (minspan, endspan int) {
	const alpha = 0.05

	minspan = c.Minspan
	if minspan <= 0 {
		minspan = int(-math.Log2(-math.Log1p(-alpha)/float64(n*p)) / 2.5)
		if minspan < 1 {
			minspan = 1
		}
	}

	endspan = c.Endspan
	if endspan <= 0 {
		endspan = int(3 - math.Log2(alpha/float64(p)))
		if endspan < 1 {
			endspan = 1
		}
	}
	return minspan, endspan
}

// termCap returns the largest term count M (intercept included) for which
// the effective parameter count M + PenaltyD·(M−1) stays strictly below n,
// bounded above by MaxTerms. The forward pass never grows past this cap, so
// GCV is always defined during pruning.
func (c Config) termCap(n int) int {
	m := c.MaxTerms
	for m > 1 && effectiveParams(m, c.PenaltyD) >= float64(n) {
		m--
	}
	return m
}
