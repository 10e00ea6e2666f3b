package earth

import (
	"time"

	"github.com/splinefit/goearth/pkg/log"
)

// Option configures a Regressor.
type Option func(*Regressor)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Regressor) {
		r.cfg = cfg
	}
}

// WithMaxDegree sets the maximum interaction degree of a term.
func WithMaxDegree(degree int) Option {
	return func(r *Regressor) {
		r.cfg.MaxDegree = degree
	}
}

// WithMaxTerms sets the forward-pass term cap (intercept included).
func WithMaxTerms(terms int) Option {
	return func(r *Regressor) {
		r.cfg.MaxTerms = terms
	}
}

// WithPenalty sets the GCV penalty per non-intercept term.
func WithPenalty(d float64) Option {
	return func(r *Regressor) {
		r.cfg.PenaltyD = d
	}
}

// WithMinspan sets the minimum observation count between consecutive knots.
// Values <= 0 select the automatic formula.
func WithMinspan(minspan int) Option {
	return func(r *Regressor) {
		r.cfg.Minspan = minspan
	}
}

// WithEndspan sets the minimum observation count between a knot and the
// data boundary. Values <= 0 select the automatic formula.
func WithEndspan(endspan int) Option {
	return func(r *Regressor) {
		r.cfg.Endspan = endspan
	}
}

// WithImprovementThreshold sets the minimum relative RSS reduction required
// to accept a forward addition.
func WithImprovementThreshold(threshold float64) Option {
	return func(r *Regressor) {
		r.cfg.ImprovementThreshold = threshold
	}
}

// WithTimeBudget bounds the wall-clock time of a fit; on expiry the fit
// keeps the best model found so far.
func WithTimeBudget(budget time.Duration) Option {
	return func(r *Regressor) {
		r.cfg.TimeBudget = budget
	}
}

// WithMaxCandidates bounds the number of candidates scored across a fit;
// on expiry the fit keeps the best model found so far.
func WithMaxCandidates(max int) Option {
	return func(r *Regressor) {
		r.cfg.MaxCandidates = max
	}
}

// WithWorkers sets the goroutine count for candidate scans.
func WithWorkers(workers int) Option {
	return func(r *Regressor) {
		r.cfg.NumWorkers = workers
	}
}

// WithCategorical marks predictor columns as categorical. Categorical
// columns hold integer category codes and are split by binary partitions of
// their level set instead of scalar knots.
func WithCategorical(cols ...int) Option {
	return func(r *Regressor) {
		r.categorical = append(append([]int(nil), r.categorical...), cols...)
	}
}

// WithFitter replaces the least-squares collaborator.
func WithFitter(f LeastSquaresFitter) Option {
	return func(r *Regressor) {
		r.fitter = f
	}
}

// WithLogger replaces the logger used during fitting.
func WithLogger(l log.Logger) Option {
	return func(r *Regressor) {
		r.logger = l
	}
}
