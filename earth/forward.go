package earth

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
	"github.com/splinefit/goearth/pkg/log"
)

// forwardResult is the over-fit model produced by the forward pass. Every
// term in the history is active; pruning later selects a subsequence.
type forwardResult struct {
	terms []Term    // term 0 is the intercept
	coef  []float64 // least-squares refit of the full term set
	rss   float64
}

// runForwardPass grows the model term by term. Each step asks the knot
// searcher for the (parent, predictor, knot) addition with the largest RSS
// reduction and appends its novel hinge pair, refitting all coefficients.
// It stops at the term cap, when the best addition no longer reduces RSS by
// the configured relative threshold, when no eligible candidate remains, or
// when the search budget expires (returning the model built so far).
func runForwardPass(ctx context.Context, searcher *knotSearcher, logger log.Logger) (*forwardResult, error) {
	n, _ := searcher.X.Dims()
	cfg := searcher.cfg
	termCap := cfg.termCap(n)

	// Intercept-only start.
	terms := []Term{Intercept()}
	basis := mat.NewDense(n, 1, nil)
	fillBasis(basis, terms, searcher.X)
	coef, rss, err := searcher.fitter.FitLeastSquares(basis, searcher.y)
	if err != nil {
		return nil, errors.Wrap(err, "forward pass: intercept fit")
	}
	rss0 := rss

	start := time.Now()
	step := 0
	for len(terms) < termCap {
		add, expired, err := searcher.search(ctx, terms)
		if err != nil {
			return nil, errors.Wrap(err, "forward pass: knot search")
		}
		if expired {
			// Budget expiry degrades to the best model found so far; the
			// interrupted step's partial scan is discarded because its
			// winner depends on scheduling.
			errors.Warn(errors.NewSearchBudgetWarning("forward", searcher.budget.count(), time.Since(start), len(terms) > 1))
			break
		}
		if add == nil {
			// No eligible candidates remain, or all were degenerate. An
			// intercept-only result means the data admitted no knot at all,
			// which callers usually want to hear about.
			if len(terms) == 1 {
				logger.Warn("no eligible knot candidates",
					log.ErrAttrKey, errors.ErrNoCandidates,
					log.CandidatesKey, searcher.budget.count(),
				)
			}
			break
		}

		reduction := rss - add.RSS
		if reduction <= cfg.ImprovementThreshold*rss {
			break
		}
		if len(terms)+len(add.NewTerms) > termCap {
			break
		}

		terms = append(terms, add.NewTerms...)
		coef = add.Coef
		rss = add.RSS
		step++

		logger.Debug("forward step accepted",
			log.StepKey, step,
			log.TermsKey, len(terms),
			log.PredictorKey, add.Pred,
			log.KnotKey, add.Knot,
			log.RSSKey, rss,
		)

		// A numerically exact fit leaves nothing for further additions; the
		// relative reduction test alone cannot detect it because any
		// reduction is large relative to a near-zero RSS.
		if rss <= cfg.ImprovementThreshold*rss0 {
			break
		}
	}

	logger.Info("forward pass finished",
		log.PassKey, "forward",
		log.TermsKey, len(terms),
		log.RSSKey, rss,
		log.CandidatesKey, searcher.budget.count(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &forwardResult{terms: terms, coef: coef, rss: rss}, nil
}
