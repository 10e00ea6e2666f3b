package earth

import (
	"context"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/core/parallel"
	"github.com/splinefit/goearth/pkg/errors"
	"github.com/splinefit/goearth/pkg/log"
)

// GCVPoint is one entry of the pruning diagnostic curve: the GCV and RSS of
// the best subset found at a given term count.
type GCVPoint struct {
	Terms int     `json:"terms"`
	RSS   float64 `json:"rss"`
	GCV   float64 `json:"gcv"`
}

// TermImportance records how much the fit degrades when one active term is
// removed from the final model and the rest is refit.
type TermImportance struct {
	Term     Term    `json:"term"`
	DeltaRSS float64 `json:"delta_rss"`
	DeltaGCV float64 `json:"delta_gcv"`
}

// pruneResult is the outcome of the backward pass.
type pruneResult struct {
	activeIdx  []int // selected subsequence of the forward-pass history
	coef       []float64
	rss        float64
	gcv        float64
	curve      []GCVPoint
	sequence   [][]int // nested active sets, one per size, largest first
	importance []TermImportance
}

// pruner runs classic backward elimination over the forward-pass model.
// Terms are only deactivated, never created; every subset is refit from
// scratch so coefficients and RSS stay consistent.
type pruner struct {
	X       *mat.Dense
	y       *mat.VecDense
	fitter  LeastSquaresFitter
	cfg     Config
	workers int

	history []Term
	columns *mat.Dense // basis column of every history term, built once
}

func newPruner(X *mat.Dense, y *mat.VecDense, fitter LeastSquaresFitter, cfg Config, history []Term) *pruner {
	n, _ := X.Dims()
	columns := mat.NewDense(n, len(history), nil)
	fillBasis(columns, history, X)

	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &pruner{X: X, y: y, fitter: fitter, cfg: cfg, workers: workers, history: history, columns: columns}
}

// fitSubset refits the model restricted to the given history indices.
func (p *pruner) fitSubset(idx []int) ([]float64, float64, error) {
	n, _ := p.X.Dims()
	basis := mat.NewDense(n, len(idx), nil)
	col := make([]float64, n)
	for j, histIdx := range idx {
		mat.Col(col, histIdx, p.columns)
		basis.SetCol(j, col)
	}
	return p.fitter.FitLeastSquares(basis, p.y)
}

// cheapestRemoval scans the removable positions of active (everything but
// the intercept at position 0) in parallel and returns the position whose
// removal increases RSS the least, with ties broken by the lowest position.
func (p *pruner) cheapestRemoval(ctx context.Context, active []int) (pos int, coef []float64, rss float64, err error) {
	type removal struct {
		pos  int
		coef []float64
		rss  float64
	}
	var (
		mu   sync.Mutex
		best *removal
		nPos = len(active) - 1 // positions 1..len(active)-1
	)

	scanErr := parallel.ForEachChunk(ctx, nPos, p.workers, func(ctx context.Context, start, end int) error {
		subset := make([]int, 0, len(active)-1)
		for i := start; i < end; i++ {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			pos := i + 1 // skip the intercept
			subset = subset[:0]
			subset = append(subset, active[:pos]...)
			subset = append(subset, active[pos+1:]...)

			c, r, err := p.fitSubset(subset)
			if err != nil {
				// A degenerate subset is skipped, never fatal to pruning.
				continue
			}
			mu.Lock()
			if best == nil || r < best.rss || (r == best.rss && pos < best.pos) {
				best = &removal{pos: pos, coef: c, rss: r}
			}
			mu.Unlock()
		}
		return nil
	})
	if scanErr != nil {
		return 0, nil, 0, scanErr
	}
	if best == nil {
		return 0, nil, 0, errors.New("prune: every single-term removal was degenerate")
	}
	return best.pos, best.coef, best.rss, nil
}

// run executes backward elimination starting from the full forward model
// and selects the subset minimizing GCV (ties prefer the smaller term
// count). With PenaltyD == 0 the complexity penalty is disabled and
// selection is pure RSS minimization, which keeps the full model.
func (p *pruner) run(ctx context.Context, full *forwardResult, logger log.Logger) (*pruneResult, error) {
	n, _ := p.X.Dims()
	start := time.Now()

	active := make([]int, len(full.terms))
	for i := range active {
		active[i] = i
	}

	gcvFull, err := GCV(full.rss, n, len(active), p.cfg.PenaltyD)
	if err != nil {
		// The forward pass caps growth, so a degenerate full model is a
		// contract violation worth surfacing.
		return nil, errors.Wrap(err, "prune: full model GCV")
	}

	result := &pruneResult{
		activeIdx: append([]int(nil), active...),
		coef:      append([]float64(nil), full.coef...),
		rss:       full.rss,
		gcv:       gcvFull,
		curve:     []GCVPoint{{Terms: len(active), RSS: full.rss, GCV: gcvFull}},
		sequence:  [][]int{append([]int(nil), active...)},
	}
	bestGCV := gcvFull
	bestRSS := full.rss
	pureRSS := p.cfg.PenaltyD == 0

	coef := append([]float64(nil), full.coef...)
	for len(active) > 1 {
		if ctx.Err() != nil {
			errors.Warn(errors.NewSearchBudgetWarning("prune", len(result.curve), time.Since(start), true))
			break
		}

		pos, removalCoef, rss, err := p.cheapestRemoval(ctx, active)
		if err != nil {
			return nil, err
		}
		active = append(active[:pos], active[pos+1:]...)
		coef = removalCoef

		gcv, err := GCV(rss, n, len(active), p.cfg.PenaltyD)
		if err != nil {
			return nil, errors.Wrap(err, "prune: subset GCV")
		}
		result.curve = append(result.curve, GCVPoint{Terms: len(active), RSS: rss, GCV: gcv})
		result.sequence = append(result.sequence, append([]int(nil), active...))

		better := false
		if pureRSS {
			// Penalty disabled: only a strict RSS improvement replaces the
			// incumbent, so the full model wins all ties.
			better = rss < bestRSS
		} else {
			// Iterating from large to small subsets, <= prefers the
			// smaller term count on GCV ties.
			better = gcv <= bestGCV
		}
		if better {
			bestGCV = gcv
			bestRSS = rss
			result.activeIdx = append([]int(nil), active...)
			result.coef = append([]float64(nil), coef...)
			result.rss = rss
			result.gcv = gcv
		}
	}

	if err := p.computeImportance(result); err != nil {
		return nil, err
	}

	logger.Info("backward pass finished",
		log.PassKey, "backward",
		log.TermsKey, len(result.activeIdx),
		log.RSSKey, result.rss,
		log.GCVKey, result.gcv,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}

// computeImportance re-runs the single-term-removal evaluation against the
// selected active set, attributing to every surviving term the RSS and GCV
// increase its removal would cause.
func (p *pruner) computeImportance(result *pruneResult) error {
	n, _ := p.X.Dims()
	active := result.activeIdx
	result.importance = make([]TermImportance, 0, len(active)-1)

	subset := make([]int, 0, len(active)-1)
	for pos := 1; pos < len(active); pos++ {
		subset = subset[:0]
		subset = append(subset, active[:pos]...)
		subset = append(subset, active[pos+1:]...)

		imp := TermImportance{Term: p.history[active[pos]]}
		_, rss, err := p.fitSubset(subset)
		if err != nil {
			// Degenerate removal refit: leave the deltas at zero rather
			// than fail the whole fit over a diagnostic.
			result.importance = append(result.importance, imp)
			continue
		}
		imp.DeltaRSS = rss - result.rss

		gcv, err := GCV(rss, n, len(subset), p.cfg.PenaltyD)
		if err == nil {
			imp.DeltaGCV = gcv - result.gcv
		}
		result.importance = append(result.importance, imp)
	}
	return nil
}
