package earth

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/core/parallel"
)

// Addition is the outcome of one knot search: the winning (parent,
// predictor, knot) triple, the novel terms it contributes, and the refit of
// the enlarged model.
type Addition struct {
	Parent      int     // index of the parent term in the current model
	Pred        int     // predictor the new factor is placed on
	Knot        float64 // knot value (continuous predictors)
	Mask        uint64  // partition mask (categorical predictors)
	Categorical bool

	// NewTerms holds the novel terms of the winning addition: up to two for
	// a hinge pair, exactly one for a categorical partition. An orientation
	// duplicating an existing term, or stranded by a rank-deficient pair
	// refit, is omitted.
	NewTerms []Term

	// Coef and RSS are the least-squares refit of the current active terms
	// plus NewTerms, in that column order.
	Coef []float64
	RSS  float64
}

// candidate identifies one (parent, predictor, knot-or-partition) triple.
// Candidates are enumerated parent-major, then by predictor, then by
// ascending knot value (ascending mask for categorical predictors), so a
// candidate's index in the enumeration is the deterministic tie-break rank
// required for reproducible fits.
type candidate struct {
	parent      int
	pred        int
	knot        float64
	mask        uint64
	categorical bool
}

// searchBudget counts candidate evaluations across a whole fit.
type searchBudget struct {
	evaluated atomic.Int64
	max       int64 // 0 means unbounded
}

func newSearchBudget(max int) *searchBudget {
	return &searchBudget{max: int64(max)}
}

// tryAcquire consumes one evaluation slot, reporting false on exhaustion.
func (b *searchBudget) tryAcquire() bool {
	n := b.evaluated.Add(1)
	return b.max == 0 || n <= b.max
}

func (b *searchBudget) count() int {
	return int(b.evaluated.Load())
}

// knotSearcher scans candidate additions for the forward pass. All fields
// are read-only during a search; workers share nothing mutable but the
// reduction slot, which is mutex-guarded.
type knotSearcher struct {
	X      *mat.Dense
	y      *mat.VecDense
	schema *Schema
	cfg    Config
	fitter LeastSquaresFitter

	knots   [][]float64 // eligible knot values per predictor, ascending
	masks   [][]uint64  // eligible partition masks per predictor, ascending
	workers int
	budget  *searchBudget
}

// newKnotSearcher precomputes the per-predictor knot candidates under the
// minspan/endspan policy and the categorical partition masks.
func newKnotSearcher(X *mat.Dense, y *mat.VecDense, schema *Schema, cfg Config, fitter LeastSquaresFitter, budget *searchBudget) *knotSearcher {
	n, p := X.Dims()
	minspan, endspan := cfg.autoSpans(n, p)

	s := &knotSearcher{
		X:       X,
		y:       y,
		schema:  schema,
		cfg:     cfg,
		fitter:  fitter,
		knots:   make([][]float64, p),
		masks:   make([][]uint64, p),
		workers: cfg.NumWorkers,
		budget:  budget,
	}
	if s.workers <= 0 {
		s.workers = runtime.NumCPU()
	}

	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		if schema.Kinds[j] == Categorical {
			s.masks[j] = partitionMasks(schema.Levels[j])
			continue
		}
		s.knots[j] = eligibleKnots(col, minspan, endspan)
	}
	return s
}

// eligibleKnots returns the selectable knot values of one continuous
// predictor, ascending. Endspan keeps knots away from the data boundary;
// minspan requires at least minspan-1 observations strictly between
// consecutive selectable knots, so minspan 1 admits every interior distinct
// value. A constant column yields no knots.
func eligibleKnots(col []float64, minspan, endspan int) []float64 {
	n := len(col)
	sorted := make([]float64, n)
	copy(sorted, col)
	sort.Float64s(sorted)

	// Distinct values with the count of observations below each.
	type distinct struct {
		value float64
		below int // observations strictly less than value
		count int // observations equal to value
	}
	var values []distinct
	for i := 0; i < n; {
		j := i
		for j < n && sorted[j] == sorted[i] {
			j++
		}
		values = append(values, distinct{value: sorted[i], below: i, count: j - i})
		i = j
	}
	if len(values) < 2 {
		return nil
	}

	var knots []float64
	// Observations covered up to and including the previously selected knot.
	// -1 marks "no knot selected yet", which disables the minspan check for
	// the first selection (endspan already guards the boundary).
	prevCovered := -1
	for _, v := range values {
		above := n - v.below - v.count
		if v.below < endspan || above < endspan {
			continue
		}
		if prevCovered >= 0 && v.below-prevCovered < minspan-1 {
			continue
		}
		knots = append(knots, v.value)
		prevCovered = v.below + v.count
	}
	return knots
}

// partitionMasks enumerates every non-trivial binary partition of a level
// set exactly once, as ascending bitmasks. The highest level is pinned to
// the complement side so that a partition and its complement are not both
// generated; the pair of indicator orientations covers both sides.
func partitionMasks(levels int) []uint64 {
	if levels < 2 {
		return nil
	}
	count := uint64(1)<<(levels-1) - 1
	masks := make([]uint64, 0, count)
	for m := uint64(1); m <= count; m++ {
		masks = append(masks, m)
	}
	return masks
}

// enumerate lists all candidates for the current model in the deterministic
// tie-break order: parent index, then predictor index, then ascending knot
// (ascending mask for categorical predictors).
func (s *knotSearcher) enumerate(terms []Term) []candidate {
	var out []candidate
	for parent, pt := range terms {
		if !s.parentEligible(pt) {
			continue
		}
		for pred := 0; pred < s.schema.NumPredictors(); pred++ {
			if pt.HasPredictor(pred) {
				continue
			}
			if s.schema.Kinds[pred] == Categorical {
				for _, m := range s.masks[pred] {
					out = append(out, candidate{parent: parent, pred: pred, mask: m, categorical: true})
				}
				continue
			}
			for _, k := range s.knots[pred] {
				out = append(out, candidate{parent: parent, pred: pred, knot: k})
			}
		}
	}
	return out
}

// parentEligible reports whether a term may be extended by one more factor.
// The intercept is always eligible; other terms only when interactions are
// enabled and the term is below the degree limit.
func (s *knotSearcher) parentEligible(t Term) bool {
	if t.IsIntercept() {
		return true
	}
	return s.cfg.MaxDegree > 1 && t.Degree() < s.cfg.MaxDegree
}

// newTerms builds the hinge pair of a continuous candidate, or the single
// indicator term of a categorical one, dropping anything that duplicates an
// existing term. The returned slice is empty when nothing novel remains.
//
// A categorical partition contributes only its in-set indicator: the out-set
// indicator sums with it to the parent column, which is already in the
// basis, so adding both would make every candidate rank deficient.
func (s *knotSearcher) newTerms(terms []Term, c candidate) ([]Term, error) {
	parent := terms[c.parent]

	var pair []Term
	if c.categorical {
		inSet, err := parent.WithFactor(NewIndicator(c.pred, c.mask))
		if err != nil {
			return nil, err
		}
		pair = []Term{inSet}
	} else {
		left, err := parent.WithFactor(NewHinge(c.pred, c.knot, DirLeft))
		if err != nil {
			return nil, err
		}
		right, err := parent.WithFactor(NewHinge(c.pred, c.knot, DirRight))
		if err != nil {
			return nil, err
		}
		pair = []Term{left, right}
	}

	novel := make([]Term, 0, len(pair))
	for _, nt := range pair {
		dup := false
		for _, existing := range terms {
			if nt.Equal(existing) {
				dup = true
				break
			}
		}
		if !dup {
			novel = append(novel, nt)
		}
	}
	return novel, nil
}

// searchResult is the mutex-guarded reduction slot shared by the scan
// workers. Replacement uses strictly-lower RSS, with ties resolved by the
// lower enumeration ordinal, so the winner is independent of goroutine
// scheduling.
type searchResult struct {
	mu      sync.Mutex
	found   bool
	ordinal int
	rss     float64
	coef    []float64
	cand    candidate
	novel   []Term
}

func (r *searchResult) offer(ordinal int, rss float64, coef []float64, cand candidate, novel []Term) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.found || rss < r.rss || (rss == r.rss && ordinal < r.ordinal) {
		r.found = true
		r.ordinal = ordinal
		r.rss = rss
		r.coef = coef
		r.cand = cand
		r.novel = novel
	}
}

// search scans every candidate addition to the current model and returns
// the one with minimum refit RSS. It returns nil when no candidate exists
// or every candidate was degenerate. expired reports that the time or
// candidate budget ran out before the scan finished; the returned addition
// is then the best among the candidates scored so far.
func (s *knotSearcher) search(ctx context.Context, terms []Term) (add *Addition, expired bool, err error) {
	cands := s.enumerate(terms)
	if len(cands) == 0 {
		return nil, false, nil
	}

	n, _ := s.X.Dims()
	m := len(terms)

	// The active-term basis columns are identical across candidates; build
	// them once and copy into each worker's scratch matrix.
	activeBasis := mat.NewDense(n, m, nil)
	fillBasis(activeBasis, terms, s.X)

	var expiredFlag atomic.Bool
	result := &searchResult{}

	scanErr := parallel.ForEachChunk(ctx, len(cands), s.workers, func(ctx context.Context, start, end int) error {
		// Per-worker scratch: active columns plus up to two new ones.
		scratch := mat.NewDense(n, m+2, nil)
		scratch.Slice(0, n, 0, m).(*mat.Dense).Copy(activeBasis)
		newCol := make([]float64, n)

		for i := start; i < end; i++ {
			select {
			case <-ctx.Done():
				expiredFlag.Store(true)
				return nil
			default:
			}
			if !s.budget.tryAcquire() {
				expiredFlag.Store(true)
				return nil
			}

			novel, err := s.newTerms(terms, cands[i])
			if err != nil || len(novel) == 0 {
				continue
			}
			for j, nt := range novel {
				nt.EvalColumn(newCol, s.X)
				scratch.SetCol(m+j, newCol)
			}
			basis := scratch.Slice(0, n, 0, m+len(novel)).(*mat.Dense)

			coef, rss, err := s.fitter.FitLeastSquares(basis, s.y)
			if err == nil {
				result.offer(i, rss, coef, cands[i], novel)
				continue
			}
			if len(novel) < 2 {
				// Degenerate or unstable single-column candidate: excluded
				// from consideration, never fatal to the search.
				continue
			}
			// A rank-deficient pair does not disqualify the knot. Once a
			// predictor carries one hinge pair, the two orientations of any
			// further pair on it sum to a line already in the basis, so the
			// joint refit always fails; each orientation alone can still be
			// informative. Retry them as single-term additions and keep
			// whichever fits.
			for _, nt := range novel {
				nt.EvalColumn(newCol, s.X)
				scratch.SetCol(m, newCol)
				single := scratch.Slice(0, n, 0, m+1).(*mat.Dense)
				coef, rss, err := s.fitter.FitLeastSquares(single, s.y)
				if err != nil {
					continue
				}
				result.offer(i, rss, coef, cands[i], []Term{nt})
			}
		}
		return nil
	})
	if scanErr != nil {
		return nil, expiredFlag.Load(), scanErr
	}

	if !result.found {
		return nil, expiredFlag.Load(), nil
	}
	return &Addition{
		Parent:      result.cand.parent,
		Pred:        result.cand.pred,
		Knot:        result.cand.knot,
		Mask:        result.cand.mask,
		Categorical: result.cand.categorical,
		NewTerms:    result.novel,
		Coef:        result.coef,
		RSS:         result.rss,
	}, expiredFlag.Load(), nil
}
