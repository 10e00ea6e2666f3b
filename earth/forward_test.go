package earth

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/log"
)

// wShapeData builds a single-predictor data set with kinks at 3 and 7, so a
// good fit needs two hinge pairs.
func wShapeData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := 10 * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		y.SetVec(i, math.Abs(x-3)+math.Abs(x-7))
	}
	return X, y
}

func newTestSearcher(t *testing.T, X *mat.Dense, y *mat.VecDense, cfg Config) *knotSearcher {
	t.Helper()
	schema, err := NewSchema(1, nil)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if err := schema.Capture(X); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	return newKnotSearcher(X, y, schema, cfg, NewQRFitter(), newSearchBudget(cfg.MaxCandidates))
}

func TestForwardPassReducesRSS(t *testing.T) {
	X, y := wShapeData(101)
	cfg := searchConfig()
	cfg.MaxTerms = 9
	searcher := newTestSearcher(t, X, y, cfg)
	logger, _ := log.NewTestLogger(log.LevelError)

	// Replay the forward loop step by step to observe every accepted RSS.
	n, _ := X.Dims()
	terms := []Term{Intercept()}
	basis := mat.NewDense(n, 1, nil)
	fillBasis(basis, terms, X)
	_, rss, err := searcher.fitter.FitLeastSquares(basis, y)
	if err != nil {
		t.Fatalf("intercept fit: %v", err)
	}
	rss0 := rss

	steps := 0
	for len(terms) < cfg.MaxTerms {
		add, expired, err := searcher.search(context.Background(), terms)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if expired || add == nil {
			break
		}
		if add.RSS > rss {
			t.Fatalf("step %d increased RSS: %v -> %v", steps, rss, add.RSS)
		}
		if rss-add.RSS <= cfg.ImprovementThreshold*rss {
			break
		}
		if len(terms)+len(add.NewTerms) > cfg.MaxTerms {
			break
		}
		terms = append(terms, add.NewTerms...)
		rss = add.RSS
		steps++
		if rss <= cfg.ImprovementThreshold*rss0 {
			break
		}
	}
	if steps < 2 {
		t.Fatalf("forward loop accepted %d steps, want at least 2", steps)
	}

	// The packaged pass must reach the same place.
	searcher2 := newTestSearcher(t, X, y, cfg)
	fwd, err := runForwardPass(context.Background(), searcher2, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if len(fwd.terms) != len(terms) {
		t.Errorf("terms: got %d, want %d", len(fwd.terms), len(terms))
	}
	if fwd.rss != rss {
		t.Errorf("rss: got %v, want %v", fwd.rss, rss)
	}
}

func TestForwardPassStartsWithIntercept(t *testing.T) {
	X, y := hingeData(60, 3)
	searcher := newTestSearcher(t, X, y, searchConfig())
	logger, _ := log.NewTestLogger(log.LevelError)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if !fwd.terms[0].IsIntercept() {
		t.Error("term 0 is not the intercept")
	}
	if len(fwd.coef) != len(fwd.terms) {
		t.Errorf("coefficients: got %d, want %d", len(fwd.coef), len(fwd.terms))
	}
}

func TestForwardPassRespectsTermCap(t *testing.T) {
	X, y := wShapeData(101)
	cfg := searchConfig()
	cfg.MaxTerms = 3
	searcher := newTestSearcher(t, X, y, cfg)
	logger, _ := log.NewTestLogger(log.LevelError)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if len(fwd.terms) > 3 {
		t.Errorf("terms: got %d, want at most 3", len(fwd.terms))
	}
}

func TestForwardPassStopsOnExactFit(t *testing.T) {
	// One hinge pair fits |x-5| exactly; further additions cannot clear the
	// relative improvement threshold.
	X, y := hingeData(101, 5)
	cfg := searchConfig()
	cfg.MaxTerms = 11
	searcher := newTestSearcher(t, X, y, cfg)
	logger, _ := log.NewTestLogger(log.LevelError)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if len(fwd.terms) != 3 {
		t.Errorf("terms: got %d, want 3 (intercept plus one pair)", len(fwd.terms))
	}
	if fwd.rss > 1e-10 {
		t.Errorf("rss: got %v, want ~0", fwd.rss)
	}
}

func TestForwardPassConstantColumnSkipped(t *testing.T) {
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		X.Set(i, 0, x)
		X.Set(i, 1, 2.5)
		y.SetVec(i, math.Abs(x-4))
	}
	schema, _ := NewSchema(2, nil)
	if err := schema.Capture(X); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	searcher := newKnotSearcher(X, y, schema, searchConfig(), NewQRFitter(), newSearchBudget(0))
	logger, _ := log.NewTestLogger(log.LevelError)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	for _, term := range fwd.terms {
		if term.HasPredictor(1) {
			t.Errorf("term %s references the constant predictor", term)
		}
	}
	if len(fwd.terms) < 3 {
		t.Errorf("terms: got %d, want at least 3", len(fwd.terms))
	}
}

func TestForwardPassCollinearPredictorsPreferLowestIndex(t *testing.T) {
	// Column 1 duplicates column 0: every candidate pair on predictor 1 has
	// the same RSS as its twin on predictor 0 and a higher enumeration
	// ordinal, so predictor 0 must win; afterwards any pair on predictor 1
	// duplicates an existing column and is degenerate.
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		X.Set(i, 0, x)
		X.Set(i, 1, x)
		y.SetVec(i, math.Abs(x-4))
	}
	schema, _ := NewSchema(2, nil)
	if err := schema.Capture(X); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	searcher := newKnotSearcher(X, y, schema, searchConfig(), NewQRFitter(), newSearchBudget(0))
	logger, _ := log.NewTestLogger(log.LevelError)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	for _, term := range fwd.terms {
		if term.HasPredictor(1) {
			t.Errorf("term %s references the duplicated predictor", term)
		}
	}
}

func TestForwardPassWarnsWithoutCandidates(t *testing.T) {
	// A lone constant predictor admits no knot, so the pass stays at the
	// intercept and says so.
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		y.SetVec(i, float64(i))
	}
	schema, _ := NewSchema(1, nil)
	if err := schema.Capture(X); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	searcher := newKnotSearcher(X, y, schema, searchConfig(), NewQRFitter(), newSearchBudget(0))
	logger, _ := log.NewTestLogger(log.LevelWarn)

	fwd, err := runForwardPass(context.Background(), searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if len(fwd.terms) != 1 {
		t.Fatalf("terms: got %d, want 1 (intercept only)", len(fwd.terms))
	}
	if !logger.ContainsMessage("no eligible knot candidates") {
		t.Error("missing warning about an empty candidate set")
	}
}

func TestForwardPassCancelledContext(t *testing.T) {
	X, y := wShapeData(101)
	searcher := newTestSearcher(t, X, y, searchConfig())
	logger, _ := log.NewTestLogger(log.LevelError)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fwd, err := runForwardPass(ctx, searcher, logger)
	if err != nil {
		t.Fatalf("runForwardPass: %v", err)
	}
	if len(fwd.terms) != 1 {
		t.Errorf("terms: got %d, want 1 (intercept only)", len(fwd.terms))
	}
}
