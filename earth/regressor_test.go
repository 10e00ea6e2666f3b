package earth

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
)

func TestRegressorNotFitted(t *testing.T) {
	reg := NewRegressor()
	X := mat.NewDense(2, 1, []float64{1, 2})
	y := mat.NewDense(2, 1, []float64{1, 2})

	var notFitted *errors.NotFittedError

	_, err := reg.Predict(X)
	assert.ErrorAs(t, err, &notFitted)

	_, err = reg.Score(X, y)
	assert.ErrorAs(t, err, &notFitted)

	_, err = reg.Model()
	assert.ErrorAs(t, err, &notFitted)

	err = reg.Explain(&bytes.Buffer{})
	assert.ErrorAs(t, err, &notFitted)

	_, err = reg.GCVCurve()
	assert.ErrorAs(t, err, &notFitted)
}

func TestRegressorInputValidation(t *testing.T) {
	good := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	goodY := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	t.Run("invalid config", func(t *testing.T) {
		reg := NewRegressor(WithMaxDegree(0))
		assert.Error(t, reg.Fit(good, goodY))
	})

	t.Run("empty data", func(t *testing.T) {
		reg := NewRegressor()
		var X, y mat.Dense
		assert.ErrorIs(t, reg.Fit(&X, &y), errors.ErrEmptyData)
	})

	t.Run("y not a column vector", func(t *testing.T) {
		reg := NewRegressor()
		yWide := mat.NewDense(4, 2, nil)
		assert.Error(t, reg.Fit(good, yWide))
	})

	t.Run("row count mismatch", func(t *testing.T) {
		reg := NewRegressor()
		yShort := mat.NewDense(3, 1, []float64{1, 2, 3})
		var shapeErr *errors.InputShapeError
		assert.ErrorAs(t, reg.Fit(good, yShort), &shapeErr)
	})

	t.Run("categorical column out of range", func(t *testing.T) {
		reg := NewRegressor(WithCategorical(5))
		assert.Error(t, reg.Fit(good, goodY))
	})
}

// fitOptions keeps the fixture fits deterministic and knot-dense.
func fitOptions(extra ...Option) []Option {
	opts := []Option{WithMinspan(1), WithEndspan(1), WithWorkers(2)}
	return append(opts, extra...)
}

func TestRegressorFitHingeFunction(t *testing.T) {
	X, yv := hingeData(101, 5)
	y := mat.NewDense(101, 1, nil)
	for i := 0; i < 101; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.Fit(X, y))
	require.True(t, reg.IsFitted())

	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9999)

	// Predictions on the training data reproduce the fitted values: RSS
	// recomputed from Predict matches the model's stored RSS.
	m, err := reg.Model()
	require.NoError(t, err)
	pred, err := reg.Predict(X)
	require.NoError(t, err)

	var rss float64
	for i := 0; i < 101; i++ {
		d := y.At(i, 0) - pred.At(i, 0)
		rss += d * d
	}
	assert.InDelta(t, m.RSS(), rss, 1e-8)
}

func TestRegressorScoreShapeMismatch(t *testing.T) {
	X, yv := hingeData(60, 3)
	y := mat.NewDense(60, 1, nil)
	for i := 0; i < 60; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.Fit(X, y))

	var shapeErr *errors.InputShapeError

	// More response rows than feature rows.
	_, err := reg.Score(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(4, 1, []float64{1, 2, 3, 4}))
	assert.ErrorAs(t, err, &shapeErr)

	// Response that is not a column vector.
	_, err = reg.Score(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 2, nil))
	assert.ErrorAs(t, err, &shapeErr)
}

func TestRegressorFitIsIdempotent(t *testing.T) {
	X, yv := noisyHingeData(100)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	regA := NewRegressor(fitOptions(WithMaxTerms(5))...)
	regB := NewRegressor(fitOptions(WithMaxTerms(5))...)
	require.NoError(t, regA.Fit(X, y))
	require.NoError(t, regB.Fit(X, y))

	mA, err := regA.Model()
	require.NoError(t, err)
	mB, err := regB.Model()
	require.NoError(t, err)

	termsA, termsB := mA.Terms(), mB.Terms()
	require.Equal(t, len(termsA), len(termsB))
	for i := range termsA {
		assert.True(t, termsA[i].Equal(termsB[i]), "term %d differs: %s vs %s", i, termsA[i], termsB[i])
	}

	coefA, coefB := mA.Coefficients(), mB.Coefficients()
	require.Equal(t, len(coefA), len(coefB))
	for i := range coefA {
		// Bit-identical, not merely close.
		assert.Equal(t, coefA[i], coefB[i], "coefficient %d differs", i)
	}
	assert.Equal(t, mA.RSS(), mB.RSS())
	assert.Equal(t, mA.GCV(), mB.GCV())
}

func TestRegressorGCVPermutationInvariance(t *testing.T) {
	n := 100
	X, yv := noisyHingeData(n)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	// A fixed row permutation: reverse order.
	Xp := mat.NewDense(n, 1, nil)
	yp := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		Xp.Set(i, 0, X.At(n-1-i, 0))
		yp.Set(i, 0, y.At(n-1-i, 0))
	}

	regA := NewRegressor(fitOptions(WithMaxTerms(5))...)
	regB := NewRegressor(fitOptions(WithMaxTerms(5))...)
	require.NoError(t, regA.Fit(X, y))
	require.NoError(t, regB.Fit(Xp, yp))

	mA, err := regA.Model()
	require.NoError(t, err)
	mB, err := regB.Model()
	require.NoError(t, err)

	assert.InEpsilon(t, mA.GCV(), mB.GCV(), 1e-9)
	assert.InEpsilon(t, mA.RSS(), mB.RSS(), 1e-9)
}

func TestRegressorBinaryResponse(t *testing.T) {
	n := 120
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 10 * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		if x > 5 {
			y.Set(i, 0, 1)
		}
	}

	reg := NewRegressor(fitOptions(WithMaxTerms(9))...)
	require.NoError(t, reg.Fit(X, y))

	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.7)

	pred, err := reg.Predict(X)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.False(t, math.IsNaN(pred.At(i, 0)), "prediction %d is NaN", i)
	}
}

func TestRegressorCategoricalPredictor(t *testing.T) {
	n := 90
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		code := float64(i % 3)
		X.Set(i, 0, code)
		if code == 1 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 5)
		}
	}

	reg := NewRegressor(fitOptions(WithCategorical(0))...)
	require.NoError(t, reg.Fit(X, y))

	pred, err := reg.Predict(mat.NewDense(3, 1, []float64{0, 1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 5, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 1, pred.At(1, 0), 1e-9)
	assert.InDelta(t, 5, pred.At(2, 0), 1e-9)

	// Unseen level at prediction time.
	var shapeErr *errors.InputShapeError
	_, err = reg.Predict(mat.NewDense(1, 1, []float64{3}))
	assert.ErrorAs(t, err, &shapeErr)

	// Non-code value at prediction time.
	_, err = reg.Predict(mat.NewDense(1, 1, []float64{1.5}))
	assert.ErrorAs(t, err, &shapeErr)
}

func TestRegressorPredictSchemaMismatch(t *testing.T) {
	X, yv := hingeData(60, 3)
	y := mat.NewDense(60, 1, nil)
	for i := 0; i < 60; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.Fit(X, y))

	var shapeErr *errors.InputShapeError
	_, err := reg.Predict(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.ErrorAs(t, err, &shapeErr)
}

func TestRegressorTimeBudget(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	X, yv := wShapeData(101)
	y := mat.NewDense(101, 1, nil)
	for i := 0; i < 101; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions(WithTimeBudget(time.Nanosecond))...)
	require.NoError(t, reg.Fit(X, y))

	// The budget expires within the first search steps, cutting the pass
	// short, and the expiry surfaces as a warning rather than an error.
	m, err := reg.Model()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(m.Terms()), 3)
	assert.NotEmpty(t, warnings)
}

func TestRegressorCandidateBudget(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	X, yv := wShapeData(101)
	y := mat.NewDense(101, 1, nil)
	for i := 0; i < 101; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions(WithMaxCandidates(3), WithWorkers(1))...)
	require.NoError(t, reg.Fit(X, y))
	require.True(t, reg.IsFitted())

	require.NotEmpty(t, warnings)
	var budgetWarning *errors.SearchBudgetWarning
	assert.ErrorAs(t, warnings[0], &budgetWarning)
	assert.Equal(t, "forward", budgetWarning.Phase)
}

func TestRegressorContextCancellation(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(func(error) {})

	X, yv := wShapeData(101)
	y := mat.NewDense(101, 1, nil)
	for i := 0; i < 101; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.FitContext(ctx, X, y))

	m, err := reg.Model()
	require.NoError(t, err)
	assert.Equal(t, 1, len(m.Terms()))
}

func TestRegressorSineRecoversKnots(t *testing.T) {
	n := 500
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		noise := 0.001 * math.Sin(float64(i)*78.233)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x)+noise)
	}

	reg := NewRegressor(WithMaxDegree(1), WithMaxTerms(5), WithWorkers(2))
	require.NoError(t, reg.Fit(X, y))

	m, err := reg.Model()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(m.History()), 5, "forward pass overran the term cap")

	// Collect distinct knot values in discovery order from the forward
	// history. The first two must sit near the documented two-knot sine
	// decomposition, each within 5% of the predictor range; the curve is
	// antisymmetric about pi, so the discovery may land on either of the two
	// mirror-image knot sets and the sorted values are compared.
	var knots []float64
	for _, term := range m.History() {
		for _, f := range term.Factors() {
			if f.Kind != KindHinge {
				continue
			}
			seen := false
			for _, k := range knots {
				if k == f.Knot {
					seen = true
					break
				}
			}
			if !seen {
				knots = append(knots, f.Knot)
			}
		}
	}
	require.GreaterOrEqual(t, len(knots), 2, "forward pass discovered fewer than two knots")
	first, second := knots[0], knots[1]
	if first > second {
		first, second = second, first
	}

	tol := 0.05 * 2 * math.Pi
	assert.InDelta(t, 1.18, first, tol, "lower knot %v", first)
	assert.InDelta(t, 4.90, second, tol, "upper knot %v", second)

	score, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)
}

func TestRegressorExplain(t *testing.T) {
	X, yv := hingeData(80, 4)
	y := mat.NewDense(80, 1, nil)
	for i := 0; i < 80; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, reg.Explain(&buf))

	out := buf.String()
	assert.Contains(t, out, "earth model")
	assert.Contains(t, out, "max(0,")
	assert.True(t, strings.Contains(out, "* 1"), "intercept line missing: %q", out)
}

func TestRegressorGCVCurve(t *testing.T) {
	X, yv := noisyHingeData(100)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions(WithMaxTerms(5))...)
	require.NoError(t, reg.Fit(X, y))

	curve, err := reg.GCVCurve()
	require.NoError(t, err)
	require.NotEmpty(t, curve)

	m, err := reg.Model()
	require.NoError(t, err)
	assert.Equal(t, len(m.History()), curve[0].Terms)
	assert.Equal(t, 1, curve[len(curve)-1].Terms)
}
