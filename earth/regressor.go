package earth

import (
	"context"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/core/model"
	"github.com/splinefit/goearth/pkg/errors"
	"github.com/splinefit/goearth/pkg/log"
)

// Regressor is the MARS estimator. It runs the forward pass and the
// backward pruning pass and exposes the selected Model.
//
// A continuous response is fit as a regression; a 0/1-coded binary response
// is fit as a least-squares problem on the indicator.
type Regressor struct {
	model.BaseEstimator

	cfg         Config
	categorical []int
	fitter      LeastSquaresFitter
	logger      log.Logger

	fitted *Model
}

var _ model.Regressor = (*Regressor)(nil)

// NewRegressor creates a Regressor with default hyperparameters.
func NewRegressor(opts ...Option) *Regressor {
	r := &Regressor{
		cfg:    DefaultConfig(),
		fitter: NewQRFitter(),
		logger: log.GetLoggerWithName("earth"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit trains the estimator on X and y.
func (r *Regressor) Fit(X, y mat.Matrix) error {
	return r.FitContext(context.Background(), X, y)
}

// FitContext trains the estimator, honoring cancellation from ctx and the
// configured time budget. On budget expiry the best model found so far is
// kept rather than returning an error.
func (r *Regressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	const op = "Regressor.Fit"

	if err := r.cfg.Validate(); err != nil {
		return err
	}

	n, p := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || p == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if ry != n {
		return errors.NewInputShapeError("training", []int{n, 1}, []int{ry, cy})
	}

	schema, err := NewSchema(p, r.categorical)
	if err != nil {
		return err
	}

	// Work on dense copies so the search can use raw row access and callers
	// keep ownership of their matrices.
	XD := mat.DenseCopyOf(X)
	yv := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yv.SetVec(i, y.At(i, 0))
	}

	if err := schema.Capture(XD); err != nil {
		return err
	}

	logger := r.logger.With(
		log.ModelNameKey, "earth.Regressor",
		log.SamplesKey, n,
		log.PredictorsKey, p,
		log.CategoricalKey, schema.NumCategorical(),
	)
	logger.Info("fit started", log.OperationKey, "fit")
	start := time.Now()

	if r.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TimeBudget)
		defer cancel()
	}

	budget := newSearchBudget(r.cfg.MaxCandidates)
	searcher := newKnotSearcher(XD, yv, schema, r.cfg, r.fitter, budget)

	forward, err := runForwardPass(ctx, searcher, logger)
	if err != nil {
		return errors.Wrap(err, op)
	}

	pr, err := newPruner(XD, yv, r.fitter, r.cfg, forward.terms).run(ctx, forward, logger)
	if err != nil {
		return errors.Wrap(err, op)
	}

	r.fitted = newModel(schema, forward.terms, pr, r.cfg.PenaltyD, n)
	r.SetFitted()

	logger.Info("fit finished",
		log.OperationKey, "fit",
		log.TermsKey, len(r.fitted.Terms()),
		log.RSSKey, r.fitted.RSS(),
		log.GCVKey, r.fitted.GCV(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns predictions for X as an n×1 matrix.
func (r *Regressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "Predict")
	}
	return r.fitted.Predict(X)
}

// Score returns the coefficient of determination R² on X, y.
func (r *Regressor) Score(X, y mat.Matrix) (float64, error) {
	if !r.IsFitted() {
		return 0, errors.NewNotFittedError("Regressor", "Score")
	}

	n, cy := y.Dims()
	nx, _ := X.Dims()
	if cy != 1 || nx != n {
		return 0, errors.NewInputShapeError("scoring", []int{nx, 1}, []int{n, cy})
	}

	yPred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrue := y.At(i, 0)
		diff := yTrue - yPred.At(i, 0)
		dev := yTrue - yMean
		tss += dev * dev
		rss += diff * diff
	}
	if tss == 0 {
		return 0, errors.NewValueError("Regressor.Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// Model returns the fitted model artifact.
func (r *Regressor) Model() (*Model, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "Model")
	}
	return r.fitted, nil
}

// Explain writes a human-readable description of the fitted model to w.
func (r *Regressor) Explain(w io.Writer) error {
	if !r.IsFitted() {
		return errors.NewNotFittedError("Regressor", "Explain")
	}
	return r.fitted.Explain(w)
}

// GCVCurve returns the pruning diagnostic curve of the fitted model.
func (r *Regressor) GCVCurve() ([]GCVPoint, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "GCVCurve")
	}
	return r.fitted.GCVCurve(), nil
}
