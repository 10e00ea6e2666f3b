package model

import "gonum.org/v1/gonum/mat"

// Fitter is the interface for trainable estimators.
type Fitter interface {
	// Fit trains the estimator on X and y.
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for estimators that can predict.
type Predictor interface {
	// Predict returns predictions for X as an n×1 matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for estimators that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R² of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor combines the interfaces a regression estimator satisfies.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}
