// Package goearth provides multivariate adaptive regression splines (MARS)
// for Go, with a scikit-learn-like estimator API.
//
// The fitting engine discovers a piecewise-linear basis expansion
// automatically: a greedy forward pass places hinge-function terms at
// data-driven knots (and binary level-set splits on categorical
// predictors), then a backward pruning pass removes terms using a
// generalized cross-validation criterion.
//
// # Quick start
//
//	package main
//
//	import (
//	    "log"
//	    "os"
//
//	    "github.com/splinefit/goearth/earth"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	    y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
//
//	    reg := earth.NewRegressor(earth.WithMaxTerms(9))
//	    if err := reg.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = reg.Explain(os.Stdout)
//	}
//
// # Packages
//
//   - earth: the MARS engine (forward pass, GCV pruning, prediction,
//     cross-validation and grid-search harnesses)
//   - metrics: regression metrics (MSE, RMSE, MAE, R²)
//   - core/model: estimator interfaces, state, persistence
//   - core/parallel: CPU-parallel loop helpers
//   - pkg/errors, pkg/log: structured errors and logging
package goearth
