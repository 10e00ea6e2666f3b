// Package earth implements multivariate adaptive regression splines (MARS),
// the algorithm popularized by the R "earth" package.
//
// A fitted model is a weighted sum of terms, where each term is a product of
// hinge functions max(0, x−t) / max(0, t−x) on continuous predictors and
// binary set-membership indicators on categorical predictors. Fitting runs
// in two phases: a greedy forward pass that grows an over-fit basis by
// repeatedly adding the hinge pair with the largest residual-sum-of-squares
// reduction, and a backward pruning pass that removes terms one at a time
// and keeps the subset with the best generalized cross-validation (GCV)
// score.
//
// Basic usage:
//
//	reg := earth.NewRegressor(
//	    earth.WithMaxTerms(21),
//	    earth.WithMaxDegree(2),
//	)
//	if err := reg.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	yHat, err := reg.Predict(XNew)
//
// The fit is deterministic: repeated fits on identical inputs choose
// bit-identical terms and coefficients, even though candidate scoring inside
// a single search step runs on multiple goroutines. A binary 0/1 response
// may be passed to Fit directly; it is treated as a least-squares problem on
// the indicator.
package earth
