package earth

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
	"github.com/splinefit/goearth/pkg/log"
)

// GridSearch sweeps MaxDegree and MaxTerms combinations, scoring each with
// k-fold cross-validation and refitting the best combination on the full
// data. It is an external tuner around the core: Fit is invoked once per
// hyperparameter combination and fold, stateless across calls.
type GridSearch struct {
	// Base is the configuration shared by all combinations.
	Base Config

	// MaxDegrees and MaxTerms list the values to sweep. Empty lists fall
	// back to the Base value.
	MaxDegrees []int
	MaxTerms   []int

	// Categorical marks categorical predictor columns, as in WithCategorical.
	Categorical []int

	// Splitter provides the CV folds. Nil selects 5-fold without shuffling.
	Splitter KFoldSplitter
}

// GridSearchResult reports the winning combination and its CV error,
// together with the scores of every combination swept.
type GridSearchResult struct {
	BestConfig Config
	BestMSE    float64
	Regressor  *Regressor
	Scores     []GridScore
}

// GridScore is the CV error of one swept combination.
type GridScore struct {
	Config  Config
	MeanMSE float64
	StdMSE  float64
}

// Run executes the sweep and returns the best-scoring combination refit on
// the full data. Combinations are swept in listed order; ties keep the
// earlier combination.
func (g *GridSearch) Run(X, y mat.Matrix) (*GridSearchResult, error) {
	degrees := g.MaxDegrees
	if len(degrees) == 0 {
		degrees = []int{g.Base.MaxDegree}
	}
	terms := g.MaxTerms
	if len(terms) == 0 {
		terms = []int{g.Base.MaxTerms}
	}

	logger := log.GetLoggerWithName("earth").With(log.OperationKey, "grid_search")

	result := &GridSearchResult{BestMSE: math.Inf(1)}
	for _, deg := range degrees {
		for _, mt := range terms {
			cfg := g.Base
			cfg.MaxDegree = deg
			cfg.MaxTerms = mt

			cv, err := CrossValidate(X, y, cfg, g.Categorical, g.Splitter)
			if err != nil {
				return nil, errors.Wrapf(err, "grid search: max_degree=%d max_terms=%d", deg, mt)
			}

			result.Scores = append(result.Scores, GridScore{Config: cfg, MeanMSE: cv.MeanMSE, StdMSE: cv.StdMSE})
			logger.Debug("combination scored",
				"max_degree", deg,
				"max_terms", mt,
				"mean_mse", cv.MeanMSE,
			)

			if cv.MeanMSE < result.BestMSE {
				result.BestMSE = cv.MeanMSE
				result.BestConfig = cfg
			}
		}
	}

	reg := NewRegressor(WithConfig(result.BestConfig), WithCategorical(g.Categorical...))
	if err := reg.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "grid search: final fit")
	}
	result.Regressor = reg

	logger.Info("grid search finished",
		"best_max_degree", result.BestConfig.MaxDegree,
		"best_max_terms", result.BestConfig.MaxTerms,
		"best_mean_mse", result.BestMSE,
	)
	return result, nil
}
