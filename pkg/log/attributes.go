// Standard attribute keys for fitting operations.
//
// Using these keys keeps log records consistent across the forward pass,
// pruning, and prediction, which makes runs comparable in log analysis.
// Keys follow a hierarchical naming convention ("model.name", "data.samples").

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type. Example: "earth.Regressor".
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed.
	// Standard values: "fit", "predict", "score", "prune", "cross_validate".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "earth", "metrics".
	ComponentKey = "ml.component"

	// PassKey names the fitting phase: "forward" or "backward".
	PassKey = "ml.pass"
)

// Data shape.
const (
	// SamplesKey is the number of rows in the dataset.
	SamplesKey = "data.samples"

	// PredictorsKey is the number of predictor columns.
	PredictorsKey = "data.predictors"

	// CategoricalKey is the number of categorical predictor columns.
	CategoricalKey = "data.categorical"
)

// Search progress and model quality.
const (
	// TermsKey is the number of active terms in the current model.
	TermsKey = "search.terms"

	// StepKey is the index of the current forward or backward step.
	StepKey = "search.step"

	// CandidatesKey is the number of candidates scored in a step.
	CandidatesKey = "search.candidates"

	// KnotKey is the knot value chosen by a forward step.
	KnotKey = "search.knot"

	// PredictorKey is the predictor index chosen by a forward step.
	PredictorKey = "search.predictor"

	// RSSKey is the residual sum of squares of the current model.
	RSSKey = "model.rss"

	// GCVKey is the generalized cross-validation score of the current model.
	GCVKey = "model.gcv"
)

// Performance.
const (
	// DurationMsKey is the wall-clock duration of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey is the number of workers used by a parallel scan.
	WorkersKey = "perf.workers"
)
