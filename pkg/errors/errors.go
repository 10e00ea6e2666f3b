// Package errors provides the error handling and warning system used across
// goearth. Error types carry structured fields for logging and are created
// with stack traces attached via cockroachdb/errors.
package errors

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// Default handler logs to the standard logger.
		log.Printf("goearth-warning: %v\n", w)
	}
	// zerolog warning sink, installed lazily to avoid an import cycle with pkg/log.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler installs a library-wide handler for non-fatal warnings,
// such as a search budget expiring mid-pass.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the zerolog sink when one is installed,
// otherwise through the plain handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// SearchBudgetWarning is emitted when a time or candidate budget expires
// mid-search and the engine falls back to the best candidate found so far.
type SearchBudgetWarning struct {
	Phase     string // "forward" or "prune"
	Evaluated int    // candidates scored before expiry
	Elapsed   time.Duration
	BestSoFar bool // whether a usable candidate was found before expiry
}

func (w *SearchBudgetWarning) Error() string {
	return fmt.Sprintf("search budget expired in %s pass after %d candidates (%s); using best result so far",
		w.Phase, w.Evaluated, w.Elapsed)
}

// MarshalZerologObject adds structured warning fields to a zerolog event.
func (w *SearchBudgetWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("phase", w.Phase).
		Int("evaluated", w.Evaluated).
		Dur("elapsed", w.Elapsed).
		Bool("best_so_far", w.BestSoFar).
		Str("type", "SearchBudgetWarning")
}

// NewSearchBudgetWarning creates a new SearchBudgetWarning.
func NewSearchBudgetWarning(phase string, evaluated int, elapsed time.Duration, bestSoFar bool) *SearchBudgetWarning {
	return &SearchBudgetWarning{Phase: phase, Evaluated: evaluated, Elapsed: elapsed, BestSoFar: bestSoFar}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// NotFittedError is returned when Predict, Score or Explain is called on an
// estimator before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("goearth: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when input dimensions disagree with what an
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/predictors
}

func (e *DimensionError) Error() string {
	axisName := "predictors"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("goearth: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "predictors"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// InputShapeError is returned when the shape or schema of input data does
// not match the contract: X/y row mismatches at fit time, or a prediction
// matrix whose columns disagree with the training schema.
type InputShapeError struct {
	Phase    string // "training" or "prediction"
	Expected []int
	Got      []int
	Detail   string // description of the schema mismatch, if any
}

func (e *InputShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("goearth: input shape mismatch in %s phase: %s. Expected shape %v, got %v",
			e.Phase, e.Detail, e.Expected, e.Got)
	}
	return fmt.Sprintf("goearth: input shape mismatch in %s phase. Expected shape %v, got %v",
		e.Phase, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *InputShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("phase", e.Phase).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("detail", e.Detail).
		Str("type", "InputShapeError")
}

// NewInputShapeError creates an InputShapeError with a stack trace attached.
func NewInputShapeError(phase string, expected, got []int) error {
	err := &InputShapeError{Phase: phase, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// NewSchemaMismatchError creates an InputShapeError describing a schema
// disagreement between training and prediction data.
func NewSchemaMismatchError(detail string, expected, got []int) error {
	err := &InputShapeError{Phase: "prediction", Expected: expected, Got: got, Detail: detail}
	return errors.WithStack(err)
}

// DegenerateBasisError is returned by the least-squares collaborator when a
// candidate basis matrix is rank deficient. The search recovers from it by
// skipping the candidate; it is never fatal to a whole fit.
type DegenerateBasisError struct {
	Op      string
	Rows    int
	Columns int
	Rank    int
}

func (e *DegenerateBasisError) Error() string {
	return fmt.Sprintf("goearth: %s: basis matrix is rank deficient (%dx%d, rank %d)", e.Op, e.Rows, e.Columns, e.Rank)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DegenerateBasisError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Int("columns", e.Columns).
		Int("rank", e.Rank).
		Str("type", "DegenerateBasisError")
}

// NewDegenerateBasisError creates a DegenerateBasisError with a stack trace
// attached. The error matches ErrSingularMatrix under Is, so callers can
// test for singularity without naming the concrete type.
func NewDegenerateBasisError(op string, rows, cols, rank int) error {
	err := &DegenerateBasisError{Op: op, Rows: rows, Columns: cols, Rank: rank}
	return errors.Mark(errors.WithStack(err), ErrSingularMatrix)
}

// GCVDegenerateError is returned when the effective parameter count of a
// candidate model reaches or exceeds the sample count, making the GCV
// denominator non-positive. The forward pass caps growth so that pruning
// never scores models in this region.
type GCVDegenerateError struct {
	EffectiveParams float64
	Samples         int
}

func (e *GCVDegenerateError) Error() string {
	return fmt.Sprintf("goearth: GCV undefined: effective parameters (%.1f) >= samples (%d)", e.EffectiveParams, e.Samples)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *GCVDegenerateError) MarshalZerologObject(event *zerolog.Event) {
	event.Float64("effective_params", e.EffectiveParams).
		Int("samples", e.Samples).
		Str("type", "GCVDegenerateError")
}

// NewGCVDegenerateError creates a GCVDegenerateError with a stack trace attached.
func NewGCVDegenerateError(effectiveParams float64, samples int) error {
	err := &GCVDegenerateError{EffectiveParams: effectiveParams, Samples: samples}
	return errors.WithStack(err)
}

// BudgetExceededError is returned only when a search cannot terminate and no
// time or candidate budget was configured to bound it. With a budget set,
// expiry degrades to the best model found so far instead of erroring.
type BudgetExceededError struct {
	Phase     string
	Evaluated int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("goearth: %s pass cannot terminate after %d candidate evaluations and no budget is configured", e.Phase, e.Evaluated)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *BudgetExceededError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("phase", e.Phase).
		Int("evaluated", e.Evaluated).
		Str("type", "BudgetExceededError")
}

// NewBudgetExceededError creates a BudgetExceededError with a stack trace attached.
func NewBudgetExceededError(phase string, evaluated int) error {
	err := &BudgetExceededError{Phase: phase, Evaluated: evaluated}
	return errors.WithStack(err)
}

// ValidationError is returned when a configuration parameter fails validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("goearth: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace attached.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument value is invalid for an operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("goearth: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// NumericalInstabilityError reports NaN, Inf or overflow detected during a
// numeric computation.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Step      int // search step at which the instability was observed
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("goearth: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Step, valStr)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("step", e.Step).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a
// stack trace attached.
func NewNumericalInstabilityError(operation string, values []float64, step int) error {
	err := &NumericalInstabilityError{Operation: operation, Values: values, Step: step}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be assigned to target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty matrix or vector is passed in.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix marks every DegenerateBasisError, so singularity can
	// be matched with Is without naming the concrete type.
	ErrSingularMatrix = New("singular matrix")

	// ErrNoCandidates reports that a knot search found no eligible
	// (parent, predictor, knot) candidate at all.
	ErrNoCandidates = New("no eligible candidates")
)
