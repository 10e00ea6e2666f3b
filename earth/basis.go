package earth

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
)

// Direction selects which side of the knot a hinge function is nonzero on.
type Direction int8

const (
	// DirLeft evaluates as max(0, knot − x).
	DirLeft Direction = iota
	// DirRight evaluates as max(0, x − knot).
	DirRight
)

func (d Direction) String() string {
	if d == DirLeft {
		return "left"
	}
	return "right"
}

// FactorKind distinguishes hinge factors on continuous predictors from
// indicator factors on categorical predictors.
type FactorKind int8

const (
	// KindHinge is a piecewise-linear hinge on a continuous predictor.
	KindHinge FactorKind = iota
	// KindIndicator is a set-membership indicator on a categorical predictor.
	KindIndicator
)

// Factor is one multiplicative component of a term. Factors are immutable
// values: once created, a knot is never moved and a level set never changes.
type Factor struct {
	Pred int        `json:"pred"`
	Kind FactorKind `json:"kind"`

	// Hinge fields.
	Knot float64   `json:"knot,omitempty"`
	Dir  Direction `json:"dir,omitempty"`

	// Indicator field: bitmask over category codes. The factor evaluates to
	// 1 when the row's code is in the set, 0 otherwise.
	Levels uint64 `json:"levels,omitempty"`
}

// NewHinge creates a hinge factor on a continuous predictor.
func NewHinge(pred int, knot float64, dir Direction) Factor {
	return Factor{Pred: pred, Kind: KindHinge, Knot: knot, Dir: dir}
}

// NewIndicator creates an indicator factor on a categorical predictor.
// levels is a bitmask over category codes.
func NewIndicator(pred int, levels uint64) Factor {
	return Factor{Pred: pred, Kind: KindIndicator, Levels: levels}
}

// Eval evaluates the factor at a single predictor value.
func (f Factor) Eval(x float64) float64 {
	switch f.Kind {
	case KindIndicator:
		code := uint(x)
		if f.Levels&(1<<code) != 0 {
			return 1
		}
		return 0
	default:
		if f.Dir == DirLeft {
			return math.Max(0, f.Knot-x)
		}
		return math.Max(0, x-f.Knot)
	}
}

// Equal reports whether two factors are identical.
func (f Factor) Equal(o Factor) bool {
	return f == o
}

// String renders the factor in the form used by Explain output.
func (f Factor) String() string {
	if f.Kind == KindIndicator {
		var levels []string
		for code := 0; code < 64; code++ {
			if f.Levels&(1<<uint(code)) != 0 {
				levels = append(levels, fmt.Sprintf("%d", code))
			}
		}
		return fmt.Sprintf("x%d in {%s}", f.Pred, strings.Join(levels, ","))
	}
	if f.Dir == DirLeft {
		return fmt.Sprintf("max(0, %g - x%d)", f.Knot, f.Pred)
	}
	return fmt.Sprintf("max(0, x%d - %g)", f.Pred, f.Knot)
}

// Term is a product of factors on distinct predictors. The zero Term is the
// intercept, which is always term 0 of a model. Terms are immutable values;
// WithFactor returns a new Term and never mutates the receiver.
type Term struct {
	factors []Factor
}

// Intercept returns the empty term.
func Intercept() Term {
	return Term{}
}

// NewTerm creates a term from the given factors. It returns an error when
// two factors reference the same predictor (self-interaction is not a legal
// term).
func NewTerm(factors ...Factor) (Term, error) {
	t := Term{}
	var err error
	for _, f := range factors {
		t, err = t.WithFactor(f)
		if err != nil {
			return Term{}, err
		}
	}
	return t, nil
}

// Degree returns the number of factors in the term. The intercept has
// degree 0.
func (t Term) Degree() int {
	return len(t.factors)
}

// IsIntercept reports whether the term is the intercept.
func (t Term) IsIntercept() bool {
	return len(t.factors) == 0
}

// Factors returns a copy of the term's factors.
func (t Term) Factors() []Factor {
	out := make([]Factor, len(t.factors))
	copy(out, t.factors)
	return out
}

// HasPredictor reports whether any factor in the term references pred.
func (t Term) HasPredictor(pred int) bool {
	for _, f := range t.factors {
		if f.Pred == pred {
			return true
		}
	}
	return false
}

// WithFactor returns a new term extending t by one factor. It returns an
// error when the factor's predictor already appears in the term.
func (t Term) WithFactor(f Factor) (Term, error) {
	if t.HasPredictor(f.Pred) {
		return Term{}, errors.NewValueError("Term.WithFactor",
			fmt.Sprintf("predictor %d already appears in the term", f.Pred))
	}
	factors := make([]Factor, len(t.factors)+1)
	copy(factors, t.factors)
	factors[len(t.factors)] = f
	return Term{factors: factors}, nil
}

// Eval evaluates the term's factor product against one row of predictors.
// The intercept evaluates to 1.
func (t Term) Eval(row []float64) float64 {
	prod := 1.0
	for _, f := range t.factors {
		v := f.Eval(row[f.Pred])
		if v == 0 {
			return 0
		}
		prod *= v
	}
	return prod
}

// EvalColumn fills dst with the term evaluated against every row of X.
// dst must have length equal to the row count of X.
func (t Term) EvalColumn(dst []float64, X *mat.Dense) {
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		dst[i] = t.Eval(X.RawRowView(i))
	}
}

// Equal reports whether two terms have identical factor sequences.
func (t Term) Equal(o Term) bool {
	if len(t.factors) != len(o.factors) {
		return false
	}
	for i := range t.factors {
		if t.factors[i] != o.factors[i] {
			return false
		}
	}
	return true
}

// String renders the term as a product of factors; the intercept renders
// as "1".
func (t Term) String() string {
	if t.IsIntercept() {
		return "1"
	}
	parts := make([]string, len(t.factors))
	for i, f := range t.factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, " * ")
}

// MarshalJSON implements json.Marshaler. A term serializes as its factor
// slice; the intercept serializes as an empty array.
func (t Term) MarshalJSON() ([]byte, error) {
	if t.factors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.factors)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Term) UnmarshalJSON(data []byte) error {
	var factors []Factor
	if err := json.Unmarshal(data, &factors); err != nil {
		return err
	}
	if len(factors) == 0 {
		factors = nil
	}
	seen := make(map[int]bool, len(factors))
	for _, f := range factors {
		if seen[f.Pred] {
			return errors.NewValueError("Term.UnmarshalJSON",
				fmt.Sprintf("predictor %d appears twice in the term", f.Pred))
		}
		seen[f.Pred] = true
	}
	t.factors = factors
	return nil
}

// fillBasis writes the basis matrix of the given terms into dst, one column
// per term in order. dst must be n×len(terms).
func fillBasis(dst *mat.Dense, terms []Term, X *mat.Dense) {
	n, _ := X.Dims()
	col := make([]float64, n)
	for j, t := range terms {
		t.EvalColumn(col, X)
		dst.SetCol(j, col)
	}
}
