package earth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
)

// ColumnKind classifies a predictor column.
type ColumnKind int8

const (
	// Continuous columns hold real values; knot candidates are observed values.
	Continuous ColumnKind = iota
	// Categorical columns hold integer category codes in [0, Levels); knot
	// candidates are binary partitions of the level set.
	Categorical
)

// maxLevels bounds categorical cardinality so that a level set fits in a
// uint64 partition mask.
const maxLevels = 63

// Schema records, per predictor column, whether it is continuous or
// categorical and, for categorical columns, the level count observed at
// training time. Categorical columns are pre-identified by the caller; they
// are never inferred from the data.
type Schema struct {
	Kinds  []ColumnKind `json:"kinds"`
	Levels []int        `json:"levels"` // level count per column, 0 for continuous
}

// NewSchema creates a schema for p predictor columns, marking the listed
// columns categorical. Level counts are filled in by Capture.
func NewSchema(p int, categoricalCols []int) (*Schema, error) {
	s := &Schema{
		Kinds:  make([]ColumnKind, p),
		Levels: make([]int, p),
	}
	for _, c := range categoricalCols {
		if c < 0 || c >= p {
			return nil, errors.NewValidationError("categorical_columns",
				fmt.Sprintf("column index out of range [0, %d)", p), c)
		}
		s.Kinds[c] = Categorical
	}
	return s, nil
}

// NumPredictors returns the number of predictor columns.
func (s *Schema) NumPredictors() int {
	return len(s.Kinds)
}

// NumCategorical returns the number of categorical columns.
func (s *Schema) NumCategorical() int {
	count := 0
	for _, k := range s.Kinds {
		if k == Categorical {
			count++
		}
	}
	return count
}

// Capture records categorical level counts from the training matrix and
// validates that categorical cells hold integer codes in range.
func (s *Schema) Capture(X *mat.Dense) error {
	n, p := X.Dims()
	if p != len(s.Kinds) {
		return errors.NewDimensionError("Schema.Capture", len(s.Kinds), p, 1)
	}

	for j := 0; j < p; j++ {
		if s.Kinds[j] != Categorical {
			continue
		}
		maxCode := -1
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			code := int(v)
			if v != float64(code) || code < 0 {
				return errors.NewValueError("Schema.Capture",
					fmt.Sprintf("categorical column %d holds non-code value %g at row %d", j, v, i))
			}
			if code > maxCode {
				maxCode = code
			}
		}
		levels := maxCode + 1
		if levels > maxLevels {
			return errors.NewValidationError("categorical_levels",
				fmt.Sprintf("column %d has %d levels; at most %d are supported", j, levels, maxLevels), levels)
		}
		s.Levels[j] = levels
	}
	return nil
}

// Validate checks that a prediction matrix conforms to the training schema:
// same column count, and categorical cells holding codes from the training
// level sets. Violations surface as schema-mismatch InputShapeErrors rather
// than silently misaligned columns.
func (s *Schema) Validate(X mat.Matrix) error {
	n, p := X.Dims()
	if p != len(s.Kinds) {
		return errors.NewSchemaMismatchError(
			fmt.Sprintf("expected %d predictor columns, got %d", len(s.Kinds), p),
			[]int{-1, len(s.Kinds)}, []int{n, p})
	}

	for j := 0; j < p; j++ {
		if s.Kinds[j] != Categorical {
			continue
		}
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			code := int(v)
			if v != float64(code) || code < 0 || math.IsNaN(v) {
				return errors.NewSchemaMismatchError(
					fmt.Sprintf("categorical column %d holds non-code value %g at row %d", j, v, i),
					[]int{-1, p}, []int{n, p})
			}
			if code >= s.Levels[j] {
				return errors.NewSchemaMismatchError(
					fmt.Sprintf("categorical column %d holds unseen level %d (training saw %d levels)", j, code, s.Levels[j]),
					[]int{-1, p}, []int{n, p})
			}
		}
	}
	return nil
}

// clone returns a deep copy of the schema.
func (s *Schema) clone() *Schema {
	out := &Schema{
		Kinds:  make([]ColumnKind, len(s.Kinds)),
		Levels: make([]int, len(s.Levels)),
	}
	copy(out.Kinds, s.Kinds)
	copy(out.Levels, s.Levels)
	return out
}
