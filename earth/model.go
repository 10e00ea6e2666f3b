package earth

import (
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/core/model"
	"github.com/splinefit/goearth/pkg/errors"
)

// Model is the immutable artifact of a fit: the forward-pass term history,
// the active subsequence selected by pruning, their coefficients, and the
// bookkeeping needed to score and explain the model. A Model is created
// fresh at the end of a fit and never patched in place.
type Model struct {
	schema     *Schema
	history    []Term
	activeIdx  []int
	terms      []Term // history[activeIdx], materialized
	coef       []float64
	rss        float64
	gcv        float64
	penaltyD   float64
	samples    int
	curve      []GCVPoint
	importance []TermImportance
}

func newModel(schema *Schema, history []Term, pr *pruneResult, penaltyD float64, samples int) *Model {
	terms := make([]Term, len(pr.activeIdx))
	for i, idx := range pr.activeIdx {
		terms[i] = history[idx]
	}
	return &Model{
		schema:     schema.clone(),
		history:    append([]Term(nil), history...),
		activeIdx:  append([]int(nil), pr.activeIdx...),
		terms:      terms,
		coef:       append([]float64(nil), pr.coef...),
		rss:        pr.rss,
		gcv:        pr.gcv,
		penaltyD:   penaltyD,
		samples:    samples,
		curve:      append([]GCVPoint(nil), pr.curve...),
		importance: append([]TermImportance(nil), pr.importance...),
	}
}

// Terms returns a copy of the active terms, in forward-pass discovery order.
// Term 0 is the intercept.
func (m *Model) Terms() []Term {
	return append([]Term(nil), m.terms...)
}

// History returns a copy of every term the forward pass created, including
// those pruning deactivated. It is retained for inspection only.
func (m *Model) History() []Term {
	return append([]Term(nil), m.history...)
}

// ActiveIndices returns the indices of the active terms within History.
func (m *Model) ActiveIndices() []int {
	return append([]int(nil), m.activeIdx...)
}

// Coefficients returns a copy of the fitted coefficients, aligned with Terms.
func (m *Model) Coefficients() []float64 {
	return append([]float64(nil), m.coef...)
}

// RSS returns the residual sum of squares of the selected model on the
// training data.
func (m *Model) RSS() float64 { return m.rss }

// GCV returns the generalized cross-validation score of the selected model.
func (m *Model) GCV() float64 { return m.gcv }

// NumSamples returns the training row count.
func (m *Model) NumSamples() int { return m.samples }

// GCVCurve returns a copy of the pruning diagnostic curve, keyed by term
// count: the GCV and RSS of the best subset at every size the backward pass
// visited.
func (m *Model) GCVCurve() []GCVPoint {
	return append([]GCVPoint(nil), m.curve...)
}

// Importances returns a copy of the per-term importance scores: the RSS and
// GCV increase observed when the term is removed from the final active set.
// The intercept carries no importance entry.
func (m *Model) Importances() []TermImportance {
	return append([]TermImportance(nil), m.importance...)
}

// Predict evaluates the model on new data, returning an n×1 matrix. It is a
// pure function of the model and X. X must match the training schema; a
// mismatch fails with a schema-mismatch error rather than silently
// misaligning columns.
func (m *Model) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := m.schema.Validate(X); err != nil {
		return nil, err
	}

	n, p := X.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		pred := 0.0
		for k, t := range m.terms {
			pred += m.coef[k] * t.Eval(row)
		}
		out.Set(i, 0, pred)
	}
	return out, nil
}

// Explain writes a human-readable description of the model: each active
// term with its coefficient and importance, followed by the GCV summary.
func (m *Model) Explain(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "earth model: %d active terms (of %d built), rss=%.6g, gcv=%.6g\n",
		len(m.terms), len(m.history), m.rss, m.gcv)
	for i, t := range m.terms {
		fmt.Fprintf(&b, "  %+.6g * %s", m.coef[i], t.String())
		if i > 0 && i-1 < len(m.importance) {
			fmt.Fprintf(&b, "   [delta_rss=%.6g]", m.importance[i-1].DeltaRSS)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// modelPayload is the JSON persistence shape of a Model.
type modelPayload struct {
	Schema     *Schema          `json:"schema"`
	History    []Term           `json:"history"`
	ActiveIdx  []int            `json:"active_idx"`
	Coef       []float64        `json:"coef"`
	RSS        float64          `json:"rss"`
	GCV        float64          `json:"gcv"`
	PenaltyD   float64          `json:"penalty_d"`
	Samples    int              `json:"samples"`
	Curve      []GCVPoint       `json:"gcv_curve"`
	Importance []TermImportance `json:"importance"`
}

const (
	modelName          = "earth.Model"
	modelFormatVersion = "1.0"
)

// Save writes the model to w as JSON.
func (m *Model) Save(w io.Writer) error {
	payload := modelPayload{
		Schema:     m.schema,
		History:    m.history,
		ActiveIdx:  m.activeIdx,
		Coef:       m.coef,
		RSS:        m.rss,
		GCV:        m.gcv,
		PenaltyD:   m.penaltyD,
		Samples:    m.samples,
		Curve:      m.curve,
		Importance: m.importance,
	}
	return model.SaveJSONToWriter(modelName, modelFormatVersion, payload, w)
}

// LoadModel reads a model previously written by Save.
func LoadModel(r io.Reader) (*Model, error) {
	var payload modelPayload
	if err := model.LoadJSONFromReader(modelName, &payload, r); err != nil {
		return nil, errors.Wrap(err, "earth.LoadModel")
	}
	if payload.Schema == nil || len(payload.History) == 0 || len(payload.ActiveIdx) != len(payload.Coef) {
		return nil, errors.NewValueError("earth.LoadModel", "malformed model payload")
	}

	terms := make([]Term, len(payload.ActiveIdx))
	for i, idx := range payload.ActiveIdx {
		if idx < 0 || idx >= len(payload.History) {
			return nil, errors.NewValueError("earth.LoadModel", "active index out of range")
		}
		terms[i] = payload.History[idx]
	}
	return &Model{
		schema:     payload.Schema,
		history:    payload.History,
		activeIdx:  payload.ActiveIdx,
		terms:      terms,
		coef:       payload.Coef,
		rss:        payload.RSS,
		gcv:        payload.GCV,
		penaltyD:   payload.PenaltyD,
		samples:    payload.Samples,
		curve:      payload.Curve,
		importance: payload.Importance,
	}, nil
}
