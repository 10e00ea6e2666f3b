package earth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fitHingeModel(t *testing.T) (*Model, *mat.Dense, *mat.Dense) {
	t.Helper()
	X, yv := hingeData(101, 5)
	y := mat.NewDense(101, 1, nil)
	for i := 0; i < 101; i++ {
		y.Set(i, 0, yv.AtVec(i))
	}

	reg := NewRegressor(fitOptions()...)
	require.NoError(t, reg.Fit(X, y))
	m, err := reg.Model()
	require.NoError(t, err)
	return m, X, y
}

func TestModelSaveLoadRoundTrip(t *testing.T) {
	m, X, _ := fitHingeModel(t)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := LoadModel(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.RSS(), loaded.RSS())
	assert.Equal(t, m.GCV(), loaded.GCV())
	assert.Equal(t, m.NumSamples(), loaded.NumSamples())
	assert.Equal(t, m.ActiveIndices(), loaded.ActiveIndices())
	assert.Equal(t, m.Coefficients(), loaded.Coefficients())

	termsA, termsB := m.Terms(), loaded.Terms()
	require.Equal(t, len(termsA), len(termsB))
	for i := range termsA {
		assert.True(t, termsA[i].Equal(termsB[i]), "term %d differs", i)
	}

	// Identical terms and coefficients give bit-identical predictions.
	predA, err := m.Predict(X)
	require.NoError(t, err)
	predB, err := loaded.Predict(X)
	require.NoError(t, err)
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		assert.Equal(t, predA.At(i, 0), predB.At(i, 0), "prediction %d differs", i)
	}
}

func TestLoadModelRejectsWrongName(t *testing.T) {
	payload := `{"name":"something.Else","format_version":"1.0","params":{}}`
	_, err := LoadModel(strings.NewReader(payload))
	assert.Error(t, err)
}

func TestLoadModelRejectsMalformedPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{
			name:    "missing schema",
			payload: `{"name":"earth.Model","format_version":"1.0","params":{"history":[[]],"active_idx":[0],"coef":[1]}}`,
		},
		{
			name:    "coef and active mismatch",
			payload: `{"name":"earth.Model","format_version":"1.0","params":{"schema":{"kinds":[0],"levels":[0]},"history":[[]],"active_idx":[0],"coef":[1,2]}}`,
		},
		{
			name:    "active index out of range",
			payload: `{"name":"earth.Model","format_version":"1.0","params":{"schema":{"kinds":[0],"levels":[0]},"history":[[]],"active_idx":[4],"coef":[1]}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadModel(strings.NewReader(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestModelAccessorsReturnCopies(t *testing.T) {
	m, _, _ := fitHingeModel(t)

	coef := m.Coefficients()
	orig := coef[0]
	coef[0] = 999
	assert.Equal(t, orig, m.Coefficients()[0], "mutating the returned coefficients changed the model")

	idx := m.ActiveIndices()
	idx[0] = 999
	assert.Equal(t, 0, m.ActiveIndices()[0], "mutating the returned indices changed the model")

	curve := m.GCVCurve()
	if len(curve) > 0 {
		curve[0].GCV = -1
		assert.NotEqual(t, -1.0, m.GCVCurve()[0].GCV)
	}
}

func TestModelPredictIsPure(t *testing.T) {
	m, X, _ := fitHingeModel(t)

	predA, err := m.Predict(X)
	require.NoError(t, err)
	predB, err := m.Predict(X)
	require.NoError(t, err)

	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		assert.Equal(t, predA.At(i, 0), predB.At(i, 0))
	}
}

func TestModelImportances(t *testing.T) {
	m, _, _ := fitHingeModel(t)

	imps := m.Importances()
	assert.Equal(t, len(m.Terms())-1, len(imps))
	for i, imp := range imps {
		assert.GreaterOrEqual(t, imp.DeltaRSS, -1e-9, "importance %d", i)
		assert.False(t, imp.Term.IsIntercept(), "importance %d attributed to the intercept", i)
	}
}
