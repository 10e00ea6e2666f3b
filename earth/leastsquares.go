package earth

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/pkg/errors"
)

// LeastSquaresFitter is the collaborator contract consumed by the forward
// pass and the pruner: given a basis matrix and a response vector, return
// the least-squares coefficients and the residual sum of squares.
//
// Implementations must fail explicitly on a rank-deficient basis (with a
// DegenerateBasisError) rather than return NaN coefficients; the search
// recovers by dropping the offending candidate.
type LeastSquaresFitter interface {
	FitLeastSquares(basis *mat.Dense, y *mat.VecDense) (coef []float64, rss float64, err error)
}

// QRFitter is the default LeastSquaresFitter, backed by gonum's householder
// QR decomposition. Rank deficiency is detected from the diagonal of R
// before solving.
type QRFitter struct {
	// RankTol is the relative tolerance under which a diagonal entry of R
	// is treated as zero. 0 selects a default of 1e-12.
	RankTol float64
}

// NewQRFitter returns a QRFitter with the default rank tolerance.
func NewQRFitter() *QRFitter {
	return &QRFitter{}
}

// FitLeastSquares solves min ‖basis·c − y‖² and returns c and the residual
// sum of squares.
func (q *QRFitter) FitLeastSquares(basis *mat.Dense, y *mat.VecDense) ([]float64, float64, error) {
	const op = "QRFitter.FitLeastSquares"

	n, m := basis.Dims()
	if n == 0 || m == 0 {
		return nil, 0, errors.NewValueError(op, "empty basis matrix")
	}
	if y.Len() != n {
		return nil, 0, errors.NewDimensionError(op, n, y.Len(), 0)
	}
	if n < m {
		// Underdetermined systems are degenerate by contract.
		return nil, 0, errors.NewDegenerateBasisError(op, n, m, n)
	}

	tol := q.RankTol
	if tol == 0 {
		tol = 1e-12
	}

	var qr mat.QR
	qr.Factorize(basis)

	var r mat.Dense
	qr.RTo(&r)

	// The magnitude of the R diagonal reveals (numerical) rank deficiency.
	maxDiag := 0.0
	for j := 0; j < m; j++ {
		if d := math.Abs(r.At(j, j)); d > maxDiag {
			maxDiag = d
		}
	}
	rank := 0
	for j := 0; j < m; j++ {
		if math.Abs(r.At(j, j)) > tol*maxDiag {
			rank++
		}
	}
	if maxDiag == 0 || rank < m {
		return nil, 0, errors.NewDegenerateBasisError(op, n, m, rank)
	}

	coefVec := mat.NewVecDense(m, nil)
	if err := qr.SolveVecTo(coefVec, false, y); err != nil {
		return nil, 0, errors.Wrap(errors.NewDegenerateBasisError(op, n, m, rank), err.Error())
	}

	coef := make([]float64, m)
	for j := 0; j < m; j++ {
		coef[j] = coefVec.AtVec(j)
	}

	rss := residualSumOfSquares(basis, coef, y)
	if err := errors.CheckScalar(op, rss, 0); err != nil {
		return nil, 0, err
	}
	return coef, rss, nil
}

// residualSumOfSquares computes ‖basis·coef − y‖² row by row, in row order,
// so repeated fits of identical inputs produce bit-identical values.
func residualSumOfSquares(basis *mat.Dense, coef []float64, y *mat.VecDense) float64 {
	n, m := basis.Dims()
	rss := 0.0
	for i := 0; i < n; i++ {
		row := basis.RawRowView(i)
		pred := 0.0
		for j := 0; j < m; j++ {
			pred += row[j] * coef[j]
		}
		resid := y.AtVec(i) - pred
		rss += resid * resid
	}
	return rss
}
