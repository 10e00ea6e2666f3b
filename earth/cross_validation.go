package earth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/splinefit/goearth/metrics"
	"github.com/splinefit/goearth/pkg/errors"
)

// KFoldSplitter partitions data for cross-validation. The core fit stays
// deterministic; any shuffling lives in the splitter's own seeded RNG.
type KFoldSplitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// CVFold holds the train/test row indices of a single fold.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitting.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a k-fold splitter. Fewer than 2 splits falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])

		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)

		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds
}

// CVResult aggregates per-fold out-of-sample error.
type CVResult struct {
	MSEs    []float64
	R2s     []float64
	MeanMSE float64
	StdMSE  float64
	MeanR2  float64
}

// CrossValidate fits a fresh Regressor per fold with the given configuration
// and evaluates it on the held-out rows. It is an external harness around
// the core fit: the engine itself is invoked once per fold, stateless across
// calls.
func CrossValidate(X, y mat.Matrix, cfg Config, categorical []int, splitter KFoldSplitter) (*CVResult, error) {
	if splitter == nil {
		splitter = NewKFold(5, false, 0)
	}
	folds := splitter.Split(X, y)
	if len(folds) == 0 {
		return nil, errors.NewValueError("CrossValidate", "splitter produced no folds")
	}

	result := &CVResult{
		MSEs: make([]float64, 0, len(folds)),
		R2s:  make([]float64, 0, len(folds)),
	}

	for _, fold := range folds {
		XTrain, yTrain := takeRows(X, y, fold.TrainIndices)
		XTest, yTest := takeRows(X, y, fold.TestIndices)

		reg := NewRegressor(WithConfig(cfg), WithCategorical(categorical...))
		if err := reg.Fit(XTrain, yTrain); err != nil {
			return nil, errors.Wrap(err, "CrossValidate: fold fit")
		}

		yPred, err := reg.Predict(XTest)
		if err != nil {
			return nil, errors.Wrap(err, "CrossValidate: fold predict")
		}

		mse, err := metrics.MSEMatrix(yTest, yPred)
		if err != nil {
			return nil, err
		}
		result.MSEs = append(result.MSEs, mse)

		r2, err := metrics.R2ScoreMatrix(yTest, yPred)
		if err == nil {
			result.R2s = append(result.R2s, r2)
		}
	}

	for _, v := range result.MSEs {
		result.MeanMSE += v
	}
	result.MeanMSE /= float64(len(result.MSEs))

	for _, v := range result.MSEs {
		d := v - result.MeanMSE
		result.StdMSE += d * d
	}
	result.StdMSE = math.Sqrt(result.StdMSE / float64(len(result.MSEs)))

	for _, v := range result.R2s {
		result.MeanR2 += v
	}
	if len(result.R2s) > 0 {
		result.MeanR2 /= float64(len(result.R2s))
	}
	return result, nil
}

// takeRows materializes the selected rows of X and y as dense matrices.
func takeRows(X, y mat.Matrix, idx []int) (*mat.Dense, *mat.Dense) {
	_, p := X.Dims()
	outX := mat.NewDense(len(idx), p, nil)
	outY := mat.NewDense(len(idx), 1, nil)
	for i, r := range idx {
		for j := 0; j < p; j++ {
			outX.Set(i, j, X.At(r, j))
		}
		outY.Set(i, 0, y.At(r, 0))
	}
	return outX, outY
}
