package tuning

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// byClass groups row indices by label, each group shuffled with rng
func byClass(y []float64, rng *rand.Rand) [][]int {
	groups := make(map[float64][]int)
	for i, v := range y {
		groups[v] = append(groups[v], i)
	}
	labels := make([]float64, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	out := make([][]int, len(labels))
	for k, l := range labels {
		idx := groups[l]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		out[k] = idx
	}
	return out
}

// StratifiedSplit partitions rows into train and test keeping each class's
// share in both. testSize is the test fraction.
func StratifiedSplit(y []float64, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %v not in (0, 1)", testSize)
	}
	rng := rand.New(rand.NewSource(seed))
	for _, idx := range byClass(y, rng) {
		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		if nTest == len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split of %d rows leaves an empty side", len(y))
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Fold is one train/validation partition
type Fold struct {
	Train []int
	Valid []int
}

// StratifiedKFold deals each class's shuffled rows round-robin into k folds
func StratifiedKFold(y []float64, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("folds must be >= 2, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("%d rows cannot fill %d folds", len(y), k)
	}

	rng := rand.New(rand.NewSource(seed))
	assign := make([]int, len(y))
	next := 0
	for _, idx := range byClass(y, rng) {
		for _, i := range idx {
			assign[i] = next % k
			next++
		}
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Valid = append(folds[j].Valid, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Rows copies the given rows of X and y
func Rows(X mat.Matrix, y []float64, idx []int) (*mat.Dense, []float64) {
	_, c := X.Dims()
	if len(idx) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(len(idx), c, nil)
	ys := make([]float64, len(idx))
	row := make([]float64, c)
	for k, i := range idx {
		mat.Row(row, i, X)
		out.SetRow(k, row)
		ys[k] = y[i]
	}
	return out, ys
}
