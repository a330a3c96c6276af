package modelselection

import (
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/housecv/pkg/errors"
)

// Fold is one train/test partition of the row indices. Both index lists
// are sorted ascending.
type Fold struct {
	Train []int
	Test  []int
}

// KFold implements k-fold cross-validation splitting
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{
		NSplits: nSplits,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split partitions n rows into NSplits folds. The first n mod NSplits
// folds receive one extra row, so fold sizes differ by at most one, and
// every row is in exactly one test fold. The result depends only on
// (n, NSplits, Shuffle, Seed).
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewValidationError("folds", "must not exceed the number of rows", kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	inTest := make([]bool, n)
	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := slices.Clone(indices[current : current+testSize])
		slices.Sort(test)

		clear(inTest)
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, n-testSize)
		for idx := 0; idx < n; idx++ {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}

		folds[i] = Fold{Train: train, Test: test}
		current += testSize
	}
	return folds, nil
}
