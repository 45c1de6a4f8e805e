package training

import (
	"math"
	"math/rand"

	"userpredict/ml"
)

const defaultTestRatio = 0.2

// Split shuffles the dataset with a fixed seed and reserves testRatio of it
// for held-out evaluation. Ratios outside (0, 1) fall back to 0.2. The
// training partition always keeps at least one row.
func Split(ds *ml.Dataset, testRatio float64, seed int64) (train, test *ml.Dataset) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = defaultTestRatio
	}
	n := ds.Rows()
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize >= n {
		testSize = n - 1
	}
	if testSize < 0 {
		testSize = 0
	}
	split := n - testSize
	return ds.Subset(indices[:split]), ds.Subset(indices[split:])
}
