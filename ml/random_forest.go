package ml

import (
	"math"
	"math/rand"
	"sync"
)

// Forest defaults.
const (
	DefaultEstimators = 100
	DefaultSeed       = 42
)

// RandomForest is a bagged ensemble of decision trees voting by majority.
// Tree i is grown from seed Seed+i, so a fixed seed reproduces the forest.
type RandomForest struct {
	NEstimators int
	MaxDepth    int
	// MaxFeatures per split; 0 selects sqrt of the feature count.
	MaxFeatures int
	Seed        int64
	NFeatures   int
	Trees       []*DecisionTree
}

// RandomForestOption configures NewRandomForest.
type RandomForestOption func(*RandomForest)

// WithEstimators sets the number of trees.
func WithEstimators(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.NEstimators = n }
}

// WithMaxDepth limits the depth of each tree.
func WithMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = depth }
}

// WithMaxFeatures sets the features considered per split.
func WithMaxFeatures(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = n }
}

// WithSeed sets the base seed for bootstraps and feature sampling.
func WithSeed(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.Seed = seed }
}

// NewRandomForest returns an untrained forest with 100 trees and seed 42
// unless overridden.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators: DefaultEstimators,
		MaxDepth:    defaultMaxDepth,
		Seed:        DefaultSeed,
	}
	for _, o := range opts {
		o(rf)
	}
	if rf.NEstimators <= 0 {
		rf.NEstimators = DefaultEstimators
	}
	return rf
}

// Fit grows every tree on its own bootstrap sample.
func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	if len(features) == 0 {
		return validationErrorf("random forest: empty features")
	}
	if len(features) != len(labels) {
		return validationErrorf("random forest: features and labels size mismatch")
	}
	n := len(features)
	width := len(features[0])
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Round(math.Sqrt(float64(width)))))
	}

	trees := make([]*DecisionTree, rf.NEstimators)
	errs := make([]error, rf.NEstimators)
	var wg sync.WaitGroup
	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			seed := rf.Seed + int64(idx)
			rnd := rand.New(rand.NewSource(seed))

			sampleX := make([][]float64, n)
			sampleY := make([]int, n)
			for j := 0; j < n; j++ {
				k := rnd.Intn(n)
				sampleX[j] = features[k]
				sampleY[j] = labels[k]
			}

			tree := NewDecisionTree(rf.MaxDepth)
			tree.MaxFeatures = maxFeatures
			tree.Seed = seed
			if err := tree.Fit(sampleX, sampleY); err != nil {
				errs[idx] = err
				return
			}
			trees[idx] = tree
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	rf.Trees = trees
	rf.NFeatures = width
	return nil
}

// Predict returns the majority vote and the share of trees that cast it.
func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(rf.Trees) == 0 {
		return 0, 0, fitStateErrorf("random forest: model not trained")
	}
	if len(features) != rf.NFeatures {
		return 0, 0, validationErrorf("random forest: expected %d features, got %d", rf.NFeatures, len(features))
	}
	votes := make([]int, 0, len(rf.Trees))
	for _, tree := range rf.Trees {
		label, _, err := tree.Predict(features)
		if err != nil {
			return 0, 0, err
		}
		votes = append(votes, label)
	}
	label, share := majorityLabel(votes)
	return label, share, nil
}

// NumFeatures is the vector width the forest was trained on.
func (rf *RandomForest) NumFeatures() int {
	return rf.NFeatures
}
