package ml

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(2)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected pure leaf confidence 1, got %v", confidence)
	}
	if label, _, _ := model.Predict([]float64{0.85, 0.85}); label != 2 {
		t.Fatalf("expected label 2, got %d", label)
	}
}

func TestDecisionTreeDeepTreeIndices(t *testing.T) {
	// Needs more than one level of splits, which exercises child index offsets.
	features := [][]float64{
		{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8},
	}
	labels := []int{0, 0, 1, 1, 0, 0, 1, 1}

	model := NewDecisionTree(5)
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, x := range features {
		label, _, err := model.Predict(x)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Errorf("x=%v: expected %d, got %d", x, labels[i], label)
		}
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := NewDecisionTree(3)
	if _, _, err := model.Predict([]float64{1}); !errors.Is(err, ErrFitState) {
		t.Fatalf("expected fit state error, got %v", err)
	}
	if err := model.Fit(nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := model.Fit([][]float64{{1}, {2}}, []int{1}); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := model.Predict([]float64{1, 2}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for width mismatch, got %v", err)
	}
}

func TestRandomForestIsReproducible(t *testing.T) {
	features := make([][]float64, 0, 40)
	labels := make([]int, 0, 40)
	for i := 0; i < 40; i++ {
		x := float64(i)
		features = append(features, []float64{x, float64(i % 3), -x})
		if i < 20 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}

	a := NewRandomForest(WithEstimators(15), WithMaxDepth(4), WithSeed(7))
	b := NewRandomForest(WithEstimators(15), WithMaxDepth(4), WithSeed(7))
	if err := a.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	correct := 0
	for i, x := range features {
		la, ca, err := a.Predict(x)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lb, cb, _ := b.Predict(x)
		if la != lb || ca != cb {
			t.Fatalf("forests with the same seed disagree on %v", x)
		}
		if la == labels[i] {
			correct++
		}
	}
	if correct < 36 {
		t.Fatalf("expected a separable problem to be learned, %d/40 correct", correct)
	}
	if a.NumFeatures() != 3 {
		t.Fatalf("expected 3 features, got %d", a.NumFeatures())
	}
}

func TestMajorityLabelTie(t *testing.T) {
	label, share := majorityLabel([]int{3, 1, 3, 1})
	if label != 1 || share != 0.5 {
		t.Fatalf("expected (1, 0.5), got (%d, %v)", label, share)
	}
}
