package ml

// Classifier maps a feature vector to a class label.
type Classifier interface {
	Fit(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
	NumFeatures() int
}

var (
	_ Classifier = (*DecisionTree)(nil)
	_ Classifier = (*RandomForest)(nil)
)
