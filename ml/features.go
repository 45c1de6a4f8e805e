package ml

import "slices"

const (
	ColumnAge            = "age"
	ColumnGender         = "gender"
	ColumnIncome         = "income"
	ColumnDaysOnPlatform = "days_on_platform"
	ColumnCity           = "city"

	// TargetColumn is the supervised label; it is never a feature.
	TargetColumn = "purchases"
)

// FeatureSchema declares which record fields are numerical and which are
// categorical. Feature vectors are always laid out as Numerical followed by
// Categorical.
type FeatureSchema struct {
	Numerical   []string
	Categorical []string
	Target      string
}

// DefaultSchema returns the schema shared by training and serving.
func DefaultSchema() FeatureSchema {
	return FeatureSchema{
		Numerical:   []string{ColumnAge, ColumnIncome, ColumnDaysOnPlatform},
		Categorical: []string{ColumnGender, ColumnCity},
		Target:      TargetColumn,
	}
}

// FeatureNames returns the column names in feature vector order.
func (s FeatureSchema) FeatureNames() []string {
	names := make([]string, 0, s.Width())
	names = append(names, s.Numerical...)
	names = append(names, s.Categorical...)
	return names
}

// Width is the length of an emitted feature vector.
func (s FeatureSchema) Width() int {
	return len(s.Numerical) + len(s.Categorical)
}

// Equal reports whether two schemas declare the same columns in the same order.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	return slices.Equal(s.Numerical, other.Numerical) &&
		slices.Equal(s.Categorical, other.Categorical) &&
		s.Target == other.Target
}

// IsNumerical reports whether column is declared numerical.
func (s FeatureSchema) IsNumerical(column string) bool {
	return slices.Contains(s.Numerical, column)
}

// IsCategorical reports whether column is declared categorical.
func (s FeatureSchema) IsCategorical(column string) bool {
	return slices.Contains(s.Categorical, column)
}
