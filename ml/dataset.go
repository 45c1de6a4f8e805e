package ml

import (
	"maps"

	"github.com/cockroachdb/errors"
)

// Dataset is a column-oriented batch of records. Pipeline stages never
// modify a dataset; each returns a new one. Column slices are shared between
// datasets and must not be written after construction.
type Dataset struct {
	records []Record
	labels  []int

	numeric    map[string][]float64
	categories map[string][]string
	codes      map[string][]float64

	cleaned bool
	encoded bool
	scaled  bool
}

// NewDataset wraps records and optional labels. labels is either nil or
// one per record.
func NewDataset(records []Record, labels []int) (*Dataset, error) {
	if labels != nil && len(labels) != len(records) {
		return nil, validationErrorf("records and labels size mismatch: %d != %d", len(records), len(labels))
	}
	return &Dataset{
		records: records,
		labels:  labels,
	}, nil
}

// Rows returns the number of records.
func (d *Dataset) Rows() int {
	return len(d.records)
}

// Labels returns the supervised labels, nil for unlabelled data.
func (d *Dataset) Labels() []int {
	return d.labels
}

// Records returns the raw records the dataset was built from.
func (d *Dataset) Records() []Record {
	return d.records
}

// Subset returns the raw rows at the given indices.
func (d *Dataset) Subset(indices []int) *Dataset {
	records := make([]Record, len(indices))
	var labels []int
	if d.labels != nil {
		labels = make([]int, len(indices))
	}
	for i, idx := range indices {
		records[i] = d.records[idx]
		if labels != nil {
			labels[i] = d.labels[idx]
		}
	}
	return &Dataset{records: records, labels: labels}
}

// Numeric returns a cleaned (and possibly scaled) numerical column.
func (d *Dataset) Numeric(column string) []float64 {
	return d.numeric[column]
}

// Category returns a cleaned categorical column.
func (d *Dataset) Category(column string) []string {
	return d.categories[column]
}

// Codes returns an encoded categorical column.
func (d *Dataset) Codes(column string) []float64 {
	return d.codes[column]
}

// Vector returns row i as numerical columns followed by categorical codes.
func (d *Dataset) Vector(schema FeatureSchema, i int) ([]float64, error) {
	if !d.encoded || !d.scaled {
		return nil, errors.AssertionFailedf("feature vector requested before encode and scale")
	}
	if i < 0 || i >= d.Rows() {
		return nil, errors.AssertionFailedf("row %d out of range [0,%d)", i, d.Rows())
	}
	vector := make([]float64, 0, schema.Width())
	for _, col := range schema.Numerical {
		vector = append(vector, d.numeric[col][i])
	}
	for _, col := range schema.Categorical {
		vector = append(vector, d.codes[col][i])
	}
	return vector, nil
}

// Matrix returns every row as a feature vector.
func (d *Dataset) Matrix(schema FeatureSchema) ([][]float64, error) {
	matrix := make([][]float64, d.Rows())
	for i := range matrix {
		vector, err := d.Vector(schema, i)
		if err != nil {
			return nil, err
		}
		matrix[i] = vector
	}
	return matrix, nil
}

func (d *Dataset) derive() *Dataset {
	next := *d
	next.numeric = maps.Clone(d.numeric)
	next.categories = maps.Clone(d.categories)
	next.codes = maps.Clone(d.codes)
	if next.numeric == nil {
		next.numeric = make(map[string][]float64)
	}
	if next.categories == nil {
		next.categories = make(map[string][]string)
	}
	if next.codes == nil {
		next.codes = make(map[string][]float64)
	}
	return &next
}
