package ml

import (
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
)

// FitStatistics are the summaries learned from training data and reapplied
// unchanged at serving time. A published value is never modified: fit-mode
// stages build a fresh copy and swap it in.
type FitStatistics struct {
	// Medians impute missing numerical values.
	Medians map[string]float64
	// Modes impute missing categorical values.
	Modes map[string]string
	// Categories holds the sorted categories seen per column; a category's
	// code is its index.
	Categories map[string][]string
	// Means and Variances standardize numerical columns.
	Means     map[string]float64
	Variances map[string]float64
}

func (s *FitStatistics) clone() *FitStatistics {
	if s == nil {
		return &FitStatistics{
			Medians:    make(map[string]float64),
			Modes:      make(map[string]string),
			Categories: make(map[string][]string),
			Means:      make(map[string]float64),
			Variances:  make(map[string]float64),
		}
	}
	c := &FitStatistics{
		Medians:    maps.Clone(s.Medians),
		Modes:      maps.Clone(s.Modes),
		Categories: make(map[string][]string, len(s.Categories)),
		Means:      maps.Clone(s.Means),
		Variances:  maps.Clone(s.Variances),
	}
	for col, cats := range s.Categories {
		c.Categories[col] = slices.Clone(cats)
	}
	return c
}

// Code returns the integer code of category in column.
func (s *FitStatistics) Code(column, category string) (int, bool) {
	if s == nil {
		return 0, false
	}
	cats := s.Categories[column]
	idx := sort.SearchStrings(cats, category)
	if idx < len(cats) && cats[idx] == category {
		return idx, true
	}
	return 0, false
}

// Validate checks that every schema column has all of its statistics.
func (s *FitStatistics) Validate(schema FeatureSchema) error {
	if s == nil {
		return fitStateErrorf("preprocessor has not been fitted")
	}
	for _, col := range schema.Numerical {
		median, ok1 := s.Medians[col]
		mean, ok2 := s.Means[col]
		variance, ok3 := s.Variances[col]
		if !ok1 || !ok2 || !ok3 {
			return fitStateErrorf("numerical column %q is not fitted", col)
		}
		if math.IsNaN(median) || math.IsNaN(mean) || math.IsNaN(variance) || variance < 0 {
			return fitStateErrorf("numerical column %q has invalid statistics", col)
		}
	}
	for _, col := range schema.Categorical {
		mode, ok1 := s.Modes[col]
		cats, ok2 := s.Categories[col]
		if !ok1 || !ok2 || len(cats) == 0 {
			return fitStateErrorf("categorical column %q is not fitted", col)
		}
		if !slices.IsSorted(cats) {
			return fitStateErrorf("categories of column %q are not sorted", col)
		}
		if _, ok := s.Code(col, mode); !ok {
			return fitStateErrorf("mode of column %q is not a known category", col)
		}
	}
	return nil
}

// Preprocessor cleans, encodes and scales datasets. Every stage runs in fit
// mode, learning statistics from the batch, or in transform mode, reusing
// the stored ones.
//
// Fit-mode calls are not safe for concurrent use. A frozen preprocessor,
// such as one loaded from an artifact, refuses to fit and is safe to share.
type Preprocessor struct {
	schema FeatureSchema
	stats  *FitStatistics
	frozen bool
}

// NewPreprocessor returns an unfitted preprocessor.
func NewPreprocessor(schema FeatureSchema) *Preprocessor {
	return &Preprocessor{schema: schema}
}

// NewFittedPreprocessor returns a frozen preprocessor over existing statistics.
func NewFittedPreprocessor(schema FeatureSchema, stats FitStatistics) (*Preprocessor, error) {
	s := stats.clone()
	if err := s.Validate(schema); err != nil {
		return nil, err
	}
	return &Preprocessor{schema: schema, stats: s, frozen: true}, nil
}

// Schema returns the feature schema.
func (p *Preprocessor) Schema() FeatureSchema {
	return p.schema
}

// Stats returns a copy of the current statistics, nil when unfitted.
func (p *Preprocessor) Stats() *FitStatistics {
	if p.stats == nil {
		return nil
	}
	return p.stats.clone()
}

// Fitted reports whether every stage has statistics for every column.
func (p *Preprocessor) Fitted() bool {
	return p.stats.Validate(p.schema) == nil
}

// Freeze makes any further fit-mode call fail.
func (p *Preprocessor) Freeze() {
	p.frozen = true
}

func (p *Preprocessor) beginFit(stage string) (*FitStatistics, error) {
	if p.frozen {
		return nil, fitStateErrorf("%s: preprocessor is frozen and cannot be refitted", stage)
	}
	return p.stats.clone(), nil
}

// Clean coerces unusable values to missing and imputes them: numerical
// columns with the median, categorical columns with the mode.
func (p *Preprocessor) Clean(ds *Dataset, fit bool) (*Dataset, error) {
	var next *FitStatistics
	if fit {
		var err error
		if next, err = p.beginFit("clean"); err != nil {
			return nil, err
		}
	}

	out := ds.derive()
	for _, col := range p.schema.Numerical {
		values := make([]float64, ds.Rows())
		present := make([]float64, 0, ds.Rows())
		for i, rec := range ds.records {
			v, _ := rec.Field(col)
			f, ok := v.Float()
			if !ok {
				values[i] = math.NaN()
				continue
			}
			values[i] = f
			present = append(present, f)
		}

		var fill float64
		if fit {
			if len(present) == 0 {
				return nil, validationErrorf("clean: numerical column %q has no usable values to fit a median", col)
			}
			fill = median(present)
			next.Medians[col] = fill
		} else {
			var ok bool
			if p.stats != nil {
				fill, ok = p.stats.Medians[col]
			}
			if !ok {
				return nil, fitStateErrorf("clean: no fitted median for column %q", col)
			}
		}
		for i := range values {
			if math.IsNaN(values[i]) {
				values[i] = fill
			}
		}
		out.numeric[col] = values
	}

	for _, col := range p.schema.Categorical {
		values := make([]string, ds.Rows())
		present := make([]string, 0, ds.Rows())
		missing := make([]bool, ds.Rows())
		for i, rec := range ds.records {
			v, _ := rec.Field(col)
			c, ok := v.Category()
			if !ok {
				missing[i] = true
				continue
			}
			values[i] = c
			present = append(present, c)
		}

		var fill string
		if fit {
			m, ok := mode(present)
			if !ok {
				return nil, validationErrorf("clean: categorical column %q has no usable values to fit a mode", col)
			}
			fill = m
			next.Modes[col] = fill
		} else {
			var ok bool
			if p.stats != nil {
				fill, ok = p.stats.Modes[col]
			}
			if !ok {
				return nil, fitStateErrorf("clean: no fitted mode for column %q", col)
			}
		}
		for i := range values {
			if missing[i] {
				values[i] = fill
			}
		}
		out.categories[col] = values
	}

	if fit {
		p.stats = next
	}
	out.cleaned = true
	out.encoded = false
	out.scaled = false
	return out, nil
}

// Encode maps categorical columns to dense integer codes. Fit mode replaces
// any prior mapping with one built from this batch; transform mode rejects
// categories it has not seen.
func (p *Preprocessor) Encode(ds *Dataset, fit bool) (*Dataset, error) {
	if !ds.cleaned {
		return nil, errors.AssertionFailedf("encode: dataset has not been cleaned")
	}
	var next *FitStatistics
	if fit {
		var err error
		if next, err = p.beginFit("encode"); err != nil {
			return nil, err
		}
	}

	out := ds.derive()
	for _, col := range p.schema.Categorical {
		values := ds.categories[col]
		stats := p.stats
		if fit {
			next.Categories[col] = uniqueSorted(values)
			stats = next
		} else if p.stats == nil || len(p.stats.Categories[col]) == 0 {
			return nil, fitStateErrorf("encode: no fitted categories for column %q", col)
		}

		codes := make([]float64, len(values))
		for i, v := range values {
			code, ok := stats.Code(col, v)
			if !ok {
				return nil, encodingErrorf("encode: unknown category %q for column %q", v, col)
			}
			codes[i] = float64(code)
		}
		out.codes[col] = codes
	}

	if fit {
		p.stats = next
	}
	out.encoded = true
	return out, nil
}

// Scale standardizes numerical columns to zero mean and unit variance.
func (p *Preprocessor) Scale(ds *Dataset, fit bool) (*Dataset, error) {
	if !ds.cleaned {
		return nil, errors.AssertionFailedf("scale: dataset has not been cleaned")
	}
	if ds.scaled {
		return nil, errors.AssertionFailedf("scale: dataset is already scaled")
	}
	var next *FitStatistics
	if fit {
		var err error
		if next, err = p.beginFit("scale"); err != nil {
			return nil, err
		}
	}

	out := ds.derive()
	for _, col := range p.schema.Numerical {
		values := ds.numeric[col]
		var mean, variance float64
		if fit {
			if len(values) == 0 {
				return nil, validationErrorf("scale: numerical column %q is empty", col)
			}
			mean, variance = meanVariance(values)
			next.Means[col] = mean
			next.Variances[col] = variance
		} else {
			var ok1, ok2 bool
			if p.stats != nil {
				mean, ok1 = p.stats.Means[col]
				variance, ok2 = p.stats.Variances[col]
			}
			if !ok1 || !ok2 {
				return nil, fitStateErrorf("scale: no fitted mean/variance for column %q", col)
			}
		}

		scaled := make([]float64, len(values))
		for i, v := range values {
			scaled[i] = standardize(v, mean, variance)
		}
		out.numeric[col] = scaled
	}

	if fit {
		p.stats = next
	}
	out.scaled = true
	return out, nil
}

// Preprocess runs Clean, Encode and Scale with the same mode.
func (p *Preprocessor) Preprocess(ds *Dataset, fit bool) (*Dataset, error) {
	cleaned, err := p.Clean(ds, fit)
	if err != nil {
		return nil, err
	}
	encoded, err := p.Encode(cleaned, fit)
	if err != nil {
		return nil, err
	}
	return p.Scale(encoded, fit)
}

// PreprocessSingle transforms one record into a feature vector using the
// fitted statistics. It never fits.
func (p *Preprocessor) PreprocessSingle(rec Record) ([]float64, error) {
	ds, err := NewDataset([]Record{rec}, nil)
	if err != nil {
		return nil, err
	}
	processed, err := p.Preprocess(ds, false)
	if err != nil {
		return nil, err
	}
	return processed.Vector(p.schema, 0)
}
