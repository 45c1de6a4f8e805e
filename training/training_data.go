package training

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"userpredict/ml"
)

func validationErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ml.ErrValidation)
}

// OpenCSV loads a labelled dataset from a CSV file.
func OpenCSV(path, charset string) (*ml.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return LoadCSV(f, charset)
}

// LoadCSV reads a labelled dataset. The header must name every schema
// column and the target column; other columns are ignored. charset is an
// encoding label such as "utf-8" or "gbk"; a UTF byte order mark overrides it.
func LoadCSV(r io.Reader, charset string) (*ml.Dataset, error) {
	decoded, err := decodeReader(r, charset)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, validationErrorf("dataset is empty")
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read header"), ml.ErrValidation)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	schema := ml.DefaultSchema()
	required := append(schema.FeatureNames(), schema.Target)
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, validationErrorf("dataset is missing columns: %s", strings.Join(missing, ", "))
	}

	var records []ml.Record
	var labels []int
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read line %d", line), ml.ErrValidation)
		}

		label, err := parseLabel(row[index[schema.Target]])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "line %d: column %q", line, schema.Target), ml.ErrValidation)
		}

		fields := make(map[string]string, schema.Width())
		for _, name := range schema.FeatureNames() {
			fields[name] = row[index[name]]
		}
		records = append(records, ml.RecordFromStrings(fields))
		labels = append(labels, label)
	}
	if len(records) == 0 {
		return nil, validationErrorf("dataset has no rows")
	}
	return ml.NewDataset(records, labels)
}

func parseLabel(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.New("label is empty")
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errors.Newf("label %q is not an integer", text)
	}
	if f < math.MinInt || f >= -math.MinInt {
		return 0, errors.Newf("label %q is out of range", text)
	}
	return int(f), nil
}

func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	name := strings.TrimSpace(charset)
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, validationErrorf("unsupported dataset encoding %q", charset)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
