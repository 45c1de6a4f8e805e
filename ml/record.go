package ml

import (
	"encoding/json"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Value is one raw field of a record, before any coercion.
type Value struct {
	Text string
	Null bool
}

// Text wraps a raw string value.
func Text(s string) Value {
	return Value{Text: s}
}

// Number wraps a numeric value.
func Number(f float64) Value {
	return Value{Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Null is an explicitly absent value.
func Null() Value {
	return Value{Null: true}
}

// Missing reports whether the value is null or blank.
func (v Value) Missing() bool {
	return v.Null || strings.TrimSpace(v.Text) == ""
}

// Float coerces the value to a finite number. Non-numeric text, NaN and
// infinities count as missing.
func (v Value) Float() (float64, bool) {
	if v.Missing() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Category returns the trimmed category label.
func (v Value) Category() (string, bool) {
	if v.Missing() {
		return "", false
	}
	return strings.TrimSpace(v.Text), true
}

// Record is one user's input attributes.
type Record struct {
	Age            Value
	Gender         Value
	Income         Value
	DaysOnPlatform Value
	City           Value
}

// RequiredFields lists the fields every record must carry, in API order.
func RequiredFields() []string {
	return []string{ColumnAge, ColumnGender, ColumnIncome, ColumnDaysOnPlatform, ColumnCity}
}

// Field returns the value of a schema column.
func (r Record) Field(column string) (Value, bool) {
	switch column {
	case ColumnAge:
		return r.Age, true
	case ColumnGender:
		return r.Gender, true
	case ColumnIncome:
		return r.Income, true
	case ColumnDaysOnPlatform:
		return r.DaysOnPlatform, true
	case ColumnCity:
		return r.City, true
	default:
		return Value{}, false
	}
}

func (r *Record) set(column string, v Value) bool {
	switch column {
	case ColumnAge:
		r.Age = v
	case ColumnGender:
		r.Gender = v
	case ColumnIncome:
		r.Income = v
	case ColumnDaysOnPlatform:
		r.DaysOnPlatform = v
	case ColumnCity:
		r.City = v
	default:
		return false
	}
	return true
}

// Key is a stable textual identity of the record's raw values.
func (r Record) Key() string {
	var b strings.Builder
	for _, name := range RequiredFields() {
		v, _ := r.Field(name)
		if v.Null {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.Quote(v.Text))
		}
		b.WriteByte(',')
	}
	return b.String()
}

// RecordFromStrings builds a record from column/text pairs, as read from a
// CSV row. Columns outside the schema are ignored.
func RecordFromStrings(fields map[string]string) Record {
	var rec Record
	for name, text := range fields {
		rec.set(name, Text(text))
	}
	return rec
}

// DecodeRecord reads a JSON object and validates it against the record
// fields. Presence is checked before any value is interpreted: a missing
// field, an unknown field, a non-scalar value or anything after the object
// is a validation error.
func DecodeRecord(r io.Reader) (Record, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return Record{}, errors.Mark(errors.Wrap(err, "malformed request body"), ErrValidation)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Record{}, validationErrorf("request body must contain a single JSON object")
		}
		return Record{}, errors.Mark(errors.Wrap(err, "trailing data after request body"), ErrValidation)
	}
	return RecordFromJSON(raw)
}

// RecordFromJSON validates already split JSON fields.
func RecordFromJSON(raw map[string]json.RawMessage) (Record, error) {
	if raw == nil {
		return Record{}, validationErrorf("request body must be a JSON object")
	}

	var missing []string
	for _, name := range RequiredFields() {
		if _, ok := raw[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Record{}, validationErrorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var unknown []string
	for name := range raw {
		if _, ok := (Record{}).Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Record{}, validationErrorf("unknown fields: %s", strings.Join(unknown, ", "))
	}

	var rec Record
	for _, name := range RequiredFields() {
		v, err := scalarValue(raw[name])
		if err != nil {
			return Record{}, errors.Mark(errors.Wrapf(err, "field %q", name), ErrValidation)
		}
		rec.set(name, v)
	}
	return rec, nil
}

func scalarValue(raw json.RawMessage) (Value, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Value{}, errors.New("empty value")
	}
	switch text[0] {
	case 'n':
		if text != "null" {
			return Value{}, errors.Newf("invalid literal %s", text)
		}
		return Null(), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, errors.Wrap(err, "invalid string")
		}
		return Text(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, errors.Wrap(err, "invalid literal")
		}
		return Text(strconv.FormatBool(b)), nil
	case '{', '[':
		return Value{}, errors.New("value must be a string, number or null")
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, errors.Wrap(err, "invalid number")
		}
		return Text(n.String()), nil
	}
}
