package ml

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Concrete errors carry one of these as a mark, so callers
// classify with errors.Is instead of matching message text.
var (
	// ErrValidation marks bad input: missing field, malformed value, empty column.
	ErrValidation = errors.New("validation error")
	// ErrEncoding marks a categorical value that was not seen during fit.
	ErrEncoding = errors.New("encoding error")
	// ErrFitState marks a transform attempted before the statistics it needs exist.
	ErrFitState = errors.New("fit state error")
	// ErrArtifactLoad marks a persisted model that cannot be used.
	ErrArtifactLoad = errors.New("artifact load error")
)

func validationErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func encodingErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrEncoding)
}

func fitStateErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrFitState)
}

func artifactLoadError(err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), ErrArtifactLoad)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrArtifactLoad)
}

// ErrorKind names the taxonomy entry of err, for logs. A failed artifact
// load reports "artifact_load" whatever its cause; unclassified errors
// report "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrArtifactLoad):
		return "artifact_load"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrFitState):
		return "fit_state"
	default:
		return "internal"
	}
}
