package ml

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// ArtifactVersion is bumped whenever the persisted layout changes.
const ArtifactVersion = 1

func init() {
	gob.Register(&RandomForest{})
	gob.Register(&DecisionTree{})
}

// Evaluation summarizes the classifier on the held-out partition.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	TrainRows int
	TestRows  int
	// Skipped counts held-out rows whose categories were never seen in training.
	Skipped int
}

// ModelArtifact pairs a classifier with the exact preprocessor it was
// trained against. Neither is valid without the other.
type ModelArtifact struct {
	Version      int
	CreatedAt    time.Time
	Model        Classifier
	Preprocessor *Preprocessor
	Evaluation   Evaluation
}

// artifactFile is the persisted layout.
type artifactFile struct {
	Version    int
	CreatedAt  time.Time
	Schema     FeatureSchema
	Stats      FitStatistics
	Model      Classifier
	Evaluation Evaluation
}

// NewModelArtifact freezes the preprocessor and pairs it with model.
func NewModelArtifact(model Classifier, preprocessor *Preprocessor, evaluation Evaluation) (*ModelArtifact, error) {
	a := &ModelArtifact{
		Version:      ArtifactVersion,
		CreatedAt:    time.Now().UTC(),
		Model:        model,
		Preprocessor: preprocessor,
		Evaluation:   evaluation,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	preprocessor.Freeze()
	return a, nil
}

func (a *ModelArtifact) validate() error {
	if a.Model == nil {
		return errors.New("artifact has no model")
	}
	if a.Preprocessor == nil {
		return errors.New("artifact has no preprocessor")
	}
	schema := a.Preprocessor.Schema()
	if err := a.Preprocessor.stats.Validate(schema); err != nil {
		return err
	}
	if a.Model.NumFeatures() != schema.Width() {
		return errors.Newf("model expects %d features, schema emits %d", a.Model.NumFeatures(), schema.Width())
	}
	if _, _, err := a.Model.Predict(make([]float64, schema.Width())); err != nil {
		return errors.Wrap(err, "model cannot predict")
	}
	return nil
}

// Predict preprocesses rec with the fitted statistics and classifies it.
func (a *ModelArtifact) Predict(rec Record) (int, float64, error) {
	vector, err := a.Preprocessor.PreprocessSingle(rec)
	if err != nil {
		return 0, 0, err
	}
	return a.Model.Predict(vector)
}

// Save writes the artifact atomically: it is encoded to a temporary file
// next to path and renamed into place.
func (a *ModelArtifact) Save(path string) error {
	if err := a.validate(); err != nil {
		return errors.Wrap(err, "refusing to save invalid artifact")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create model dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	defer os.Remove(tmp.Name())

	if err := a.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close artifact")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "move artifact to %s", path)
}

// Encode gob-encodes the artifact to w.
func (a *ModelArtifact) Encode(w io.Writer) error {
	file := artifactFile{
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		Schema:     a.Preprocessor.Schema(),
		Stats:      *a.Preprocessor.stats,
		Model:      a.Model,
		Evaluation: a.Evaluation,
	}
	if err := gob.NewEncoder(w).Encode(&file); err != nil {
		return errors.Wrap(err, "encode artifact")
	}
	return nil
}
