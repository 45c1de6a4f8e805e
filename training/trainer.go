// Package training fits the preprocessor and classifier from a labelled CSV
// dataset and persists them as one artifact.
package training

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"userpredict/db"
	"userpredict/ml"
)

const modelName = "random_forest"

// Config controls where the artifact goes and how the model is fitted.
type Config struct {
	ModelPath   string
	Encoding    string
	TestRatio   float64
	Seed        int64
	NEstimators int
	MaxDepth    int
}

// RunRecorder persists a summary of each completed run.
type RunRecorder interface {
	SaveTrainingLog(ctx context.Context, log db.TrainingLog) error
}

// Trainer runs one training job per Train call.
type Trainer struct {
	config   Config
	logger   *zap.Logger
	recorder RunRecorder
}

// NewTrainer returns a trainer. recorder may be nil.
func NewTrainer(config Config, logger *zap.Logger, recorder RunRecorder) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TestRatio <= 0 || config.TestRatio >= 1 {
		config.TestRatio = defaultTestRatio
	}
	return &Trainer{config: config, logger: logger, recorder: recorder}
}

// Train loads the dataset at source, fits a fresh preprocessor and forest on
// the training partition, evaluates on the held-out partition and saves the
// artifact to the configured model path.
func (t *Trainer) Train(ctx context.Context, source string) (*ml.ModelArtifact, error) {
	if t.config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	start := time.Now()
	ds, err := OpenCSV(source, t.config.Encoding)
	if err != nil {
		return nil, err
	}
	t.logger.Info("dataset loaded", zap.String("source", source), zap.Int("rows", ds.Rows()))

	artifact, err := t.Fit(ctx, ds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := artifact.Save(t.config.ModelPath); err != nil {
		return nil, err
	}

	eval := artifact.Evaluation
	t.logger.Info("model trained and saved",
		zap.String("model_path", t.config.ModelPath),
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
		zap.Int("train_rows", eval.TrainRows),
		zap.Int("test_rows", eval.TestRows),
		zap.Int("skipped_rows", eval.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	if t.recorder != nil {
		err := t.recorder.SaveTrainingLog(ctx, db.TrainingLog{
			ModelName:     modelName,
			ModelPath:     t.config.ModelPath,
			Accuracy:      eval.Accuracy,
			Precision:     eval.Precision,
			Recall:        eval.Recall,
			TrainedAt:     artifact.CreatedAt,
			DataPoints:    eval.TrainRows,
			TestPoints:    eval.TestRows,
			SkippedPoints: eval.Skipped,
		})
		if err != nil {
			// The artifact is already in place; a missing log entry does not invalidate it.
			t.logger.Warn("failed to record training run", zap.Error(err))
		}
	}
	return artifact, nil
}

// Fit splits ds, trains on the training partition and evaluates on the rest.
// Nothing is written to disk.
func (t *Trainer) Fit(ctx context.Context, ds *ml.Dataset) (*ml.ModelArtifact, error) {
	if ds.Labels() == nil {
		return nil, errors.Mark(errors.New("dataset has no labels"), ml.ErrValidation)
	}
	train, test := Split(ds, t.config.TestRatio, t.config.Seed)
	t.logger.Debug("dataset split", zap.Int("train", train.Rows()), zap.Int("test", test.Rows()))

	preprocessor := ml.NewPreprocessor(ml.DefaultSchema())
	processed, err := preprocessor.Preprocess(train, true)
	if err != nil {
		return nil, errors.Wrap(err, "fit preprocessor")
	}
	matrix, err := processed.Matrix(preprocessor.Schema())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest := ml.NewRandomForest(
		ml.WithEstimators(t.config.NEstimators),
		ml.WithMaxDepth(t.config.MaxDepth),
		ml.WithSeed(t.config.Seed),
	)
	if err := forest.Fit(matrix, processed.Labels()); err != nil {
		return nil, errors.Wrap(err, "fit classifier")
	}

	artifact, err := ml.NewModelArtifact(forest, preprocessor, ml.Evaluation{})
	if err != nil {
		return nil, err
	}
	eval, err := t.evaluate(artifact, test)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	eval.TrainRows = train.Rows()
	artifact.Evaluation = eval
	return artifact, nil
}

// evaluate scores held-out rows one at a time through the serving path, so a
// row with a category absent from the training partition is skipped instead
// of failing the whole batch.
func (t *Trainer) evaluate(artifact *ml.ModelArtifact, test *ml.Dataset) (ml.Evaluation, error) {
	eval := ml.Evaluation{TestRows: test.Rows()}
	var truth, predicted []int
	for i, rec := range test.Records() {
		label, _, err := artifact.Predict(rec)
		if errors.Is(err, ml.ErrEncoding) {
			eval.Skipped++
			t.logger.Debug("held-out row skipped", zap.Int("row", i), zap.Error(err))
			continue
		}
		if err != nil {
			return ml.Evaluation{}, err
		}
		truth = append(truth, test.Labels()[i])
		predicted = append(predicted, label)
	}
	if eval.Skipped > 0 {
		t.logger.Warn("held-out rows with unseen categories were skipped", zap.Int("skipped", eval.Skipped))
	}
	eval.Accuracy, eval.Precision, eval.Recall = scores(truth, predicted)
	return eval, nil
}

// scores returns accuracy and macro-averaged precision and recall.
func scores(truth, predicted []int) (accuracy, precision, recall float64) {
	if len(truth) == 0 {
		return 0, 0, 0
	}
	classes := make(map[int]struct{})
	correct := 0
	for i := range truth {
		classes[truth[i]] = struct{}{}
		classes[predicted[i]] = struct{}{}
		if truth[i] == predicted[i] {
			correct++
		}
	}
	labels := make([]int, 0, len(classes))
	for c := range classes {
		labels = append(labels, c)
	}
	sort.Ints(labels)

	for _, c := range labels {
		var truePositive, predictedPositive, actualPositive int
		for i := range truth {
			if predicted[i] == c {
				predictedPositive++
			}
			if truth[i] == c {
				actualPositive++
				if predicted[i] == c {
					truePositive++
				}
			}
		}
		if predictedPositive > 0 {
			precision += float64(truePositive) / float64(predictedPositive)
		}
		if actualPositive > 0 {
			recall += float64(truePositive) / float64(actualPositive)
		}
	}
	accuracy = float64(correct) / float64(len(truth))
	precision /= float64(len(labels))
	recall /= float64(len(labels))
	return accuracy, precision, recall
}
