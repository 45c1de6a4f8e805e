package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"userpredict/config"
	"userpredict/db"
	"userpredict/logger"
	"userpredict/training"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	dataPath := flag.String("data_path", "", "training CSV (default from config)")
	modelPath := flag.String("model_path", "", "model output path (default from config)")
	encoding := flag.String("encoding", "", "CSV character encoding (default from config)")
	testRatio := flag.Float64("test_ratio", 0, "held-out fraction (default from config)")
	seed := flag.Int64("seed", -1, "split and forest seed (default from config)")
	nEstimators := flag.Int("n_estimators", 0, "number of trees (default from config)")
	maxDepth := flag.Int("max_depth", 0, "max tree depth (default from config)")
	flag.Parse()

	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *dataPath, *modelPath, *encoding, *testRatio, *seed, *nEstimators, *maxDepth)

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	var recorder training.RunRecorder
	if cfg.Database.Path != "" {
		store, err := db.InitDB(cfg.Database.Path)
		if err != nil {
			zlog.Fatal("failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer store.Close()
		recorder = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainer := training.NewTrainer(training.Config{
		ModelPath:   cfg.Model.Path,
		Encoding:    cfg.Training.Encoding,
		TestRatio:   cfg.Training.TestRatio,
		Seed:        cfg.Training.Seed,
		NEstimators: cfg.Training.NEstimators,
		MaxDepth:    cfg.Training.MaxDepth,
	}, zlog, recorder)

	artifact, err := trainer.Train(ctx, cfg.Training.DataPath)
	if err != nil {
		zlog.Fatal("training failed", zap.String("data_path", cfg.Training.DataPath), zap.Error(err))
	}

	eval := artifact.Evaluation
	fmt.Printf("accuracy=%.2f precision=%.2f recall=%.2f\n", eval.Accuracy, eval.Precision, eval.Recall)
	fmt.Printf("model saved to %s\n", cfg.Model.Path)
}

// applyFlags overrides config values with flags that were set explicitly.
func applyFlags(cfg *config.Config, dataPath, modelPath, encoding string, testRatio float64, seed int64, nEstimators, maxDepth int) {
	if dataPath != "" {
		cfg.Training.DataPath = dataPath
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if encoding != "" {
		cfg.Training.Encoding = encoding
	}
	if testRatio > 0 {
		cfg.Training.TestRatio = testRatio
	}
	if seed >= 0 {
		cfg.Training.Seed = seed
	}
	if nEstimators > 0 {
		cfg.Training.NEstimators = nEstimators
	}
	if maxDepth > 0 {
		cfg.Training.MaxDepth = maxDepth
	}
}
