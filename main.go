package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"userpredict/config"
	uphttp "userpredict/http"
	"userpredict/logger"
	"userpredict/ml"
	"userpredict/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	envFile := flag.String("env_file", ".env", "path to an optional .env file")
	flag.Parse()

	// 1. Load config
	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// 3. Model artifact; the server never starts without one
	artifact, err := ml.LoadArtifact(cfg.Model.Path)
	if err != nil {
		zlog.Fatal("failed to load model artifact",
			zap.String("model_path", cfg.Model.Path),
			zap.String("error_kind", ml.ErrorKind(err)),
			zap.Error(err),
		)
	}
	zlog.Info("model artifact loaded",
		zap.String("model_path", cfg.Model.Path),
		zap.Int("version", artifact.Version),
		zap.Time("trained_at", artifact.CreatedAt),
		zap.Float64("accuracy", artifact.Evaluation.Accuracy),
	)
	if !cfg.AuthEnabled() {
		zlog.Warn("API_KEY is not set; POST /predict is open to unauthenticated requests")
	}

	// 4. Start HTTP server
	server, err := uphttp.NewServer(uphttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
		APIKey:       cfg.Auth.APIKey,
		CacheSize:    cfg.Cache.Size,
	}, artifact, zlog, monitoring.NewMetrics())
	if err != nil {
		zlog.Fatal("failed to create server", zap.Error(err))
	}
	go func() {
		if err := server.Start(); err != nil {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("exiting")
}
