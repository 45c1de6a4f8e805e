package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"API_KEY", "MODEL_PATH", "PORT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 5000 || config.Model.Path != "models/classification_model.gob" {
		t.Fatalf("unexpected defaults: %+v", config)
	}
	if config.Training.Seed != 42 || config.Training.TestRatio != 0.2 || config.Training.NEstimators != 100 {
		t.Fatalf("unexpected training defaults: %+v", config.Training)
	}
	if config.AuthEnabled() {
		t.Fatal("auth should be disabled without a key")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  port: 8081
  timeout: 10s
model:
  path: /srv/model.gob
auth:
  api_key: from-file
training:
  seed: 7
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 8081 || config.Http.Timeout != 10*time.Second {
		t.Fatalf("file values not applied: %+v", config.Http)
	}
	if config.Training.Seed != 7 || config.Training.NEstimators != 100 {
		t.Fatalf("expected file value over defaults: %+v", config.Training)
	}
	if !config.AuthEnabled() {
		t.Fatal("expected auth enabled from file")
	}

	t.Setenv("API_KEY", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_PATH", "/tmp/m.gob")
	t.Setenv("LOG_LEVEL", "debug")
	config, err = Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Auth.APIKey != "from-env" || config.Http.Port != 9090 || config.Model.Path != "/tmp/m.gob" || config.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v", config)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}

	t.Setenv("PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("USERPREDICT_TEST_SECRET=abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("USERPREDICT_TEST_SECRET") })
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("USERPREDICT_TEST_SECRET"); got != "abc" {
		t.Fatalf("expected variable from .env, got %q", got)
	}
}
