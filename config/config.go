// Package config loads process configuration from a YAML file, an optional
// .env file and environment variables, in increasing order of precedence.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"userpredict/logger"
)

// Config is the process configuration shared by the server and the training CLI.
type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	// Auth.APIKey is the shared secret expected in X-API-KEY. Empty means
	// the prediction endpoint is open to anyone.
	Auth struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"auth"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Log      logger.Config `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Training struct {
		DataPath    string  `yaml:"data_path"`
		Encoding    string  `yaml:"encoding"`
		TestRatio   float64 `yaml:"test_ratio"`
		Seed        int64   `yaml:"seed"`
		NEstimators int     `yaml:"n_estimators"`
		MaxDepth    int     `yaml:"max_depth"`
	} `yaml:"training"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Http.Port = 5000
	c.Http.Timeout = 30 * time.Second
	c.Http.MaxBodyBytes = 1 << 20
	c.Model.Path = "models/classification_model.gob"
	c.Cache.Size = 1024
	c.Log.Level = "info"
	c.Database.Path = "data/training.db"
	c.Training.DataPath = "data/data.csv"
	c.Training.Encoding = "utf-8"
	c.Training.TestRatio = 0.2
	c.Training.Seed = 42
	c.Training.NEstimators = 100
	c.Training.MaxDepth = 10
	return &c
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrapf(err, "open config %s", path)
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(config); err != nil {
				return nil, errors.Wrapf(err, "decode config %s", path)
			}
		}
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFile exports the variables in a .env file into the process
// environment without overwriting ones already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("API_KEY"); ok {
		c.Auth.APIKey = v
	}
	if v, ok := os.LookupEnv("MODEL_PATH"); ok && v != "" {
		c.Model.Path = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid PORT %q", v)
		}
		c.Http.Port = port
	}
	return nil
}

// AuthEnabled reports whether requests must present the shared secret.
func (c *Config) AuthEnabled() bool {
	return c.Auth.APIKey != ""
}
