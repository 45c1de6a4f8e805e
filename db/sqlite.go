package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Store records training runs in SQLite.
type Store struct {
	database *sql.DB
}

// InitDB opens (creating if needed) the database at path and ensures the
// schema exists.
func InitDB(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create database dir %s", dir)
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER,
        test_points INTEGER,
        skipped_points INTEGER
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "create tables")
	}
	return &Store{database: database}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.database.Close()
}

// TrainingLog is one row of the training_log table.
type TrainingLog struct {
	ModelName     string    `json:"model_name"`
	ModelPath     string    `json:"model_path"`
	Accuracy      float64   `json:"accuracy"`
	Precision     float64   `json:"precision"`
	Recall        float64   `json:"recall"`
	TrainedAt     time.Time `json:"trained_at"`
	DataPoints    int       `json:"data_points"`
	TestPoints    int       `json:"test_points"`
	SkippedPoints int       `json:"skipped_points"`
}

// SaveTrainingLog appends a training run.
func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	_, err := s.database.ExecContext(ctx, `
        INSERT INTO training_log (
            model_name, model_path, accuracy, precision, recall,
            trained_at, data_points, test_points, skipped_points
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		log.ModelName,
		log.ModelPath,
		log.Accuracy,
		log.Precision,
		log.Recall,
		log.TrainedAt.UTC(),
		log.DataPoints,
		log.TestPoints,
		log.SkippedPoints,
	)
	return errors.Wrap(err, "insert training log")
}

// LoadTrainingLog returns every run, newest first.
func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.database.QueryContext(ctx, `
        SELECT model_name, model_path, accuracy, precision, recall,
               trained_at, data_points, test_points, skipped_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, errors.Wrap(err, "query training log")
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.ModelPath, &log.Accuracy, &log.Precision, &log.Recall,
			&log.TrainedAt, &log.DataPoints, &log.TestPoints, &log.SkippedPoints); err != nil {
			return nil, errors.Wrap(err, "scan training log")
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
