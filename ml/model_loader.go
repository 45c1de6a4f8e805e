package ml

import (
	"encoding/gob"
	"io"
	"os"
)

// LoadArtifact reads a persisted artifact. Any failure, including a
// structurally valid file that does not match this build's schema, is an
// ErrArtifactLoad.
func LoadArtifact(path string) (*ModelArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, artifactLoadError(err, "open artifact %s", path)
	}
	defer f.Close()

	a, err := ReadArtifact(f)
	if err != nil {
		return nil, artifactLoadError(err, "load artifact %s", path)
	}
	return a, nil
}

// ReadArtifact decodes and validates an artifact from r.
func ReadArtifact(r io.Reader) (*ModelArtifact, error) {
	var file artifactFile
	if err := gob.NewDecoder(r).Decode(&file); err != nil {
		return nil, artifactLoadError(err, "decode artifact")
	}
	if file.Version != ArtifactVersion {
		return nil, artifactLoadError(nil, "unsupported artifact version %d (want %d)", file.Version, ArtifactVersion)
	}
	schema := DefaultSchema()
	if !file.Schema.Equal(schema) {
		return nil, artifactLoadError(nil, "artifact schema %v does not match %v", file.Schema.FeatureNames(), schema.FeatureNames())
	}
	preprocessor, err := NewFittedPreprocessor(file.Schema, file.Stats)
	if err != nil {
		return nil, artifactLoadError(err, "artifact preprocessor")
	}
	a := &ModelArtifact{
		Version:      file.Version,
		CreatedAt:    file.CreatedAt,
		Model:        file.Model,
		Preprocessor: preprocessor,
		Evaluation:   file.Evaluation,
	}
	if err := a.validate(); err != nil {
		return nil, artifactLoadError(err, "artifact")
	}
	return a, nil
}
