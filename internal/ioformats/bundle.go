package ioformats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bbk-press-crawler/internal/models"
)

// JSONFileSink writes one bundle per run to {Dir}/{start}_{end}_{run}.json.
type JSONFileSink struct {
	Dir    string
	Indent bool
}

func NewJSONFileSink(dir string) *JSONFileSink {
	return &JSONFileSink{Dir: dir}
}

func (s *JSONFileSink) Persist(_ context.Context, bundle *models.ResultBundle, naming models.Naming) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(s.Dir, naming.FileName())

	var data []byte
	var err error
	if s.Indent {
		data, err = json.MarshalIndent(bundle, "", "  ")
	} else {
		data, err = json.Marshal(bundle)
	}
	if err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}

	// write then rename so a crash never leaves a half written report
	tmp, err := os.CreateTemp(s.Dir, ".bundle-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod bundle: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename bundle: %w", err)
	}
	return path, nil
}

// ReadBundle loads a bundle previously written by JSONFileSink.
func ReadBundle(path string) (*models.ResultBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b models.ResultBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	if b.Errors == nil {
		b.Errors = []string{}
	}
	if b.Successes == nil {
		b.Successes = []models.DocumentRecord{}
	}
	return &b, nil
}
