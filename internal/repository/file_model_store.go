package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

// Decoder restores a model from the bytes produced by Model.MarshalBinary.
type Decoder func(data []byte) (service.Model, error)

// FileModelStore keeps one file per series key under dir.
type FileModelStore struct {
	dir    string
	decode Decoder
}

func NewFileModelStore(dir string, decode Decoder) (*FileModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("model dir: %w", err)
	}
	return &FileModelStore{dir: dir, decode: decode}, nil
}

func (s *FileModelStore) path(key models.SeriesKey) string {
	return filepath.Join(s.dir, "predictor-"+url.QueryEscape(key.String())+".json")
}

// Save writes through a temp file and rename so readers never see a
// partial model.
func (s *FileModelStore) Save(_ context.Context, key models.SeriesKey, m service.Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode model %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".predictor-*")
	if err != nil {
		return fmt.Errorf("save model %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save model %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save model %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("save model %s: %w", key, err)
	}
	return nil
}

func (s *FileModelStore) Load(_ context.Context, key models.SeriesKey) (service.Model, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load model %s: %w", key, err)
	}
	m, err := s.decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("load model %s: %w", key, err)
	}
	return m, true, nil
}

var _ service.ModelStore = (*FileModelStore)(nil)
