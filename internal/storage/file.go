package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/engine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TagsSuffix is appended to an object path to name its tag sidecar.
const TagsSuffix = ".tags.json"

// FileStore writes objects below a local directory. An object becomes
// visible under its key only once Close succeeds.
type FileStore struct {
	dir         string
	compression string
	ext         string
	logger      *zap.Logger
}

func NewFileStore(dir, compression string, logger *zap.Logger) (*FileStore, error) {
	ext, err := Extension(compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, compression: compression, ext: ext, logger: logger}, nil
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) (string, error) {
	name := filepath.FromSlash(key)
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileStore) Create(_ context.Context, key string) (engine.ObjectWriter, error) {
	key += s.ext
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", key, err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	lw, err := newLineWriter(f, s.compression)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &fileWriter{lineWriter: lw, key: key, path: path, file: f, logger: s.logger}, nil
}

// SetTags writes tags to the sidecar of an existing object.
func (s *FileStore) SetTags(_ context.Context, key string, tags map[string]string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("tag %s: %w", key, err)
	}
	data, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path+TagsSuffix, data)
}

// Tags reads the sidecar of key. An untagged object has no tags.
func (s *FileStore) Tags(key string) (map[string]string, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path + TagsSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, err
	}
	tags := map[string]string{}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", key, err)
	}
	return tags, nil
}

type fileWriter struct {
	*lineWriter
	key    string
	path   string
	file   *os.File
	logger *zap.Logger
}

func (w *fileWriter) Key() string {
	return w.key
}

// Close flushes the temporary file and renames it over the final path.
func (w *fileWriter) Close() error {
	if err := w.finish(); err != nil {
		w.discard()
		return fmt.Errorf("finish %s: %w", w.key, err)
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync %s: %w", w.key, err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("close %s: %w", w.key, err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("publish %s: %w", w.key, err)
	}
	w.logger.Debug("object written", zap.String("path", w.path))
	return nil
}

func (w *fileWriter) Abort(err error) {
	w.discard()
	w.logger.Warn("object discarded", zap.String("key", w.key), zap.Error(err))
}

func (w *fileWriter) discard() {
	w.abandon()
	w.file.Close()
	os.Remove(w.file.Name())
}

// writeFileAtomic writes to a temp file first, then renames.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
