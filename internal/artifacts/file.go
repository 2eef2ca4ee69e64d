package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

const (
	latestFile    = "latest-deployment.json"
	maxKeyAttempt = 1000
)

// FileStore keeps records as JSON documents in a directory:
// deployment-<unix-ms>.json for history and latest-deployment.json
type FileStore struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		now:    time.Now,
		logger: logger.Named("artifacts"),
	}
}

// Dir returns the store directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes the history document first, then replaces latest atomically
func (s *FileStore) Save(ctx context.Context, rec *models.DeploymentRecord) (string, error) {
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create deployments directory: %w", err)
	}

	key, err := s.writeHistory(data)
	if err != nil {
		return "", err
	}

	if err := s.writeLatest(data); err != nil {
		return key, err
	}

	s.logger.Info("Deployment record saved",
		zap.String("key", key),
		zap.String("path", filepath.Join(s.dir, key+".json")),
		zap.String("latest", filepath.Join(s.dir, latestFile)))

	return key, nil
}

// writeHistory creates a new file and never overwrites an existing one
func (s *FileStore) writeHistory(data []byte) (string, error) {
	now := s.now()
	for attempt := 0; attempt < maxKeyAttempt; attempt++ {
		key := historyKey(now, attempt)
		path := filepath.Join(s.dir, key+".json")

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to sync %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return key, nil
	}
	return "", fmt.Errorf("no free deployment key for %d", now.UnixMilli())
}

func (s *FileStore) writeLatest(data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".latest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary latest file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write latest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync latest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close latest: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, latestFile)); err != nil {
		return fmt.Errorf("failed to replace latest: %w", err)
	}
	return nil
}

// Load reads the record under key. Keys may be given with or without the
// .json extension.
func (s *FileStore) Load(ctx context.Context, key string) (*models.DeploymentRecord, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(key, ".json") + ".json"
	if key == LatestKey {
		name = latestFile
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &errs.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment %s: %w", key, err)
	}
	return Decode(data)
}

// List returns the history keys found in the directory, oldest first
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, keyPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return sortKeys(keys), nil
}
