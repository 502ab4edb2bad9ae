package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLockTimeout is the default timeout for acquiring file locks.
const DefaultLockTimeout = 30 * time.Second

// DefaultModelFile is the model file name used inside a data directory.
const DefaultModelFile = "local_model.bin"

// storageInterface defines operations on the local model file.
// Implemented by *storage for production and mock stores for tests.
type storageInterface interface {
	// path returns the absolute path to the model file.
	path() string

	// exists reports whether the model file exists.
	exists() (bool, error)

	// modTime returns the model file's last-modified time.
	// Returns ErrNotInstalled if the file does not exist.
	modTime() (time.Time, error)

	// read returns the full contents of the model file.
	// Returns ErrNotInstalled if the file does not exist.
	read() ([]byte, error)

	// atomicWrite replaces the model file using write-then-rename.
	atomicWrite(data []byte) error

	// lock acquires the cross-process writer lock for the model file,
	// giving up when ctx is done.
	lock(ctx context.Context) (Locker, error)
}

// storage handles all local filesystem operations for one model file.
// Implements storageInterface.
type storage struct {
	// modelPath is the absolute path to the model file.
	modelPath string

	// lockTimeout is the maximum duration to wait for file lock acquisition.
	lockTimeout time.Duration
}

// Ensure storage implements storageInterface.
var _ storageInterface = (*storage)(nil)

// envVarName constructs an environment variable name from the app name.
// Converts appName to uppercase and appends "_MODEL_PATH".
// Example: envVarName("bitbyte") returns "BITBYTE_MODEL_PATH".
func envVarName(appName string) string {
	return strings.ToUpper(appName) + "_MODEL_PATH"
}

// resolveModelPath determines the model file location.
// Priority: env var > Config.ModelPath > Config.DataDir > platform default.
func resolveModelPath(cfg Config) (string, error) {
	var p string
	switch {
	case cfg.AppName != "" && os.Getenv(envVarName(cfg.AppName)) != "":
		p = os.Getenv(envVarName(cfg.AppName))
	case cfg.ModelPath != "":
		p = cfg.ModelPath
	case cfg.DataDir != "":
		p = filepath.Join(cfg.DataDir, DefaultModelFile)
	case cfg.AppName != "":
		dir, err := getDefaultDataDir(cfg.AppName)
		if err != nil {
			return "", fmt.Errorf("failed to get default data dir: %w", err)
		}
		p = filepath.Join(dir, DefaultModelFile)
	default:
		return "", errors.New("models: ModelPath, DataDir or AppName is required")
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving model path: %w", err)
	}
	return abs, nil
}

// ModelPath returns the absolute model file path a Manager built from cfg
// would use.
func ModelPath(cfg Config) (string, error) {
	return resolveModelPath(cfg)
}

// newStorage creates a new storage instance for the given configuration.
func newStorage(cfg Config, lockTimeout time.Duration) (*storage, error) {
	p, err := resolveModelPath(cfg)
	if err != nil {
		return nil, err
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	s := &storage{modelPath: p, lockTimeout: lockTimeout}

	// Ensure the parent directory exists
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create storage directory: %v", ErrStorageError, err)
	}

	return s, nil
}

func (s *storage) path() string {
	return s.modelPath
}

func (s *storage) exists() (bool, error) {
	_, err := os.Stat(s.modelPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrStorageError, err)
}

func (s *storage) modTime() (time.Time, error) {
	info, err := os.Stat(s.modelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, ErrNotInstalled
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return info.ModTime(), nil
}

func (s *storage) read() ([]byte, error) {
	data, err := os.ReadFile(s.modelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotInstalled
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return data, nil
}

// atomicWrite writes data to a uniquely named temp file in the same
// directory, syncs it, and renames it over the model file.
func (s *storage) atomicWrite(data []byte) error {
	dir := filepath.Dir(s.modelPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrStorageError, err)
	}

	tmp := s.modelPath + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", ErrStorageError, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to write temp file: %v", ErrStorageError, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to sync temp file: %v", ErrStorageError, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to close temp file: %v", ErrStorageError, err)
	}

	// Atomic rename
	if err := os.Rename(tmp, s.modelPath); err != nil {
		os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("%w: failed to rename temp file: %v", ErrStorageError, err)
	}

	// The new file is already in place; a failed directory sync is not
	// reported as a failed write.
	_ = syncDir(dir)

	return nil
}

// lock acquires the cross-process lock stored next to the model file.
func (s *storage) lock(ctx context.Context) (Locker, error) {
	l, err := newFileLock(s.modelPath+".lock", s.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create lock: %v", ErrStorageError, err)
	}
	if err := l.Lock(ctx); err != nil {
		l.Unlock()
		return nil, fmt.Errorf("%w: failed to acquire lock: %w", ErrStorageError, err)
	}
	return l, nil
}
