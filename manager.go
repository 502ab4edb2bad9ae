package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// modelState is the in-memory mirror of the local model file.
type modelState struct {
	// model is the decoded model.
	model Model

	// blob is the exact bytes model was decoded from.
	blob []byte
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// cfg holds the module configuration.
	cfg Config

	// codec converts between models and stored bytes.
	codec Codec

	// httpClient is used for all HTTP requests.
	httpClient HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// storage handles local filesystem operations.
	storage storageInterface

	// server handles communication with the seed server.
	server *serverClient

	// progressFn receives download progress. May be nil.
	progressFn func(DownloadProgress)

	// writeMu serializes downloads and local updates (load → mutate → persist).
	writeMu sync.Mutex

	// mu guards state.
	mu sync.RWMutex

	// state is nil when no model is loaded.
	state *modelState
}

// loadFromStorage reads and decodes the local model file.
func (m *manager) loadFromStorage() (*modelState, error) {
	blob, err := m.storage.read()
	if err != nil {
		return nil, err
	}

	model, err := m.codec.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptModel, m.storage.path(), err)
	}

	return &modelState{model: model, blob: blob}, nil
}

// loadInitial loads the local model at construction time.
// Failures leave the manager without a model.
func (m *manager) loadInitial() {
	st, err := m.loadFromStorage()
	switch {
	case err == nil:
		m.state = st
		if m.logger != nil {
			m.logger.Info("local model loaded", "path", m.storage.path(), "bytes", len(st.blob))
		}
	case errors.Is(err, ErrNotInstalled):
		if m.logger != nil {
			m.logger.Debug("no local model", "path", m.storage.path())
		}
	default:
		if m.logger != nil {
			m.logger.Warn("failed to load local model", "path", m.storage.path(), "error", err)
		}
	}
}

// current returns the loaded state, or nil.
func (m *manager) current() *modelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// swap installs st as the in-memory model.
func (m *manager) swap(st *modelState) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

// persist writes blob to storage under the cross-process lock.
func (m *manager) persist(ctx context.Context, blob []byte) error {
	l, err := m.storage.lock(ctx)
	if err != nil {
		return err
	}
	defer l.Unlock()

	return m.storage.atomicWrite(blob)
}

// unixSeconds converts t to fractional Unix seconds, the unit of latest_update.
func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// CheckForUpdates reports whether a newer seed model should be fetched.
func (m *manager) CheckForUpdates(ctx context.Context) (bool, error) {
	info, err := m.server.fetchModelInfo(ctx)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("update check failed", "error", err)
		}
		return false, err
	}

	mtime, err := m.storage.modTime()
	if errors.Is(err, ErrNotInstalled) {
		if m.logger != nil {
			m.logger.Info("no local model, update needed", "path", m.storage.path())
		}
		return true, nil
	}
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("update check failed", "error", err)
		}
		return false, err
	}

	if info.LatestUpdate == nil {
		if m.logger != nil {
			m.logger.Debug("server did not report latest_update")
		}
		return false, nil
	}

	local := unixSeconds(mtime)
	newer := *info.LatestUpdate > local
	if m.logger != nil {
		m.logger.Debug("update check", "server_mtime", *info.LatestUpdate, "local_mtime", local, "update", newer)
	}
	return newer, nil
}

// UpdateWithLocalData retrains a copy of the model and persists it.
func (m *manager) UpdateWithLocalData(ctx context.Context, observations [][]float64, labels []float64) (bool, error) {
	if err := m.updateWithLocalData(ctx, observations, labels); err != nil {
		if m.logger != nil {
			if errors.Is(err, ErrModelUnavailable) {
				m.logger.Warn("no model available to update")
			} else {
				m.logger.Error("local update failed", "error", err)
			}
		}
		return false, err
	}
	return true, nil
}

func (m *manager) updateWithLocalData(ctx context.Context, observations [][]float64, labels []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.current()
	if st == nil {
		return ErrModelUnavailable
	}

	if err := validateTrainingData(observations, labels); err != nil {
		return err
	}

	// Fit a fresh copy so a failure cannot touch the served model.
	working, err := m.codec.Decode(st.blob)
	if err != nil {
		return fmt.Errorf("%w: copying model: %v", ErrCorruptModel, err)
	}

	if err := working.Fit(observations, labels); err != nil {
		return fmt.Errorf("%w: %v", ErrFitFailed, err)
	}

	blob, err := m.codec.Encode(working)
	if err != nil {
		return fmt.Errorf("%w: encoding model: %v", ErrStorageError, err)
	}

	if err := m.persist(ctx, blob); err != nil {
		return fmt.Errorf("saving updated model: %w", err)
	}

	m.swap(&modelState{model: working, blob: blob})

	if m.logger != nil {
		m.logger.Info("model updated with local data", "observations", len(observations), "bytes", len(blob))
	}
	return nil
}

// validateTrainingData checks observations and labels are parallel,
// non-empty, rectangular and finite.
func validateTrainingData(observations [][]float64, labels []float64) error {
	if len(observations) == 0 {
		return fmt.Errorf("%w: no observations", ErrValidation)
	}
	if len(observations) != len(labels) {
		return fmt.Errorf("%w: %d observations but %d labels", ErrValidation, len(observations), len(labels))
	}

	width := len(observations[0])
	if width == 0 {
		return fmt.Errorf("%w: observation 0 is empty", ErrValidation)
	}
	for i, row := range observations {
		if len(row) != width {
			return fmt.Errorf("%w: observation %d has %d values, want %d", ErrValidation, i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: observation %d has a non-finite value", ErrValidation, i)
			}
		}
	}
	for i, v := range labels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: label %d is not finite", ErrValidation, i)
		}
	}

	return nil
}

// Predict returns the model's label for the first row of features.
func (m *manager) Predict(ctx context.Context, features Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	st := m.current()
	if st == nil {
		return 0, ErrModelUnavailable
	}
	if features == nil {
		return 0, fmt.Errorf("%w: no features", ErrPredictFailed)
	}

	out, err := st.model.Predict(features.batch())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPredictFailed, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: model returned no labels", ErrPredictFailed)
	}

	return out[0], nil
}

// HasModel reports whether a model is loaded in memory.
func (m *manager) HasModel() bool {
	return m.current() != nil
}

// LocalInfo describes the local model file.
func (m *manager) LocalInfo(ctx context.Context) (LocalModelInfo, error) {
	mtime, err := m.storage.modTime()
	if err != nil {
		return LocalModelInfo{}, err
	}

	data, err := m.storage.read()
	if err != nil {
		return LocalModelInfo{}, err
	}

	return LocalModelInfo{
		Path:       m.storage.path(),
		Size:       int64(len(data)),
		ModifiedAt: mtime,
		SHA256:     digest(data),
		Loaded:     m.HasModel(),
	}, nil
}

// ServerInfo fetches the server's model metadata.
func (m *manager) ServerInfo(ctx context.Context) (ServerModelInfo, error) {
	return m.server.fetchModelInfo(ctx)
}

// Reload re-reads the local file into memory.
func (m *manager) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st, err := m.loadFromStorage()
	if err != nil {
		m.swap(nil)
		if m.logger != nil {
			m.logger.Warn("failed to reload local model", "path", m.storage.path(), "error", err)
		}
		return err
	}

	m.swap(st)
	return nil
}
