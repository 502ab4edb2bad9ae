package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// digest returns the lowercase hex SHA-256 of data.
func digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DownloadSeedModel fetches the seed model and installs it locally.
func (m *manager) DownloadSeedModel(ctx context.Context) (bool, error) {
	if err := m.downloadSeedModel(ctx); err != nil {
		if m.logger != nil {
			m.logger.Error("seed model download failed", "error", err)
		}
		return false, err
	}
	return true, nil
}

// downloadSeedModel fetches, validates, persists and reloads the seed model.
// Nothing is written unless the fetched bytes decode as a model.
func (m *manager) downloadSeedModel(ctx context.Context) error {
	blob, err := m.server.fetchModel(ctx, m.progressFn)
	if err != nil {
		return fmt.Errorf("downloading seed model: %w", err)
	}

	validated, err := m.codec.Decode(blob)
	if err != nil {
		return fmt.Errorf("%w: downloaded seed model: %v", ErrCorruptModel, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.persist(ctx, blob); err != nil {
		return fmt.Errorf("saving seed model: %w", err)
	}

	// Reload from disk; the validated copy matches what was just written.
	st, err := m.loadFromStorage()
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("reload after download failed, using downloaded copy", "error", err)
		}
		st = &modelState{model: validated, blob: blob}
	}
	m.swap(st)

	if m.logger != nil {
		m.logger.Info("seed model installed", "path", m.storage.path(), "bytes", len(blob), "sha256", digest(blob))
	}
	return nil
}
