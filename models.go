package models

import (
	"context"
	"errors"
)

// Manager governs acquisition, freshness, local adaptation and inference of
// a single personalized model.
// All methods are safe for concurrent use.
// For CLI integration, use NewCommand instead.
type Manager interface {
	// CheckForUpdates reports whether a newer seed model should be fetched.
	// It returns true when no local model exists, or when the server's
	// latest_update is strictly greater than the local file's mtime.
	// Any failure yields false; the error explains why.
	CheckForUpdates(ctx context.Context) (bool, error)

	// DownloadSeedModel fetches the seed model, replaces the local file
	// atomically and reloads the in-memory model.
	// On failure the previous file and in-memory model are left untouched.
	DownloadSeedModel(ctx context.Context) (bool, error)

	// UpdateWithLocalData retrains the model on the given observations and
	// labels and persists the result. Each call is a full retrain over the
	// data passed in; nothing from earlier calls is retained.
	// Returns false with ErrModelUnavailable if no model is loaded, and
	// false with ErrValidation for mismatched or malformed input.
	UpdateWithLocalData(ctx context.Context, observations [][]float64, labels []float64) (bool, error)

	// Predict returns the model's label for the first row of features.
	// Returns ErrModelUnavailable if no model is loaded.
	Predict(ctx context.Context, features Features) (float64, error)

	// HasModel reports whether a model is loaded in memory.
	HasModel() bool

	// LocalInfo describes the local model file.
	// Returns ErrNotInstalled if the file does not exist.
	LocalInfo(ctx context.Context) (LocalModelInfo, error)

	// ServerInfo fetches the server's model metadata.
	ServerInfo(ctx context.Context) (ServerModelInfo, error)

	// Reload re-reads the local file into memory.
	// If the file is missing or undecodable the in-memory model is cleared
	// and the error returned.
	Reload(ctx context.Context) error
}

// Ensure manager implements Manager interface.
var _ Manager = (*manager)(nil)

// NewManager creates a new Manager with the given configuration and codec.
// An existing local model is loaded immediately; a missing or corrupt file
// is logged and leaves the manager without a model rather than failing.
// Returns an error if the configuration is invalid.
func NewManager(cfg Config, codec Codec, opts ...ManagerOption) (Manager, error) {
	// Validate config
	if cfg.ServerURL == "" {
		return nil, errors.New("models: ServerURL is required")
	}
	if codec == nil {
		return nil, errors.New("models: Codec is required")
	}

	// Apply options
	mcfg := newManagerConfig()
	for _, opt := range opts {
		opt(mcfg)
	}

	// Create storage
	storage, err := newStorage(cfg, mcfg.lockTimeout)
	if err != nil {
		return nil, err
	}

	m := &manager{
		cfg:        cfg,
		codec:      codec,
		httpClient: mcfg.httpClient,
		logger:     mcfg.logger,
		storage:    storage,
		server:     newServerClient(cfg.ServerURL, mcfg.httpClient, mcfg.requestTimeout, mcfg.logger),
		progressFn: mcfg.progressFn,
	}
	m.loadInitial()

	return m, nil
}
