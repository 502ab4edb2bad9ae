package models

import "errors"

// Sentinel errors for model lifecycle operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrModelUnavailable indicates no usable model is loaded in memory.
	// Predict returns it directly; callers should retry after a download.
	ErrModelUnavailable = errors.New("models: no model available")

	// ErrNotInstalled indicates no model file exists at the local path.
	ErrNotInstalled = errors.New("models: model not installed")

	// ErrNetworkError indicates a network or connection failure.
	ErrNetworkError = errors.New("models: network error")

	// ErrServerError indicates the server answered with a non-200 status
	// or an unparseable payload.
	ErrServerError = errors.New("models: invalid server response")

	// ErrCorruptModel indicates model bytes could not be decoded by the codec.
	ErrCorruptModel = errors.New("models: corrupt model data")

	// ErrStorageError indicates a filesystem operation failed.
	ErrStorageError = errors.New("models: storage error")

	// ErrValidation indicates malformed observations or labels.
	ErrValidation = errors.New("models: invalid training data")

	// ErrFitFailed indicates the model rejected a fit.
	ErrFitFailed = errors.New("models: fit failed")

	// ErrPredictFailed indicates the model could not produce a prediction.
	ErrPredictFailed = errors.New("models: prediction failed")
)
