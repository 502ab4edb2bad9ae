package models

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout is the default timeout for HTTP requests.
	DefaultRequestTimeout = 30 * time.Second

	// MaxModelSize caps the number of bytes accepted from /download_model.
	MaxModelSize = 512 << 20
)

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// managerConfig holds configuration for Manager construction.
type managerConfig struct {
	// httpClient is used for all HTTP requests to the server.
	httpClient HTTPClient

	// logger receives diagnostic log messages.
	logger Logger

	// requestTimeout bounds every server request.
	requestTimeout time.Duration

	// lockTimeout bounds acquisition of the cross-process model lock.
	lockTimeout time.Duration

	// progressFn is called with progress updates during downloads.
	progressFn func(DownloadProgress)
}

// newManagerConfig returns a managerConfig with default values.
func newManagerConfig() *managerConfig {
	return &managerConfig{
		httpClient:     http.DefaultClient,
		requestTimeout: DefaultRequestTimeout,
		lockTimeout:    DefaultLockTimeout,
	}
}

// WithHTTPClient sets a custom HTTP client for server requests.
// Useful for testing with mock servers or customizing transports.
// If not set, http.DefaultClient is used.
func WithHTTPClient(client HTTPClient) ManagerOption {
	return func(c *managerConfig) {
		c.httpClient = client
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithRequestTimeout sets the per-request timeout for server calls.
// Non-positive values keep DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) ManagerOption {
	return func(c *managerConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithLockTimeout sets how long writers wait for the cross-process lock.
// Non-positive values keep DefaultLockTimeout.
func WithLockTimeout(d time.Duration) ManagerOption {
	return func(c *managerConfig) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

// WithProgress sets a callback for progress updates during seed downloads.
// The callback runs on the downloading goroutine.
func WithProgress(fn func(DownloadProgress)) ManagerOption {
	return func(c *managerConfig) {
		c.progressFn = fn
	}
}

// HTTPClient is the interface for HTTP operations.
// *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}
