package models

import "time"

// Config configures the model lifecycle manager.
type Config struct {
	// AppName determines the default storage directory name and the
	// environment variable that overrides the model path.
	// Example: "bitbyte" → ~/.local/share/bitbyte/models/ on Linux
	AppName string

	// ServerURL is the base URL of the seed model server.
	// Example: "https://ml.example.com"
	ServerURL string

	// ModelPath is the file holding the local model.
	// If empty, DefaultModelFile inside DataDir (or the platform default
	// data directory) is used.
	// Can also be set via environment variable: <APPNAME>_MODEL_PATH
	ModelPath string

	// DataDir overrides the default data directory.
	// Ignored when ModelPath is set.
	DataDir string
}

// Model is the capability the manager requires of any model implementation.
// The manager never inspects a model beyond these two operations.
type Model interface {
	// Fit retrains the model on the given observations and labels.
	// Returns an error if the data is malformed.
	Fit(observations [][]float64, labels []float64) error

	// Predict returns one label per observation row.
	// Returns an error if the model is not trained or the rows have the
	// wrong shape. Predict may be called concurrently.
	Predict(observations [][]float64) ([]float64, error)
}

// Codec converts between a Model and its serialized form.
// The byte format is owned entirely by the codec.
type Codec interface {
	// Decode builds a model from serialized bytes.
	Decode(data []byte) (Model, error)

	// Encode serializes a model produced by Decode or Fit.
	Encode(m Model) ([]byte, error)
}

// ServerModelInfo is the metadata returned by the server's /model_info endpoint.
type ServerModelInfo struct {
	// LatestUpdate is when the seed model last changed, in Unix seconds.
	// Nil when the server omitted the field.
	LatestUpdate *float64 `json:"latest_update"`
}

// LocalModelInfo describes the locally stored model.
type LocalModelInfo struct {
	// Path is the absolute path to the model file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModifiedAt is the file's last-modified time.
	ModifiedAt time.Time `json:"modified_at"`

	// SHA256 is the hex-encoded digest of the file contents.
	SHA256 string `json:"sha256"`

	// Loaded reports whether a model is held in memory.
	Loaded bool `json:"loaded"`
}

// DownloadProgress reports progress while a seed model is downloaded.
type DownloadProgress struct {
	// BytesTotal is the advertised content length, or -1 if unknown.
	BytesTotal int64

	// BytesDownloaded is the number of bytes read so far.
	BytesDownloaded int64
}
