// Package models keeps a personalized prediction model in sync with a
// server-distributed seed model, adapts it with local observations, and
// serves predictions from it.
//
// The package serves two primary use cases:
//
//  1. Programmatic API via the Manager interface - Applications call
//     NewManager with a Config and a Codec for their model format, then use
//     CheckForUpdates, DownloadSeedModel, UpdateWithLocalData and Predict.
//
//  2. Embeddable CLI via NewCommand - Parent CLI tools can attach a "model"
//     subcommand tree (status, check, pull, predict, adapt) to their Cobra
//     root command.
//
// # Model Capability
//
// The manager never looks inside a model. Anything implementing Model (Fit
// and Predict) can be managed; a Codec converts between the model and the
// opaque bytes kept on disk and served by the seed server. The linear
// subpackage provides one such implementation.
//
// # Failure Policy
//
// Only Predict reports a missing model as a hard failure (ErrModelUnavailable).
// Every other operation returns a boolean outcome together with a wrapped
// sentinel error explaining a false result, and logs the failure through the
// configured Logger. A failed operation never leaves the in-memory model and
// the file on disk out of step with each other.
//
// # Thread Safety
//
// The Manager is safe for concurrent use. Downloads and local updates are
// serialized in-process and guarded by an advisory file lock across
// processes; writes go through a temporary file and an atomic rename so a
// reader never observes a partially written model.
//
// # Storage
//
// The local model path resolves, in order of priority, from the
// <APPNAME>_MODEL_PATH environment variable, Config.ModelPath, Config.DataDir,
// and the platform-appropriate data directory:
//   - Linux: $XDG_DATA_HOME/<app>/models/ or ~/.local/share/<app>/models/
//   - macOS: ~/Library/Application Support/<app>/models/
//   - Windows: %APPDATA%\<app>\models\
package models
