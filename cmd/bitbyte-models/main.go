// Command bitbyte-models manages the locally personalized prediction model.
//
// Configuration is read from the YAML file named by BITBYTE_CONFIG, or the
// per-user config file if present, then overridden by environment:
//   - BITBYTE_SERVER_URL: Base URL of the seed model server
//   - BITBYTE_MODEL_PATH: Override for the model file (handled by the storage layer)
//   - BITBYTE_JOURNAL_PATH: Override for the observation journal
//   - BITBYTE_LOG_LEVEL: debug, info, warn or error
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	models "github.com/MustardWombat/BitByteAI"
	"github.com/MustardWombat/BitByteAI/internal/config"
	"github.com/MustardWombat/BitByteAI/internal/printer"
	"github.com/MustardWombat/BitByteAI/internal/transport"
	"github.com/MustardWombat/BitByteAI/linear"
)

// appName names the data directory and the model path environment variable.
const appName = "bitbyte"

// logOutput receives structured log records.
var logOutput io.Writer = os.Stderr

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid arguments or configuration.
	ExitInvalidArgs = 2

	// ExitModelUnavailable indicates no model is loaded.
	ExitModelUnavailable = 3

	// ExitNotInstalled indicates no model file exists locally.
	ExitNotInstalled = 4

	// ExitNetworkError indicates a network or connection failure.
	ExitNetworkError = 5

	// ExitServerError indicates the server answered with an error or bad payload.
	ExitServerError = 6

	// ExitStorageError indicates a filesystem operation failed.
	ExitStorageError = 7

	// ExitCorruptModel indicates model bytes could not be decoded.
	ExitCorruptModel = 8

	// ExitTrainingError indicates invalid training data or a failed fit.
	ExitTrainingError = 9
)

func main() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		printer.Error("Invalid configuration", err.Error(), []string{
			"Fix the file named by " + config.EnvConfigPath + " or unset it",
		})
		os.Exit(ExitInvalidArgs)
	}

	root, err := newRootCmd(cfg)
	if err != nil {
		printer.Error("Failed to start", err.Error(), nil)
		os.Exit(ExitGeneralError)
	}

	if err := root.Execute(); err != nil {
		reportError(err)
		os.Exit(exitCodeFromError(err))
	}
}

// newRootCmd assembles the model command tree for cfg.
func newRootCmd(cfg *config.Config) (*cobra.Command, error) {
	base, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(base)
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))

	// --verbose lowers the configured level to debug for this invocation.
	verbosity := func(cmd *cobra.Command) {
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level.Set(slog.LevelDebug)
		}
	}

	client, err := transport.NewClient(transport.Options{
		Timeout: cfg.RequestTimeout,
		HTTP2:   cfg.HTTP2Enabled(),
		CAFile:  cfg.CAFile,
	})
	if err != nil {
		return nil, err
	}

	mcfg := models.Config{
		AppName:   appName,
		ServerURL: cfg.ServerURL,
		ModelPath: cfg.ModelPath,
	}
	opts := []models.ManagerOption{
		models.WithHTTPClient(client),
		models.WithLogger(logger),
		models.WithRequestTimeout(cfg.RequestTimeout),
	}

	root := models.NewCommand(mcfg, linear.Codec{}, opts...)
	root.Use = "bitbyte-models"
	root.SilenceErrors = true

	managerPreRun := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		verbosity(cmd)
		return managerPreRun(cmd, args)
	}

	journalPath := cfg.JournalPath
	if journalPath == "" {
		modelPath, err := models.ModelPath(mcfg)
		if err != nil {
			return nil, err
		}
		journalPath = filepath.Join(filepath.Dir(modelPath), "journal.db")
	}
	root.AddCommand(journalCmd(journalPath, mcfg, opts, verbosity))

	return root, nil
}

// reportError prints err with a hint for the failure kind.
func reportError(err error) {
	switch {
	case errors.Is(err, models.ErrModelUnavailable), errors.Is(err, models.ErrNotInstalled):
		printer.Error("No model available", err.Error(), []string{"Run: bitbyte-models pull"})
	case errors.Is(err, models.ErrNetworkError):
		printer.Error("Cannot reach the model server", err.Error(), []string{
			"Check " + config.EnvServerURL + " or server_url in the config file",
		})
	case errors.Is(err, models.ErrServerError):
		printer.Error("The model server returned an error", err.Error(), nil)
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrFitFailed):
		printer.Error("Training failed", err.Error(), nil)
	default:
		printer.Error("Error", err.Error(), nil)
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, models.ErrModelUnavailable):
		return ExitModelUnavailable
	case errors.Is(err, models.ErrNotInstalled):
		return ExitNotInstalled
	case errors.Is(err, models.ErrNetworkError):
		return ExitNetworkError
	case errors.Is(err, models.ErrServerError):
		return ExitServerError
	case errors.Is(err, models.ErrStorageError):
		return ExitStorageError
	case errors.Is(err, models.ErrCorruptModel):
		return ExitCorruptModel
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrFitFailed):
		return ExitTrainingError
	case isUsageError(err):
		return ExitInvalidArgs
	default:
		return ExitGeneralError
	}
}

// usageError marks argument errors raised by this binary's commands.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}
