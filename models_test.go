package models

import (
	"net/http"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager(t *testing.T) {
	t.Run("empty ServerURL returns error", func(t *testing.T) {
		cfg := Config{
			ServerURL: "",
			DataDir:   t.TempDir(),
		}

		_, err := NewManager(cfg, fakeCodec{})
		if err == nil {
			t.Fatal("expected error for empty ServerURL")
		}
		if !strings.Contains(err.Error(), "ServerURL") {
			t.Errorf("error should mention ServerURL: %v", err)
		}
	})

	t.Run("nil codec returns error", func(t *testing.T) {
		cfg := Config{
			ServerURL: "https://example.com",
			DataDir:   t.TempDir(),
		}

		_, err := NewManager(cfg, nil)
		if err == nil {
			t.Fatal("expected error for nil codec")
		}
		if !strings.Contains(err.Error(), "Codec") {
			t.Errorf("error should mention Codec: %v", err)
		}
	})

	t.Run("no model location returns error", func(t *testing.T) {
		_, err := NewManager(Config{ServerURL: "https://example.com"}, fakeCodec{})
		if err == nil {
			t.Fatal("expected error when no path, data dir or app name is set")
		}
	})

	t.Run("valid config succeeds", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := Config{
			AppName:   "testapp",
			ServerURL: "https://example.com",
			DataDir:   tmpDir,
		}

		mgr, err := NewManager(cfg, fakeCodec{})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if mgr == nil {
			t.Fatal("NewManager() returned nil")
		}

		m := mgr.(*manager)
		if want := filepath.Join(tmpDir, DefaultModelFile); m.storage.path() != want {
			t.Errorf("storage path = %q, want %q", m.storage.path(), want)
		}
	})

	t.Run("with custom HTTPClient", func(t *testing.T) {
		customClient := &http.Client{}
		mgr, err := NewManager(Config{ServerURL: "https://example.com", DataDir: t.TempDir()}, fakeCodec{},
			WithHTTPClient(customClient))
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}

		// Verify the custom client was used
		m := mgr.(*manager)
		if m.httpClient != customClient {
			t.Error("custom HTTP client was not set")
		}
		if m.server.httpClient != customClient {
			t.Error("server client does not use the custom HTTP client")
		}
	})

	t.Run("trailing slash trimmed from ServerURL", func(t *testing.T) {
		mgr, err := NewManager(Config{ServerURL: "https://example.com/api/", DataDir: t.TempDir()}, fakeCodec{})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if got := mgr.(*manager).server.baseURL; got != "https://example.com/api" {
			t.Errorf("baseURL = %q, want %q", got, "https://example.com/api")
		}
	})
}

func TestManagerInterface(t *testing.T) {
	// Compile-time check that manager implements Manager
	var _ Manager = (*manager)(nil)
}
