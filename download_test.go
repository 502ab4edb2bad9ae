package models

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDigest(t *testing.T) {
	t.Run("matches sha256", func(t *testing.T) {
		data := []byte("hello world")
		h := sha256.Sum256(data)
		if got := digest(data); got != hex.EncodeToString(h[:]) {
			t.Errorf("digest() = %q", got)
		}
	})

	t.Run("empty data", func(t *testing.T) {
		want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
		if got := digest(nil); got != want {
			t.Errorf("digest(nil) = %q, want %q", got, want)
		}
	})
}

func TestDownloadWaitsForLock(t *testing.T) {
	server := newSeedServer(t, &seedServer{blob: fakeBlob(5)})
	modelPath := filepath.Join(t.TempDir(), "local_model.bin")
	before := fakeBlob(1)
	writeLocalModel(t, modelPath, before, 1000000000)

	mgr, err := NewManager(Config{ServerURL: server.URL, ModelPath: modelPath}, fakeCodec{},
		WithLockTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	// Another writer holds the lock for longer than the timeout.
	held, err := newFileLock(modelPath+".lock", time.Second)
	if err != nil {
		t.Fatalf("newFileLock() error = %v", err)
	}
	if err := held.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ok, err := mgr.DownloadSeedModel(context.Background())
	if ok || !errors.Is(err, ErrStorageError) {
		t.Errorf("DownloadSeedModel() = %v, %v; want false, ErrStorageError", ok, err)
	}
	after, _ := os.ReadFile(modelPath)
	if !bytes.Equal(after, before) {
		t.Errorf("stored bytes changed while locked: %q", after)
	}

	held.Unlock()

	ok, err = mgr.DownloadSeedModel(context.Background())
	if !ok || err != nil {
		t.Fatalf("DownloadSeedModel() after unlock = %v, %v", ok, err)
	}
	if label, _ := mgr.Predict(context.Background(), FeatureMap{}); label != 5 {
		t.Errorf("Predict() = %v, want 5", label)
	}
}

func TestDownloadLockWaitHonorsContext(t *testing.T) {
	server := newSeedServer(t, &seedServer{blob: fakeBlob(5)})
	modelPath := filepath.Join(t.TempDir(), "local_model.bin")
	before := fakeBlob(1)
	writeLocalModel(t, modelPath, before, 1000000000)

	mgr, err := NewManager(Config{ServerURL: server.URL, ModelPath: modelPath}, fakeCodec{},
		WithLockTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	held, err := newFileLock(modelPath+".lock", time.Second)
	if err != nil {
		t.Fatalf("newFileLock() error = %v", err)
	}
	if err := held.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer held.Unlock()

	t.Run("download", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		ok, err := mgr.DownloadSeedModel(ctx)
		elapsed := time.Since(start)

		if ok || !errors.Is(err, ErrStorageError) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("DownloadSeedModel() = %v, %v; want false, ErrStorageError wrapping DeadlineExceeded", ok, err)
		}
		if elapsed > 2*time.Second {
			t.Errorf("DownloadSeedModel() blocked for %v past its deadline", elapsed)
		}
	})

	t.Run("update", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		ok, err := mgr.UpdateWithLocalData(ctx, [][]float64{{1, 2, 3, 4, 5}}, []float64{3})
		elapsed := time.Since(start)

		if ok || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("UpdateWithLocalData() = %v, %v; want false, DeadlineExceeded", ok, err)
		}
		if elapsed > 2*time.Second {
			t.Errorf("UpdateWithLocalData() blocked for %v past its deadline", elapsed)
		}
	})

	after, _ := os.ReadFile(modelPath)
	if !bytes.Equal(after, before) {
		t.Errorf("stored bytes changed while locked: %q", after)
	}
}

func TestDownloadCanceledContext(t *testing.T) {
	server := newSeedServer(t, &seedServer{blob: fakeBlob(5)})
	mgr, modelPath := newTestManager(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := mgr.DownloadSeedModel(ctx)
	if ok || err == nil {
		t.Errorf("DownloadSeedModel() = %v, %v; want failure", ok, err)
	}
	if _, err := os.Stat(modelPath); !os.IsNotExist(err) {
		t.Error("model file written despite canceled context")
	}
}

func TestDownloadWithLogger(t *testing.T) {
	server := newSeedServer(t, &seedServer{blob: fakeBlob(5)})
	modelPath := filepath.Join(t.TempDir(), "local_model.bin")
	logger := &testLogger{}

	mgr, err := NewManager(Config{ServerURL: server.URL, ModelPath: modelPath}, fakeCodec{}, WithLogger(logger))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if ok, err := mgr.DownloadSeedModel(context.Background()); !ok {
		t.Fatalf("DownloadSeedModel() error = %v", err)
	}

	if !logger.contains("DEBUG: seed model fetched") {
		t.Errorf("missing fetch message, got %v", logger.all())
	}
	if !logger.contains("INFO: seed model installed") {
		t.Errorf("missing install message, got %v", logger.all())
	}
}
