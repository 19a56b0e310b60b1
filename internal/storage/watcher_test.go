package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concept_graph_data.json")

	store, err := OpenSnapshotStore(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchSnapshot(ctx, path, 50*time.Millisecond, nil, func() {
			changes <- struct{}{}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	require.NoError(t, store.Save(sampleDoc()))

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}

	// a burst of writes collapses into one notification
	select {
	case <-changes:
		t.Fatal("unexpected second notification")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchSnapshotMissingDir(t *testing.T) {
	t.Parallel()

	err := WatchSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing", "x.json"), 0, nil, func() {})
	assert.Error(t, err)
}
