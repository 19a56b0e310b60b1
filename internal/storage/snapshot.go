package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/logger"
)

var (
	// ErrNoSnapshot means no snapshot file exists.
	ErrNoSnapshot = errors.New("no snapshot")

	// ErrTopicMismatch means the snapshot belongs to another topic.
	ErrTopicMismatch = errors.New("snapshot topic mismatch")
)

// SnapshotStore reads and writes a single snapshot file.
type SnapshotStore struct {
	fs     hackpadfs.FS
	path   string
	osPath string
	log    *logger.Logger
}

// NewSnapshotStore creates a store for the file at path within fsys. Paths
// follow io/fs rules: slash separated, no leading slash.
func NewSnapshotStore(fsys hackpadfs.FS, path string, log *logger.Logger) *SnapshotStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotStore{fs: fsys, path: path, log: log.With("component", "snapshot")}
}

// OpenSnapshotStore creates a store backed by the host filesystem.
func OpenSnapshotStore(osPath string, log *logger.Logger) (*SnapshotStore, error) {
	abs, err := filepath.Abs(osPath)
	if err != nil {
		return nil, fmt.Errorf("resolving snapshot path: %w", err)
	}
	root := osfs.NewFS()
	fsPath, err := root.FromOSPath(abs)
	if err != nil {
		return nil, fmt.Errorf("mapping snapshot path: %w", err)
	}
	s := NewSnapshotStore(root, fsPath, log)
	s.osPath = abs
	return s, nil
}

// Path returns the host path of the snapshot, or the filesystem path for
// non-host stores.
func (s *SnapshotStore) Path() string {
	if s.osPath != "" {
		return s.osPath
	}
	return s.path
}

// Load returns the stored document for topic. ErrNoSnapshot and
// ErrTopicMismatch tell the caller to generate a fresh document; any other
// error means the file is unreadable or corrupt.
func (s *SnapshotStore) Load(topic string) (*graph.Document, error) {
	doc, err := s.Peek()
	if err != nil {
		return nil, err
	}
	if doc.Core != topic {
		return nil, fmt.Errorf("%w: have %q, want %q", ErrTopicMismatch, doc.Core, topic)
	}
	if err := doc.Validate(); err != nil {
		s.log.Warn("loaded snapshot violates hierarchy invariants", "topic", topic, "error", err)
	}
	return doc, nil
}

// Peek reads the snapshot regardless of its topic.
func (s *SnapshotStore) Peek() (*graph.Document, error) {
	data, err := hackpadfs.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var doc graph.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &doc, nil
}

// Save writes doc as indented JSON to a temporary file and renames it over
// the snapshot, so readers never observe a partial write.
func (s *SnapshotStore) Save(doc *graph.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	if dir := path.Dir(s.path); dir != "." {
		if err := hackpadfs.MkdirAll(s.fs, dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := hackpadfs.WriteFullFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := hackpadfs.Rename(s.fs, tmp, s.path); err != nil {
		if !errors.Is(err, hackpadfs.ErrNotImplemented) {
			_ = hackpadfs.Remove(s.fs, tmp)
			return fmt.Errorf("replacing snapshot: %w", err)
		}
		// filesystems without rename get a direct write
		_ = hackpadfs.Remove(s.fs, tmp)
		if err := hackpadfs.WriteFullFile(s.fs, s.path, data, 0o644); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}

	s.log.Debug("snapshot saved", "topic", doc.Core, "concepts", len(doc.Concepts), "bytes", len(data))
	return nil
}

// Remove deletes the snapshot. A missing file is not an error.
func (s *SnapshotStore) Remove() error {
	if err := hackpadfs.Remove(s.fs, s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}

// Encode renders doc in the snapshot format: JSON indented by two spaces.
func Encode(doc *graph.Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
