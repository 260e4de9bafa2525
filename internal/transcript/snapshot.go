package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotKey is the fixed name recovery snapshots are stored under.
const SnapshotKey = "interview_transcript"

// ErrNoSnapshot reports that no snapshot exists for a key.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore is the key-value persistence port for session recovery. Any
// durable store satisfies it; tests use the in-memory implementation.
type SnapshotStore interface {
	Save(key string, blob []byte) error
	Load(key string) ([]byte, error)
	Clear(key string) error
}

// FileSnapshotStore persists snapshots as JSON files in one directory.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore roots a store at dir, creating it when missing.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileSnapshotStore) Save(key string, blob []byte) error {
	return os.WriteFile(s.path(key), blob, 0o600)
}

func (s *FileSnapshotStore) Load(key string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return blob, err
}

func (s *FileSnapshotStore) Clear(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemorySnapshotStore is the in-memory SnapshotStore used in tests.
type MemorySnapshotStore struct {
	blobs map[string][]byte
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{blobs: map[string][]byte{}}
}

func (s *MemorySnapshotStore) Save(key string, blob []byte) error {
	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (s *MemorySnapshotStore) Load(key string) ([]byte, error) {
	blob, ok := s.blobs[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), blob...), nil
}

func (s *MemorySnapshotStore) Clear(key string) error {
	delete(s.blobs, key)
	return nil
}

// persistLocked writes the recovery snapshot. Persistence failures are logged
// and never interrupt the session.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	blob, err := json.Marshal(m.data)
	if err != nil {
		m.logger.Error("marshal snapshot failed", "error", err.Error())
		return
	}
	if err := m.store.Save(SnapshotKey, blob); err != nil {
		m.logger.Error("save snapshot failed", "error", err.Error())
	}
}

// Restore reloads a previously saved session, replacing current state.
// Returns false when no snapshot exists or it cannot be decoded.
func (m *Manager) Restore() bool {
	if m.store == nil {
		return false
	}

	blob, err := m.store.Load(SnapshotKey)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			m.logger.Error("load snapshot failed", "error", err.Error())
		}
		return false
	}

	var data SessionData
	if err := json.Unmarshal(blob, &data); err != nil {
		m.logger.Error("decode snapshot failed", "error", err.Error())
		return false
	}
	if data.Questions == nil {
		data.Questions = map[int]*Question{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.active = false
	return true
}

// ClearSnapshot removes the stored recovery snapshot.
func (m *Manager) ClearSnapshot() {
	if m.store == nil {
		return
	}
	if err := m.store.Clear(SnapshotKey); err != nil {
		m.logger.Error("clear snapshot failed", "error", err.Error())
	}
}
