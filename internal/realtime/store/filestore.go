package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cafe-pos/pkg/logger"
)

// FileStore keeps one JSON file per key under a directory. This is the
// zero-infrastructure backend: a single machine's per-origin storage.
// Writes go through a temp file and rename so readers never observe a
// partial value.
type FileStore struct {
	dir      string
	mu       sync.Mutex
	watchers *watcherSet
	mylog    logger.Logger
}

type fileRecord struct {
	Version Version         `json:"version"`
	Value   json.RawMessage `json:"value"`
}

func NewFileStore(dir string, mylog logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		dir:      dir,
		watchers: newWatcherSet(mylog),
		mylog:    mylog,
	}, nil
}

func (s *FileStore) Read(key string) ([]byte, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(key)
}

func (s *FileStore) readLocked(key string) ([]byte, Version, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.mylog.Action("store_read_failed").With("key", key).Warn(err.Error())
		}
		return nil, 0, nil
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt or foreign content reads as "no data yet".
		s.mylog.Action("store_parse_failed").With("key", key).Warn(err.Error())
		return nil, 0, nil
	}
	return rec.Value, rec.Version, nil
}

func (s *FileStore) Write(station, key string, value []byte) error {
	s.mu.Lock()
	_, current, _ := s.readLocked(key)
	err := s.writeLocked(key, value, current+1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.watchers.notify(station, key, value)
	return nil
}

func (s *FileStore) CompareAndSwap(station, key string, value []byte, expect Version) error {
	s.mu.Lock()
	_, current, _ := s.readLocked(key)
	if current != expect {
		s.mu.Unlock()
		return fmt.Errorf("key %q at v%d, expected v%d: %w", key, current, expect, ErrVersionConflict)
	}
	err := s.writeLocked(key, value, current+1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.watchers.notify(station, key, value)
	return nil
}

func (s *FileStore) writeLocked(key string, value []byte, version Version) error {
	data, err := json.Marshal(fileRecord{Version: version, Value: value})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *FileStore) Watch(station, key string, handler func(value []byte)) (func(), error) {
	return s.watchers.add(station, key, handler)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(key string) string {
	// Keys are internal constants, but keep the filename tame anyway.
	safe := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.dir, safe+".json")
}
