package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// LocalStore is the session.json key-value document. Every Set is a
// whole-document read-modify-write; the in-process mutex plus the advisory
// file lock keep concurrent writers from losing each other's keys.
type LocalStore struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

// OpenLocalStore returns a store backed by path. The file is not created
// until the first Set.
func OpenLocalStore(path string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file path.
func (s *LocalStore) Path() string {
	return s.path
}

// Exists reports whether the backing file is present on disk.
func (s *LocalStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Get decodes the value stored under key into dst. It returns false when
// the key is absent, null, or the document is missing or corrupt.
func (s *LocalStore) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := s.read()
	raw, ok := doc[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key, preserving every other key in the document.
func (s *LocalStore) Set(key string, value any) error {
	return s.update(func(doc map[string]json.RawMessage) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		doc[key] = raw
		return nil
	})
}

// Delete removes key from the document.
func (s *LocalStore) Delete(key string) error {
	return s.update(func(doc map[string]json.RawMessage) error {
		delete(doc, key)
		return nil
	})
}

// Take decodes the value under key into dst and removes the key in one
// locked read-modify-write. Of several concurrent callers only one finds
// the value.
func (s *LocalStore) Take(key string, dst any) (bool, error) {
	found := false
	err := s.update(func(doc map[string]json.RawMessage) error {
		raw, ok := doc[key]
		if !ok {
			return nil
		}
		delete(doc, key)
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		found = true
		return nil
	})
	return found, err
}

// Remove deletes the backing file.
func (s *LocalStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}

// keys returns the keys present in the document.
func (s *LocalStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _ := s.read()
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	return keys
}

func (s *LocalStore) update(fn func(doc map[string]json.RawMessage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	// A corrupt document is replaced rather than blocking every write.
	doc, _ := s.read()
	if err := fn(doc); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// read loads the document. A missing file is an empty document; an
// unparsable one is an empty document plus ErrCorrupt.
func (s *LocalStore) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]json.RawMessage{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return doc, nil
}

// Corrupt reports whether the document exists but cannot be parsed.
func (s *LocalStore) Corrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return errors.Is(err, ErrCorrupt)
}

// JWT returns the stored credential, or "" when absent.
func (s *LocalStore) JWT() string {
	return s.getString(KeyJWT)
}

// Name returns the registered user name, or "" for anonymous users.
func (s *LocalStore) Name() string {
	return s.getString(KeyName)
}

// CurrentDay returns the YYYY-MM-DD day the summary belongs to.
func (s *LocalStore) CurrentDay() string {
	return s.getString(KeyCurrentDay)
}

// LatestPayloadEnd returns the end of the last processed payload in UTC
// epoch seconds, 0 when none was recorded today.
func (s *LocalStore) LatestPayloadEnd() int64 {
	return s.getInt64(KeyLatestPayloadEnd)
}

// SessionThresholdSeconds returns the stored threshold, 0 when unset.
func (s *LocalStore) SessionThresholdSeconds() int64 {
	return s.getInt64(KeySessionThresholdInSec)
}

// LastFlush returns the UTC epoch seconds of the last successful flush.
func (s *LocalStore) LastFlush() int64 {
	return s.getInt64(KeyLastFlushUTC)
}

// TelemetryOn reports whether metrics display is enabled. Defaults to true.
func (s *LocalStore) TelemetryOn() bool {
	var on bool
	found, err := s.Get(KeyTelemetryOn, &on)
	if err != nil || !found {
		return true
	}
	return on
}

func (s *LocalStore) getString(key string) string {
	var v string
	if found, err := s.Get(key, &v); err != nil || !found {
		return ""
	}
	return v
}

// getInt64 accepts any JSON number; other value types read as 0.
func (s *LocalStore) getInt64(key string) int64 {
	var v float64
	if found, err := s.Get(key, &v); err != nil || !found {
		return 0
	}
	return int64(v)
}
