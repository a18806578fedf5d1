// Package state provides durable client-side key/value storage. The session
// holder keeps its credential and identity here between process runs.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Storage persists string values under well-known keys.
type Storage interface {
	// Get returns the value stored under key and whether it was found.
	Get(key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(key, value string) error
	// Delete removes keys. Missing keys are not an error.
	Delete(keys ...string) error
}

// Batch is implemented by storages that can write several keys at once, so a
// reader never sees one key updated without the other.
type Batch interface {
	SetMany(values map[string]string) error
}

// SetMany writes all values through s, atomically when s supports it.
func SetMany(s Storage, values map[string]string) error {
	if b, ok := s.(Batch); ok {
		return b.SetMany(values)
	}
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// State is the on-disk form of a FileStorage: a flat map of key-value pairs.
type State map[string]string

// FileStorage keeps state in a YAML file. Every operation re-reads the file,
// so two processes sharing it see each other's completed writes.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage returns a FileStorage backed by path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Load loads the state from the state file.
// Returns an empty state if the file doesn't exist.
func (f *FileStorage) Load() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	if state == nil {
		state = make(State)
	}

	return state, nil
}

// Save saves the state to the state file. The file holds a bearer credential,
// so it is written with owner-only permissions.
func (f *FileStorage) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Write to a sibling temp file and rename so readers never see a torn file.
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.yml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Get retrieves a value from the state by key.
func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.Load()
	if err != nil {
		return "", false, err
	}
	val, ok := state[key]
	return val, ok, nil
}

// Set sets a value in the state.
func (f *FileStorage) Set(key, value string) error {
	return f.SetMany(map[string]string{key: value})
}

// SetMany sets several values with a single file write.
func (f *FileStorage) SetMany(values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.Load()
	if err != nil {
		return err
	}
	for k, v := range values {
		state[k] = v
	}
	return f.Save(state)
}

// Delete removes keys from the state.
func (f *FileStorage) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.Load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := state[k]; ok {
			delete(state, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.Save(state)
}

// MemoryStorage keeps state for the lifetime of the process only.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage constructs an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) SetMany(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryStorage) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Closer is implemented by storages holding network resources.
type Closer interface {
	Close() error
}
