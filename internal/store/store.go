// Package store persists the small set of counters that outlive a session.
//
// The medium is a key-value counter store: an in-memory map for tests and
// ephemeral hosts, or a JSON file rewritten atomically on every change.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Keys used for persisted progress
const (
	KeyCurrency        = "currency"
	KeyPurchasedAllies = "purchased_allies"
)

// CounterStore is a simple key-value store of integer counters.
// A missing key reads as zero.
type CounterStore interface {
	Get(key string) (int, error)
	Set(key string, value int) error
}

// MemoryStore keeps counters in memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int)}
}

func (m *MemoryStore) Get(key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStore) Set(key string, value int) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// FileStore keeps counters in a JSON object on disk. Every Set rewrites the
// whole file through a temp file and rename, so a crash never leaves a
// half-written file behind.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]int
}

// OpenFileStore loads path if it exists. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, values: make(map[string]int)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read progress file %s", path)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.values); err != nil {
		return nil, errors.Wrapf(err, "parse progress file %s", path)
	}
	return fs, nil
}

// Path returns the backing file
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *FileStore) Set(key string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	f.values[key] = value
	if err := f.writeLocked(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// SetMany updates several counters with a single write
func (f *FileStore) SetMany(values map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := make(map[string]int, len(f.values))
	for k, v := range f.values {
		prev[k] = v
	}
	for k, v := range values {
		f.values[k] = v
	}
	if err := f.writeLocked(); err != nil {
		f.values = prev
		return err
	}
	return nil
}

func (f *FileStore) writeLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode progress")
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write progress")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close progress temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace progress file %s", f.path)
	}
	return nil
}

// Progress adapts a CounterStore to the engine's progress collaborator
type Progress struct {
	Counters CounterStore
}

// NewProgress wraps a counter store
func NewProgress(c CounterStore) *Progress {
	return &Progress{Counters: c}
}

// LoadProgress reads currency and the purchased ally count
func (p *Progress) LoadProgress() (currency, purchasedAllies int, err error) {
	currency, err = p.Counters.Get(KeyCurrency)
	if err != nil {
		return 0, 0, errors.Wrap(err, "load currency")
	}
	purchasedAllies, err = p.Counters.Get(KeyPurchasedAllies)
	if err != nil {
		return 0, 0, errors.Wrap(err, "load purchased allies")
	}
	return currency, purchasedAllies, nil
}

// SaveProgress writes both counters, in one write when the store supports it
func (p *Progress) SaveProgress(currency, purchasedAllies int) error {
	if fs, ok := p.Counters.(*FileStore); ok {
		return errors.Wrap(fs.SetMany(map[string]int{
			KeyCurrency:        currency,
			KeyPurchasedAllies: purchasedAllies,
		}), "save progress")
	}
	if err := p.Counters.Set(KeyCurrency, currency); err != nil {
		return errors.Wrap(err, "save currency")
	}
	if err := p.Counters.Set(KeyPurchasedAllies, purchasedAllies); err != nil {
		return errors.Wrap(err, "save purchased allies")
	}
	return nil
}

// Open picks the store for a path: a file store, or memory when path is empty
func Open(path string) (CounterStore, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenFileStore(path)
}
