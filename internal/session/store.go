package session

import (
	"errors"
	"sync"

	"github.com/roach88/gridsync/internal/record"
)

// ErrStaleKey is returned when the widget writes under a key that has been
// rotated away.
var ErrStaleKey = errors.New("session key is no longer current")

type slot struct {
	dataset string
	kind    Kind
}

// Store is one session's editing state.
//
// Data is filed under the current key of its (dataset, kind) slot, so a
// rotation orphans whatever was stored under the old token.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	id    string
	clock *Clock
	gen   TokenGenerator

	keys map[slot]Key
	data map[string]any
}

// Option configures a Store.
type Option func(*Store)

// WithTokenGenerator sets the generator for key tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Store) {
		s.gen = g
	}
}

// WithClock sets the generation clock.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// NewStore creates an empty store for the session id.
func NewStore(id string, opts ...Option) *Store {
	s := &Store{
		id:    id,
		clock: NewClock(),
		gen:   UUIDv7Generator{},
		keys:  make(map[slot]Key),
		data:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Store) ID() string {
	return s.id
}

// Key returns the current key for (dataset, kind), allocating one on first
// access. Repeated calls return the same key until it is rotated.
func (s *Store) Key(dataset string, kind Kind) Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyLocked(dataset, kind)
}

func (s *Store) keyLocked(dataset string, kind Kind) Key {
	sl := slot{dataset, kind}
	if k, ok := s.keys[sl]; ok {
		return k
	}
	return s.allocateLocked(sl)
}

func (s *Store) allocateLocked(sl slot) Key {
	k := Key{
		Dataset:    sl.dataset,
		Kind:       sl.kind,
		Generation: s.clock.Next(),
		Token:      s.gen.Generate(),
	}
	s.keys[sl] = k
	return k
}

// RotateKey discards everything stored under the current key for
// (dataset, kind) and allocates a new key, which it returns. The new key
// never equals any earlier one.
func (s *Store) RotateKey(dataset string, kind Kind) Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := slot{dataset, kind}
	if old, ok := s.keys[sl]; ok {
		delete(s.data, old.String())
	}
	return s.allocateLocked(sl)
}

// Put stores v under the current key for (dataset, kind).
func (s *Store) Put(dataset string, kind Kind, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.keyLocked(dataset, kind).String()] = v
}

// Get returns the value stored under the current key for (dataset, kind).
func (s *Store) Get(dataset string, kind Kind) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[slot{dataset, kind}]
	if !ok {
		return nil, false
	}
	v, ok := s.data[k.String()]
	return v, ok
}

// Snapshot returns the dataset's snapshot, if one is held.
func (s *Store) Snapshot(dataset string) (record.Snapshot, bool) {
	v, ok := s.Get(dataset, TableData)
	if !ok {
		return record.Snapshot{}, false
	}
	snap, ok := v.(record.Snapshot)
	return snap, ok
}

// SetSnapshot replaces the dataset's snapshot.
func (s *Store) SetSnapshot(dataset string, snap record.Snapshot) {
	s.Put(dataset, TableData, snap)
}

// WriteBuffer stores the widget's edit buffer under key. Writes addressed
// to a rotated key are rejected with ErrStaleKey.
func (s *Store) WriteBuffer(key Key, buf record.EditBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.Kind != EditorData {
		return errors.New("edit buffers are stored under EditorData keys only")
	}
	current, ok := s.keys[slot{key.Dataset, EditorData}]
	if !ok || current != key {
		return ErrStaleKey
	}
	s.data[key.String()] = buf
	return nil
}

// Buffer returns the edit buffer under the current EditorData key. A
// missing buffer is the zero EditBuffer.
func (s *Store) Buffer(dataset string) record.EditBuffer {
	v, ok := s.Get(dataset, EditorData)
	if !ok {
		return record.EditBuffer{}
	}
	buf, _ := v.(record.EditBuffer)
	return buf
}

// Clear drops stored data for the dataset. With kinds, only those kinds'
// data is dropped and their keys survive. Without kinds, every key and
// value for the dataset is dropped.
func (s *Store) Clear(dataset string, kinds ...Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := len(kinds) == 0
	if all {
		kinds = Kinds
	}
	for _, kind := range kinds {
		sl := slot{dataset, kind}
		k, ok := s.keys[sl]
		if !ok {
			continue
		}
		delete(s.data, k.String())
		if all {
			delete(s.keys, sl)
		}
	}
}
