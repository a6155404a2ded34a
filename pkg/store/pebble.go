package store

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"pixchat/pkg/logger"
)

var (
	// ErrNotFound is returned when a thread or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage is returned when a message carries neither body nor
	// attachment.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrInvalidID is returned when an identifier contains the key separator
	// and cannot be embedded in a composite key.
	ErrInvalidID = errors.New("id contains reserved characters")
)

// Store is the pebble-backed persistence layer for threads and messages.
// All mutation of thread and message rows goes through its methods; callers
// never write fields directly. A Store is safe for concurrent use.
type Store struct {
	db   *pebble.DB
	path string

	// creation serializes get-or-create per canonical triple; pebble has
	// no conditional write, so the check-then-insert must not race.
	creation keyedMutex

	// seq reduces key collisions when messages share a nanosecond.
	seq uint64
	mu  sync.Mutex
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	logger.Info("pebble_opened", zap.String("path", path))
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("pebble_closed", zap.String("path", s.path))
	return err
}

// Ready reports whether the store is opened and usable.
func (s *Store) Ready() bool { return s.db != nil }

// nextSeq returns a process-monotonic sequence used to break timestamp ties
// in message keys.
func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// get reads a raw value, mapping pebble's not-found to ErrNotFound.
func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// keyUpperBound returns the smallest key strictly greater than every key
// with the given prefix, for use as an iterator UpperBound.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff; no upper bound
}

// keyedMutex provides one mutex per string key with refcounted cleanup.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
