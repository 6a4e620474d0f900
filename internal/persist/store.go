package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// ErrNoChange is returned by an update function to skip the write.
var ErrNoChange = errors.New("no change")

const (
	fileSuffix  = ".json"
	lockDirName = ".locks"
	lockRetry   = 10 * time.Millisecond
)

// Notifier receives every committed value while the key is still locked, so
// notifications for a key arrive in commit order. A removed key is reported
// with a nil value.
type Notifier interface {
	Committed(key string, value []byte, source string)
}

// Store is a file-backed JSON key/value store, one file per key. Writes are
// atomic replaces and every mutation of a key holds an in-process async
// mutex for that key plus an advisory file lock shared with other processes.
type Store struct {
	dir     string
	lockDir string
	log     pslog.Logger

	mu       sync.Mutex
	keyLocks map[string]*semaphore.Weighted
	notifier Notifier
}

// NewStore constructs a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	lockDir := filepath.Join(dir, lockDirName)
	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{
		dir:      dir,
		lockDir:  lockDir,
		log:      logger,
		keyLocks: make(map[string]*semaphore.Weighted),
	}, nil
}

// Dir returns the directory holding the key files.
func (s *Store) Dir() string {
	return s.dir
}

// SetNotifier installs the commit notifier.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Get reads the value stored at key. A missing key returns ok=false.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path, err := s.PathForKey(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.trace(ctx, "store get miss", "key", key)
			return nil, false, nil
		}
		s.warn(ctx, "store get failed", "key", key, "err", err)
		return nil, false, err
	}
	return data, true, nil
}

// Set replaces the value stored at key.
func (s *Store) Set(ctx context.Context, key string, value []byte, source string) error {
	_, err := s.Update(ctx, key, source, func([]byte, bool) ([]byte, error) {
		return value, nil
	})
	return err
}

// Update runs a read-compute-write cycle on key with the key locked for the
// whole cycle. fn receives the current value and returns the replacement;
// returning ErrNoChange skips the write. Exactly one write happens per call.
func (s *Store) Update(ctx context.Context, key string, source string, fn func(current []byte, ok bool) ([]byte, error)) ([]byte, error) {
	path, err := s.PathForKey(key)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	next, err := fn(current, ok)
	if errors.Is(err, ErrNoChange) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(next) {
		return nil, errors.New("store value must be valid JSON")
	}
	if err := writeAtomic(path, next); err != nil {
		s.warn(ctx, "store set failed", "key", key, "err", err)
		return nil, err
	}
	s.trace(ctx, "store set ok", "key", key, "bytes", len(next), "source", source)
	s.notify(key, next, source)
	return next, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string, source string) error {
	path, err := s.PathForKey(key)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.warn(ctx, "store remove failed", "key", key, "err", err)
		return err
	}
	s.trace(ctx, "store remove ok", "key", key, "source", source)
	s.notify(key, nil, source)
	return nil
}

// Keys lists every stored key in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.warn(ctx, "store keys failed", "err", err)
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := KeyForFile(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PathForKey returns the file backing key.
func (s *Store) PathForKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") {
		return "", schema.ErrInvalidKey
	}
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix), nil
}

// KeyForFile maps a file name inside the store directory back to its key.
// Temp files, lock files and foreign files report false.
func KeyForFile(name string) (string, bool) {
	name = filepath.Base(name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (s *Store) lock(ctx context.Context, key string) (func(), error) {
	sem := s.keyLock(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(s.lockDir, url.PathEscape(key)+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		sem.Release(1)
		return nil, err
	}
	if !locked {
		sem.Release(1)
		return nil, errors.New("store lock not acquired")
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.warn(ctx, "store unlock failed", "key", key, "err", err)
		}
		sem.Release(1)
	}, nil
}

func (s *Store) keyLock(key string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem := s.keyLocks[key]
	if sem == nil {
		sem = semaphore.NewWeighted(1)
		s.keyLocks[key] = sem
	}
	return sem
}

func (s *Store) notify(key string, value []byte, source string) {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n != nil {
		n.Committed(key, value, source)
	}
}

func (s *Store) logger(ctx context.Context) pslog.Logger {
	if s.log != nil {
		return s.log
	}
	return pslog.Ctx(ctx)
}

func (s *Store) trace(ctx context.Context, msg string, kv ...any) {
	s.logger(ctx).Trace(msg, kv...)
}

func (s *Store) warn(ctx context.Context, msg string, kv ...any) {
	s.logger(ctx).Warn(msg, kv...)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
