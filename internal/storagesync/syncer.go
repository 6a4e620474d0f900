package storagesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Syncer fans committed storage values out to watchers. In-process writes
// arrive through Committed; writes by other processes are picked up by
// watching the store directory. The payload delivered is always the bytes
// the writer committed.
type Syncer struct {
	dir string
	log pslog.Logger

	mu       sync.Mutex
	last     map[string][]byte
	watchers map[string]map[int]func(schema.StorageSyncEvent)
	nextID   int
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// AllKeys subscribes a watcher to every key.
const AllKeys = ""

// New constructs a syncer for the store directory.
func New(dir string, logger pslog.Logger) *Syncer {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Syncer{
		dir:      dir,
		log:      logger.With("component", "storagesync"),
		last:     make(map[string][]byte),
		watchers: make(map[string]map[int]func(schema.StorageSyncEvent)),
	}
}

// Watch registers fn for changes to key, or to every key with AllKeys. fn
// runs synchronously on the committing goroutine and must not write to the
// store.
func (s *Syncer) Watch(key string, fn func(schema.StorageSyncEvent)) func() {
	if s == nil || fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	subs := s.watchers[key]
	if subs == nil {
		subs = make(map[int]func(schema.StorageSyncEvent))
		s.watchers[key] = subs
	}
	subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if subs := s.watchers[key]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.watchers, key)
			}
		}
		s.mu.Unlock()
	}
}

// Committed implements persist.Notifier.
func (s *Syncer) Committed(key string, value []byte, source string) {
	s.deliver(key, value, source, false)
}

var _ persist.Notifier = (*Syncer)(nil)

// Start begins watching the store directory for writes by other processes.
func (s *Syncer) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		_ = watcher.Close()
		return errors.New("storage sync already started")
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	s.log.Info("storage sync watching", "dir", s.dir)
	go s.loop(ctx, watcher, done)
	return nil
}

// Close stops watching the store directory.
func (s *Syncer) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	done := s.done
	s.watcher = nil
	s.mu.Unlock()
	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}

func (s *Syncer) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("storage sync watch error", "err", err)
		}
	}
}

func (s *Syncer) handleFileEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := persist.KeyForFile(event.Name)
	if !ok {
		return
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(event.Name)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.deliver(key, nil, "", true)
			return
		}
		s.log.Warn("storage sync read failed", "key", key, "err", err)
		return
	}
	if !json.Valid(data) {
		s.log.Debug("storage sync skipped partial value", "key", key)
		return
	}
	s.deliver(key, data, "", true)
}

// deliver publishes a value. File events are deduplicated against the last
// delivered value so a process does not hear its own writes twice.
func (s *Syncer) deliver(key string, value []byte, source string, dedupe bool) {
	s.mu.Lock()
	prev, seen := s.last[key]
	if dedupe && seen && bytes.Equal(prev, value) && (prev == nil) == (value == nil) {
		s.mu.Unlock()
		return
	}
	if value == nil {
		s.last[key] = nil
	} else {
		s.last[key] = append([]byte(nil), value...)
	}
	fns := make([]func(schema.StorageSyncEvent), 0, len(s.watchers[key])+len(s.watchers[AllKeys]))
	for _, fn := range s.watchers[key] {
		fns = append(fns, fn)
	}
	if key != AllKeys {
		for _, fn := range s.watchers[AllKeys] {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	payload := json.RawMessage("null")
	if value != nil {
		payload = json.RawMessage(value)
	}
	event := schema.StorageSyncEvent{Key: key, Value: payload, SourceID: source}
	for _, fn := range fns {
		fn(event)
	}
	s.log.Trace("storage sync delivered", "key", key, "source", source, "watchers", len(fns))
}
