// Package threads keeps chat threads and their messages on the key/value store.
package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

const (
	threadPrefix   = "thread:"
	messagesPrefix = "messages:"
)

// Store persists threads as one key per thread plus one key for its messages.
type Store struct {
	kv    *persist.Store
	clock clock.Clock
}

// NewStore returns a thread store on kv. A nil clock uses wall time.
func NewStore(kv *persist.Store, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{kv: kv, clock: clk}
}

func threadKey(id schema.ThreadID) string   { return threadPrefix + string(id) }
func messagesKey(id schema.ThreadID) string { return messagesPrefix + string(id) }

// Create stores a new thread and returns it.
func (s *Store) Create(ctx context.Context, title string, private bool) (schema.Thread, error) {
	now := s.clock.Now().UTC()
	thread := schema.Thread{
		ID:        schema.ThreadID(uuid.NewString()),
		Title:     strings.TrimSpace(title),
		Private:   private,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, thread); err != nil {
		return schema.Thread{}, err
	}
	pslog.Ctx(ctx).Debug("threads thread created", "thread", thread.ID, "private", private)
	return thread, nil
}

// Get returns a thread or ErrThreadNotFound.
func (s *Store) Get(ctx context.Context, id schema.ThreadID) (schema.Thread, error) {
	if id == "" {
		return schema.Thread{}, schema.ErrThreadNotFound
	}
	data, ok, err := s.kv.Get(ctx, threadKey(id))
	if err != nil {
		return schema.Thread{}, err
	}
	if !ok {
		return schema.Thread{}, schema.ErrThreadNotFound
	}
	var thread schema.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return schema.Thread{}, fmt.Errorf("thread %s: %w", id, schema.ErrSnapshotCorrupt)
	}
	return thread, nil
}

// Put replaces a thread record.
func (s *Store) Put(ctx context.Context, thread schema.Thread) error {
	if thread.ID == "" {
		return schema.ErrInvalidRequest
	}
	thread.UpdatedAt = s.clock.Now().UTC()
	return s.put(ctx, thread)
}

func (s *Store) put(ctx context.Context, thread schema.Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, threadKey(thread.ID), data, schema.SourceController)
}

// Delete removes a thread and its messages. Deleting a missing thread is not an error.
func (s *Store) Delete(ctx context.Context, id schema.ThreadID) error {
	if id == "" {
		return nil
	}
	var errs []error
	if err := s.kv.Remove(ctx, messagesKey(id), schema.SourceController); err != nil {
		errs = append(errs, err)
	}
	if err := s.kv.Remove(ctx, threadKey(id), schema.SourceController); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Messages returns every message of a thread in append order.
func (s *Store) Messages(ctx context.Context, id schema.ThreadID) ([]schema.Message, error) {
	data, ok, err := s.kv.Get(ctx, messagesKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var messages []schema.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("messages %s: %w", id, schema.ErrSnapshotCorrupt)
	}
	return messages, nil
}

// MessageCount returns how many messages a thread has.
func (s *Store) MessageCount(ctx context.Context, id schema.ThreadID) (int, error) {
	messages, err := s.Messages(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(messages), nil
}

// Append adds a message to an existing thread.
func (s *Store) Append(ctx context.Context, id schema.ThreadID, role, content string) (schema.Message, error) {
	thread, err := s.Get(ctx, id)
	if err != nil {
		return schema.Message{}, err
	}
	msg := schema.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.clock.Now().UTC(),
	}
	_, err = s.kv.Update(ctx, messagesKey(id), schema.SourceController, func(current []byte, ok bool) ([]byte, error) {
		var messages []schema.Message
		if ok {
			if err := json.Unmarshal(current, &messages); err != nil {
				return nil, fmt.Errorf("messages %s: %w", id, schema.ErrSnapshotCorrupt)
			}
		}
		messages = append(messages, msg)
		return json.Marshal(messages)
	})
	if err != nil {
		return schema.Message{}, err
	}
	if err := s.Put(ctx, thread); err != nil {
		return schema.Message{}, err
	}
	return msg, nil
}

// Snapshot returns the thread with its messages.
func (s *Store) Snapshot(ctx context.Context, id schema.ThreadID) (schema.ThreadSnapshot, error) {
	thread, err := s.Get(ctx, id)
	if err != nil {
		return schema.ThreadSnapshot{}, err
	}
	messages, err := s.Messages(ctx, id)
	if err != nil {
		return schema.ThreadSnapshot{}, err
	}
	if messages == nil {
		messages = []schema.Message{}
	}
	return schema.ThreadSnapshot{Thread: thread, Messages: messages}, nil
}
