package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Registry is the persisted tab registry stored under schema.TabBarStateKey.
type Registry struct {
	store *Store
	key   string
}

// NewRegistry wraps store as a tab registry.
func NewRegistry(store *Store) *Registry {
	return &Registry{store: store, key: schema.TabBarStateKey}
}

// Load reads the registry. A missing registry returns ok=false so callers can
// bootstrap; an unparsable one returns schema.ErrRegistryCorrupt.
func (r *Registry) Load(ctx context.Context) (schema.TabState, bool, error) {
	data, ok, err := r.store.Get(ctx, r.key)
	if err != nil || !ok {
		return schema.TabState{}, false, err
	}
	state, err := decodeState(data)
	if err != nil {
		return schema.TabState{}, false, err
	}
	return state, true, nil
}

// Update applies fn to the current registry and writes the result once. fn
// may return ErrNoChange to leave the registry untouched, in which case the
// state as read is returned even if fn mutated its copy. A corrupt registry
// is handed to fn as empty state and repaired by the write.
func (r *Registry) Update(ctx context.Context, source string, fn func(schema.TabState) (schema.TabState, error)) (schema.TabState, error) {
	var result schema.TabState
	_, err := r.store.Update(ctx, r.key, source, func(current []byte, ok bool) ([]byte, error) {
		state := schema.TabState{}
		if ok {
			decoded, err := decodeState(current)
			if err != nil {
				pslog.Ctx(ctx).Warn("registry load failed; starting empty", "err", err)
			} else {
				state = decoded
			}
		}
		next, err := fn(state.Clone())
		if errors.Is(err, ErrNoChange) {
			result = state
			return nil, ErrNoChange
		}
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = schema.TabState{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}
		result = next
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Save replaces the registry.
func (r *Registry) Save(ctx context.Context, state schema.TabState, source string) error {
	_, err := r.Update(ctx, source, func(schema.TabState) (schema.TabState, error) {
		return state, nil
	})
	return err
}

// Reset removes the registry so the next start bootstraps.
func (r *Registry) Reset(ctx context.Context, source string) error {
	return r.store.Remove(ctx, r.key, source)
}

func decodeState(data []byte) (schema.TabState, error) {
	state := schema.TabState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return schema.TabState{}, fmt.Errorf("%w: %v", schema.ErrRegistryCorrupt, err)
	}
	if state == nil {
		state = schema.TabState{}
	}
	return state, nil
}
