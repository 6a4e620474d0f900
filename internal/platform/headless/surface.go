package headless

import (
	"encoding/json"
	"fmt"

	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

// Message is a payload sent to a surface.
type Message struct {
	Channel string
	Payload any
}

// Surface is an in-memory content surface.
type Surface struct {
	rt   *Runtime
	id   schema.SurfaceID
	opts platform.SurfaceOptions

	visible     bool
	destroyed   bool
	host        schema.WindowID
	everHost    schema.WindowID
	sent        []Message
	state       []byte
	onDestroyed []func()
}

type savedState struct {
	URL   string          `json:"url"`
	State json.RawMessage `json:"state,omitempty"`
}

// ID implements platform.Surface.
func (s *Surface) ID() schema.SurfaceID { return s.id }

// Options returns the options the surface was created with.
func (s *Surface) Options() platform.SurfaceOptions { return s.opts }

// Host returns the window currently hosting the surface, or zero.
func (s *Surface) Host() schema.WindowID {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.host
}

// Send implements platform.Surface.
func (s *Surface) Send(channel string, payload any) error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if s.destroyed {
		return fmt.Errorf("surface %s: %w", s.id, schema.ErrSurfaceGone)
	}
	s.sent = append(s.sent, Message{Channel: channel, Payload: payload})
	return nil
}

// Sent returns every payload sent to the surface.
func (s *Surface) Sent() []Message {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// SetState replaces the content state the surface reports from SaveState.
func (s *Surface) SetState(data []byte) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	s.state = append([]byte(nil), data...)
}

// State returns the current content state.
func (s *Surface) State() []byte {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return append([]byte(nil), s.state...)
}

// SetVisible implements platform.Surface.
func (s *Surface) SetVisible(visible bool) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if !s.destroyed {
		s.visible = visible
	}
}

// IsVisible implements platform.Surface.
func (s *Surface) IsVisible() bool {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.visible && !s.destroyed
}

// IsDestroyed implements platform.Surface.
func (s *Surface) IsDestroyed() bool {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.destroyed
}

// OnDestroyed implements platform.Surface.
func (s *Surface) OnDestroyed(fn func()) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	s.onDestroyed = append(s.onDestroyed, fn)
}

// Destroy implements platform.Surface.
func (s *Surface) Destroy() {
	s.rt.mu.Lock()
	if s.destroyed {
		s.rt.mu.Unlock()
		return
	}
	s.destroyed = true
	s.visible = false
	if host, ok := s.rt.windows[s.host]; ok {
		host.removeLocked(s)
	}
	s.host = 0
	callbacks := s.onDestroyed
	s.onDestroyed = nil
	s.rt.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// SaveState implements platform.Surface.
func (s *Surface) SaveState() ([]byte, error) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if s.destroyed {
		return nil, fmt.Errorf("surface %s: %w", s.id, schema.ErrSurfaceGone)
	}
	saved := savedState{URL: s.opts.URL}
	if len(s.state) > 0 {
		saved.State = json.RawMessage(s.state)
	}
	return json.Marshal(saved)
}

// RestoreState implements platform.Surface.
func (s *Surface) RestoreState(data []byte) error {
	var saved savedState
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("restore surface state: %w", err)
	}
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if s.destroyed {
		return fmt.Errorf("surface %s: %w", s.id, schema.ErrSurfaceGone)
	}
	s.state = append([]byte(nil), saved.State...)
	return nil
}
