package headless

import (
	"fmt"

	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

// Window is an in-memory window.
type Window struct {
	rt    *Runtime
	id    schema.WindowID
	title string

	bounds       schema.Rect
	visible      bool
	destroyed    bool
	surfaces     []*Surface
	closeHandler func() bool
	onClosed     []func()
}

// ID implements platform.Window.
func (w *Window) ID() schema.WindowID { return w.id }

// Title returns the title the window was created with.
func (w *Window) Title() string { return w.title }

// Bounds implements platform.Window.
func (w *Window) Bounds() schema.Rect {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	return w.bounds
}

// ContentBounds implements platform.Window.
func (w *Window) ContentBounds() schema.Rect {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	tb := w.rt.opts.TitleBarHeight
	return schema.Rect{X: w.bounds.X, Y: w.bounds.Y + tb, Width: w.bounds.Width, Height: w.bounds.Height - tb}
}

// SetBounds implements platform.Window.
func (w *Window) SetBounds(r schema.Rect) {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	w.bounds = r
}

// Show implements platform.Window.
func (w *Window) Show() {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	if !w.destroyed {
		w.visible = true
	}
}

// Hide implements platform.Window.
func (w *Window) Hide() {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	w.visible = false
	if w.rt.focused == w.id {
		w.rt.focused = 0
	}
}

// Focus implements platform.Window.
func (w *Window) Focus() {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	if !w.destroyed {
		w.rt.focused = w.id
	}
}

// IsVisible implements platform.Window.
func (w *Window) IsVisible() bool {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	return w.visible && !w.destroyed
}

// IsDestroyed implements platform.Window.
func (w *Window) IsDestroyed() bool {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	return w.destroyed
}

// SetCloseHandler implements platform.Window.
func (w *Window) SetCloseHandler(fn func() bool) {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	w.closeHandler = fn
}

// OnClosed implements platform.Window.
func (w *Window) OnClosed(fn func()) {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	w.onClosed = append(w.onClosed, fn)
}

// Close implements platform.Window.
func (w *Window) Close() {
	w.rt.mu.Lock()
	if w.destroyed {
		w.rt.mu.Unlock()
		return
	}
	handler := w.closeHandler
	w.rt.mu.Unlock()
	if handler != nil && !handler() {
		return
	}
	w.Destroy()
}

// Destroy implements platform.Window. Hosted surfaces are destroyed before
// the closed callbacks run.
func (w *Window) Destroy() {
	w.rt.mu.Lock()
	if w.destroyed {
		w.rt.mu.Unlock()
		return
	}
	w.destroyed = true
	w.visible = false
	surfaces := w.surfaces
	w.surfaces = nil
	for _, s := range surfaces {
		s.host = 0
	}
	callbacks := w.onClosed
	w.onClosed = nil
	w.rt.removeLocked(w.id)
	w.rt.mu.Unlock()

	for _, s := range surfaces {
		s.Destroy()
	}
	for _, fn := range callbacks {
		fn()
	}
}

// Attach implements platform.Window.
func (w *Window) Attach(ps platform.Surface) error {
	s, err := asSurface(ps)
	if err != nil {
		return err
	}
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	if w.destroyed {
		return fmt.Errorf("window %d: %w", w.id, schema.ErrWindowNotFound)
	}
	if s.destroyed {
		return fmt.Errorf("surface %s: %w", s.id, schema.ErrSurfaceGone)
	}
	if s.host == w.id {
		return nil
	}
	if s.host != 0 {
		return fmt.Errorf("surface %s is attached to window %d", s.id, s.host)
	}
	if !w.rt.opts.Capabilities.Reparent && s.everHost != 0 && s.everHost != w.id {
		return fmt.Errorf("surface %s: %w", s.id, schema.ErrReparentUnsupported)
	}
	s.host = w.id
	s.everHost = w.id
	w.surfaces = append(w.surfaces, s)
	return nil
}

// Detach implements platform.Window.
func (w *Window) Detach(ps platform.Surface) error {
	s, err := asSurface(ps)
	if err != nil {
		return err
	}
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	if !w.removeLocked(s) {
		return fmt.Errorf("surface %s not attached to window %d: %w", s.id, w.id, schema.ErrSurfaceGone)
	}
	s.host = 0
	return nil
}

// Raise implements platform.Window.
func (w *Window) Raise(ps platform.Surface) error {
	s, err := asSurface(ps)
	if err != nil {
		return err
	}
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	if !w.removeLocked(s) {
		return fmt.Errorf("surface %s not attached to window %d: %w", s.id, w.id, schema.ErrSurfaceGone)
	}
	w.surfaces = append(w.surfaces, s)
	return nil
}

// Surfaces implements platform.Window. The last surface is topmost.
func (w *Window) Surfaces() []platform.Surface {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	out := make([]platform.Surface, 0, len(w.surfaces))
	for _, s := range w.surfaces {
		out = append(out, s)
	}
	return out
}

func (w *Window) removeLocked(s *Surface) bool {
	for i, existing := range w.surfaces {
		if existing == s {
			w.surfaces = append(w.surfaces[:i], w.surfaces[i+1:]...)
			return true
		}
	}
	return false
}
