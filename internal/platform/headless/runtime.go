// Package headless is an in-memory windowing runtime. It backs the server
// when no native shell is attached and drives the compositor in tests.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

// Options configures a runtime.
type Options struct {
	Capabilities platform.Capabilities
	// TitleBarHeight offsets the content area below the window frame.
	TitleBarHeight int
}

// Runtime is an in-memory platform.Runtime.
type Runtime struct {
	opts Options

	mu          sync.Mutex
	nextWindow  int
	nextSurface int
	windows     map[schema.WindowID]*Window
	order       []schema.WindowID
	focused     schema.WindowID
	pointer     schema.Point
	pointerErr  error
}

// New returns an empty runtime.
func New(opts Options) *Runtime {
	return &Runtime{opts: opts, windows: make(map[schema.WindowID]*Window)}
}

// Capabilities implements platform.Runtime.
func (r *Runtime) Capabilities() platform.Capabilities {
	return r.opts.Capabilities
}

// CreateWindow implements platform.Runtime.
func (r *Runtime) CreateWindow(ctx context.Context, opts platform.WindowOptions) (platform.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Bounds.Width <= 0 || opts.Bounds.Height <= 0 {
		return nil, fmt.Errorf("window bounds %dx%d: %w", opts.Bounds.Width, opts.Bounds.Height, schema.ErrInvalidRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextWindow++
	w := &Window{rt: r, id: schema.WindowID(r.nextWindow), title: opts.Title, bounds: opts.Bounds}
	r.windows[w.id] = w
	r.order = append(r.order, w.id)
	if opts.Show {
		w.visible = true
		r.focused = w.id
	}
	return w, nil
}

// Window implements platform.Runtime.
func (r *Runtime) Window(id schema.WindowID) (platform.Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, false
	}
	return w, true
}

// Windows implements platform.Runtime.
func (r *Runtime) Windows() []platform.Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]platform.Window, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.windows[id])
	}
	return out
}

// FocusedWindow implements platform.Runtime.
func (r *Runtime) FocusedWindow() (platform.Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[r.focused]
	if !ok {
		return nil, false
	}
	return w, true
}

// CreateSurface implements platform.Runtime.
func (r *Runtime) CreateSurface(ctx context.Context, opts platform.SurfaceOptions) (platform.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSurface++
	args := make([]string, len(opts.Args))
	copy(args, opts.Args)
	return &Surface{
		rt:   r,
		id:   schema.SurfaceID(fmt.Sprintf("surface-%d", r.nextSurface)),
		opts: platform.SurfaceOptions{URL: opts.URL, Args: args},
	}, nil
}

// SetPointer moves the simulated global pointer.
func (r *Runtime) SetPointer(p schema.Point) {
	r.mu.Lock()
	r.pointer = p
	r.pointerErr = nil
	r.mu.Unlock()
}

// SetPointerError makes pointer reads fail until SetPointer is called.
func (r *Runtime) SetPointerError(err error) {
	r.mu.Lock()
	r.pointerErr = err
	r.mu.Unlock()
}

// Pointer implements platform.PointerSource.
func (r *Runtime) Pointer(ctx context.Context) (schema.Point, error) {
	if err := ctx.Err(); err != nil {
		return schema.Point{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointer, r.pointerErr
}

func (r *Runtime) removeLocked(id schema.WindowID) {
	delete(r.windows, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.focused == id {
		r.focused = 0
	}
}

func asSurface(s platform.Surface) (*Surface, error) {
	surface, ok := s.(*Surface)
	if !ok || surface == nil {
		return nil, errors.New("surface does not belong to the headless runtime")
	}
	return surface, nil
}
