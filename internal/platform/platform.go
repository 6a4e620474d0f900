// Package platform defines the windowing runtime the compositor drives.
package platform

import (
	"context"

	"pkt.systems/chatdeck/schema"
)

// Capabilities describes what a runtime supports.
type Capabilities struct {
	// Reparent reports whether a live surface can be detached from one
	// window and attached to another.
	Reparent bool
}

// WindowOptions configures a new window.
type WindowOptions struct {
	Bounds schema.Rect
	Title  string
	// Show makes the window visible immediately.
	Show bool
}

// SurfaceOptions configures a new content surface.
type SurfaceOptions struct {
	URL  string
	Args []string
}

// Runtime creates and enumerates windows and surfaces.
type Runtime interface {
	Capabilities() Capabilities
	CreateWindow(ctx context.Context, opts WindowOptions) (Window, error)
	// Window returns a live window, or ok=false when it is gone.
	Window(id schema.WindowID) (Window, bool)
	// Windows returns live windows in creation order.
	Windows() []Window
	// FocusedWindow returns the focused live window, if any.
	FocusedWindow() (Window, bool)
	CreateSurface(ctx context.Context, opts SurfaceOptions) (Surface, error)
}

// Window is a top-level window hosting surfaces.
type Window interface {
	ID() schema.WindowID
	Bounds() schema.Rect
	// ContentBounds is the client area in global coordinates.
	ContentBounds() schema.Rect
	SetBounds(r schema.Rect)
	Show()
	Hide()
	Focus()
	IsVisible() bool
	IsDestroyed() bool
	// Close asks the window to close. The close handler may veto it.
	Close()
	// Destroy tears the window down without consulting the close handler.
	Destroy()
	Attach(s Surface) error
	Detach(s Surface) error
	// Raise stacks s on top of its siblings.
	Raise(s Surface) error
	Surfaces() []Surface
	// SetCloseHandler installs a hook run by Close; returning false vetoes it.
	SetCloseHandler(fn func() bool)
	// OnClosed registers a callback run once the window is destroyed.
	OnClosed(fn func())
}

// Surface is a content view hosting one tab.
type Surface interface {
	ID() schema.SurfaceID
	Send(channel string, payload any) error
	SetVisible(visible bool)
	IsVisible() bool
	Destroy()
	IsDestroyed() bool
	// OnDestroyed registers a callback run once the surface is destroyed.
	OnDestroyed(fn func())
	// SaveState serializes the surface content for recreation elsewhere.
	SaveState() ([]byte, error)
	RestoreState(data []byte) error
}

// PointerSource reports the global pointer position.
type PointerSource interface {
	Pointer(ctx context.Context) (schema.Point, error)
}

// PointerFunc adapts a function to PointerSource.
type PointerFunc func(ctx context.Context) (schema.Point, error)

// Pointer implements PointerSource.
func (f PointerFunc) Pointer(ctx context.Context) (schema.Point, error) {
	return f(ctx)
}
