package core

import (
	"sync"

	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

// ownedSurface is the runtime record of a live tab surface.
type ownedSurface struct {
	tabID   schema.TabID
	window  schema.WindowID
	surface platform.Surface
	opts    platform.SurfaceOptions
}

// ownership is the only place that tracks which window holds which surface,
// the per-window surface stack and the active tab per window.
type ownership struct {
	mu       sync.Mutex
	surfaces map[schema.TabID]*ownedSurface
	stacks   map[schema.WindowID][]schema.TabID
	active   map[schema.WindowID]schema.TabID
}

func newOwnership() *ownership {
	return &ownership{
		surfaces: make(map[schema.TabID]*ownedSurface),
		stacks:   make(map[schema.WindowID][]schema.TabID),
		active:   make(map[schema.WindowID]schema.TabID),
	}
}

// attach records a surface at the bottom of the window stack.
func (o *ownership) attach(windowID schema.WindowID, tabID schema.TabID, surface platform.Surface, opts platform.SurfaceOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.surfaces[tabID]; ok {
		o.removeFromStackLocked(prev.window, tabID)
	}
	o.surfaces[tabID] = &ownedSurface{tabID: tabID, window: windowID, surface: surface, opts: opts}
	o.stacks[windowID] = append([]schema.TabID{tabID}, o.stacks[windowID]...)
}

// lookup returns the live surface record for a tab.
func (o *ownership) lookup(tabID schema.TabID) (ownedSurface, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.surfaces[tabID]
	if !ok || entry.surface.IsDestroyed() {
		return ownedSurface{}, false
	}
	return *entry, true
}

// owner resolves the window whose stack holds the tab.
func (o *ownership) owner(tabID schema.TabID) (schema.WindowID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for windowID, stack := range o.stacks {
		for _, id := range stack {
			if id == tabID {
				entry, ok := o.surfaces[tabID]
				if !ok || entry.surface.IsDestroyed() {
					return 0, false
				}
				return windowID, true
			}
		}
	}
	return 0, false
}

// raise moves the tab to the top of its window stack and marks it active.
func (o *ownership) raise(windowID schema.WindowID, tabID schema.TabID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.surfaces[tabID]
	if !ok || entry.window != windowID {
		return false
	}
	o.removeFromStackLocked(windowID, tabID)
	o.stacks[windowID] = append(o.stacks[windowID], tabID)
	o.active[windowID] = tabID
	return true
}

// move hands the tab to another window and returns the previous owner.
func (o *ownership) move(tabID schema.TabID, to schema.WindowID) (schema.WindowID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.surfaces[tabID]
	if !ok {
		return 0, false
	}
	from := entry.window
	o.removeFromStackLocked(from, tabID)
	entry.window = to
	o.stacks[to] = append(o.stacks[to], tabID)
	return from, true
}

// replace swaps the surface backing a tab, moving it to window to.
func (o *ownership) replace(tabID schema.TabID, surface platform.Surface, to schema.WindowID, opts platform.SurfaceOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.surfaces[tabID]
	if !ok {
		o.surfaces[tabID] = &ownedSurface{tabID: tabID, window: to, surface: surface, opts: opts}
		o.stacks[to] = append(o.stacks[to], tabID)
		return
	}
	o.removeFromStackLocked(entry.window, tabID)
	entry.surface = surface
	entry.window = to
	entry.opts = opts
	o.stacks[to] = append(o.stacks[to], tabID)
}

// forget drops the tab when surfaceID is still the surface backing it. It
// reports whether anything was removed, so a second call is a no-op and a
// replaced surface never evicts its successor.
func (o *ownership) forget(tabID schema.TabID, surfaceID schema.SurfaceID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.surfaces[tabID]
	if !ok || entry.surface.ID() != surfaceID {
		return false
	}
	delete(o.surfaces, tabID)
	o.removeFromStackLocked(entry.window, tabID)
	return true
}

// forgetWindow drops the window stack and active slot.
func (o *ownership) forgetWindow(windowID schema.WindowID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.stacks, windowID)
	delete(o.active, windowID)
}

// activeTab returns the tab last raised in the window.
func (o *ownership) activeTab(windowID schema.WindowID) (schema.TabID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.active[windowID]
	return id, ok
}

// tabs returns the window stack, bottom first.
func (o *ownership) tabs(windowID schema.WindowID) []schema.TabID {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]schema.TabID, len(o.stacks[windowID]))
	copy(out, o.stacks[windowID])
	return out
}

// surfacesOf returns the live surface records held by a window.
func (o *ownership) surfacesOf(windowID schema.WindowID) []ownedSurface {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ownedSurface, 0, len(o.stacks[windowID]))
	for _, id := range o.stacks[windowID] {
		if entry, ok := o.surfaces[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

func (o *ownership) removeFromStackLocked(windowID schema.WindowID, tabID schema.TabID) {
	stack := o.stacks[windowID]
	for i, id := range stack {
		if id == tabID {
			o.stacks[windowID] = append(stack[:i:i], stack[i+1:]...)
			break
		}
	}
	if o.active[windowID] == tabID {
		delete(o.active, windowID)
	}
}
