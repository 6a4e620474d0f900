package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/logx"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// DragConfig configures pointer tracking.
type DragConfig struct {
	Interval       time.Duration
	TabStripHeight int
}

// DragTracker polls the global pointer during a drag and reports which
// window tab strip, if any, it hovers.
type DragTracker struct {
	cfg     DragConfig
	rt      platform.Runtime
	pointer platform.PointerSource
	clock   clock.Clock
	sink    EventSink
	logger  pslog.Logger

	mu           sync.Mutex
	tracking     bool
	generation   uint64
	ticker       clock.Ticker
	draggedWidth int
	last         schema.Point
	hasLast      bool
	hovered      schema.WindowID
	target       *schema.InsertTarget
}

// NewDragTracker constructs an idle tracker.
func NewDragTracker(cfg DragConfig, rt platform.Runtime, pointer platform.PointerSource, clk clock.Clock, sink EventSink, logger pslog.Logger) *DragTracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second / schema.DefaultPollRate
	}
	if cfg.TabStripHeight <= 0 {
		cfg.TabStripHeight = schema.DefaultTabStripHeight
	}
	if clk == nil {
		clk = clock.Real()
	}
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &DragTracker{cfg: cfg, rt: rt, pointer: pointer, clock: clk, sink: sink, logger: logger}
}

// Start samples the pointer and begins polling. Starting an active tracker
// restarts it.
func (d *DragTracker) Start(draggedWidth int) {
	d.mu.Lock()
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	d.clearHoverLocked()
	d.generation++
	gen := d.generation
	d.tracking = true
	d.draggedWidth = draggedWidth
	d.hasLast = false
	d.target = nil
	d.mu.Unlock()

	d.logger.Debug("drag tracking started", "dragged_width", draggedWidth)
	d.tick(gen)
	ticker := d.clock.Every(d.cfg.Interval, func() { d.tick(gen) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generation != gen {
		ticker.Stop()
		return
	}
	d.ticker = ticker
}

// Stop halts polling, clears any hover and forgets the insert target. It
// reports whether tracking was active.
func (d *DragTracker) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.tracking
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	d.generation++
	d.tracking = false
	d.clearHoverLocked()
	d.hasLast = false
	d.target = nil
	if was {
		d.logger.Debug("drag tracking stopped")
	}
	return was
}

// Tracking reports whether a drag is being tracked.
func (d *DragTracker) Tracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking
}

// UpdateInsertTarget records the live drop position reported by a window.
func (d *DragTracker) UpdateInsertTarget(target schema.InsertTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := target
	d.target = &t
}

// InsertTarget returns the last recorded drop position.
func (d *DragTracker) InsertTarget() (schema.InsertTarget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target == nil {
		return schema.InsertTarget{}, false
	}
	return *d.target, true
}

// Hovered returns the window whose tab strip is hovered, or zero.
func (d *DragTracker) Hovered() schema.WindowID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hovered
}

func (d *DragTracker) tick(gen uint64) {
	if d.pointer == nil {
		return
	}
	p, err := d.pointer.Pointer(pslog.ContextWithLogger(context.Background(), d.logger))
	if err != nil {
		d.logger.Trace("drag pointer read failed", "err", err)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.tracking || d.generation != gen {
		return
	}
	if d.hasLast && p == d.last {
		return
	}
	d.last = p
	d.hasLast = true

	window, inStrip := d.stripAt(p)
	if window == nil || !inStrip {
		if d.hovered != 0 {
			d.logger.Trace("drag hover cleared", "window", d.hovered)
		}
		d.clearHoverLocked()
		return
	}
	id := window.ID()
	if d.hovered != 0 && d.hovered != id {
		d.clearHoverLocked()
	}
	cb := window.ContentBounds()
	d.hovered = id
	event := schema.HoverEvent{WindowID: id, ClientX: p.X - cb.X, ClientY: p.Y - cb.Y, DraggedWidth: d.draggedWidth}
	d.logger.Trace("drag hover", "window", id, "x", event.ClientX, "y", event.ClientY)
	d.sink.OnHover(event)
}

func (d *DragTracker) clearHoverLocked() {
	if d.hovered == 0 {
		return
	}
	d.sink.OnHoverClear(schema.HoverClearEvent{WindowID: d.hovered})
	d.hovered = 0
}

// windowAt returns the visible window containing p, preferring the focused one.
func (d *DragTracker) windowAt(p schema.Point) platform.Window {
	if focused, ok := d.rt.FocusedWindow(); ok && focused.IsVisible() && focused.Bounds().Contains(p) {
		return focused
	}
	for _, window := range d.rt.Windows() {
		if window.IsVisible() && window.Bounds().Contains(p) {
			return window
		}
	}
	return nil
}

// stripAt returns the window under p and whether p lies in its tab strip band.
func (d *DragTracker) stripAt(p schema.Point) (platform.Window, bool) {
	window := d.windowAt(p)
	if window == nil {
		return nil, false
	}
	cb := window.ContentBounds()
	strip := schema.Rect{X: cb.X, Y: cb.Y, Width: cb.Width, Height: d.cfg.TabStripHeight}
	return window, strip.Contains(p)
}

func (d *DragTracker) pointerAt(ctx context.Context) (schema.Point, bool) {
	if d.pointer == nil {
		return schema.Point{}, false
	}
	p, err := d.pointer.Pointer(ctx)
	if err != nil {
		return schema.Point{}, false
	}
	return p, true
}

// StartTracking begins drag pointer tracking.
func (c *Compositor) StartTracking(ctx context.Context, req schema.StartTrackingRequest) (schema.DragResponse, error) {
	if ctx == nil {
		return schema.DragResponse{}, errors.New("missing context")
	}
	if req.DraggedWidth < 0 {
		return schema.DragResponse{}, schema.ErrInvalidRequest
	}
	logx.WithWindow(ctx, req.WindowID).Debug("drag start requested")
	c.drag.Start(req.DraggedWidth)
	return schema.DragResponse{Tracking: true}, nil
}

// StopTracking ends drag pointer tracking.
func (c *Compositor) StopTracking(ctx context.Context, req schema.StopTrackingRequest) (schema.DragResponse, error) {
	if ctx == nil {
		return schema.DragResponse{}, errors.New("missing context")
	}
	logx.WithWindow(ctx, req.WindowID).Debug("drag stop requested")
	c.drag.Stop()
	return schema.DragResponse{Tracking: false}, nil
}

// UpdateInsertTarget stores the live insert target reported by a window.
func (c *Compositor) UpdateInsertTarget(ctx context.Context, req schema.UpdateInsertTargetRequest) (schema.DragResponse, error) {
	if ctx == nil {
		return schema.DragResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateWindowID(req.Target.WindowID); err != nil {
		return schema.DragResponse{}, err
	}
	if req.Target.InsertIndex < 0 {
		return schema.DragResponse{}, schema.ErrInvalidRequest
	}
	c.drag.UpdateInsertTarget(req.Target)
	return schema.DragResponse{Tracking: c.drag.Tracking()}, nil
}
