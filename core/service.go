package core

import (
	"context"
	"errors"
	"os"
	"sync"

	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/logx"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/internal/tempfiles"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

// Compositor owns windows, the surfaces they host and the drag protocol
// between them. It implements Service.
type Compositor struct {
	cfg     schema.ServiceConfig
	rt      platform.Runtime
	reg     Registry
	threads ThreadStore
	temp    *tempfiles.Registry
	sink    EventSink
	logger  pslog.Logger
	owners  *ownership
	drag    *DragTracker

	mu             sync.Mutex
	order          []schema.WindowID
	phases         map[schema.WindowID]schema.WindowPhase
	main           schema.WindowID
	settingsWindow schema.WindowID
	quitting       bool
	done           chan struct{}
	doneOnce       sync.Once
}

var _ Service = (*Compositor)(nil)

// NewService constructs the compositor.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (*Compositor, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Runtime == nil {
		return nil, errors.New("windowing runtime is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("tab registry is required")
	}
	if deps.Threads == nil {
		return nil, errors.New("thread store is required")
	}
	if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
		return nil, err
	}
	if deps.TempFiles == nil {
		deps.TempFiles = tempfiles.New(cfg.TempDir)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.EventSink == nil {
		deps.EventSink = nopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Compositor{
		cfg:     cfg,
		rt:      deps.Runtime,
		reg:     deps.Registry,
		threads: deps.Threads,
		temp:    deps.TempFiles,
		sink:    deps.EventSink,
		logger:  logger,
		owners:  newOwnership(),
		phases:  make(map[schema.WindowID]schema.WindowPhase),
		done:    make(chan struct{}),
	}
	c.drag = NewDragTracker(DragConfig{
		Interval:       cfg.PollInterval,
		TabStripHeight: cfg.TabStripHeight,
	}, deps.Runtime, deps.Pointer, deps.Clock, deps.EventSink, logger)
	return c, nil
}

// Drag returns the drag pointer tracker.
func (c *Compositor) Drag() *DragTracker {
	return c.drag
}

// Done is closed once the last window is destroyed.
func (c *Compositor) Done() <-chan struct{} {
	return c.done
}

func (c *Compositor) log(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return c.logger
	}
	return pslog.Ctx(ctx)
}

// detached returns a context for cleanup work started from runtime callbacks.
func (c *Compositor) detached() context.Context {
	return pslog.ContextWithLogger(context.Background(), c.logger)
}

// loadState reads the registry, treating a missing or corrupt value as empty.
func (c *Compositor) loadState(ctx context.Context) schema.TabState {
	state, ok, err := c.reg.Load(ctx)
	if err != nil {
		c.log(ctx).Warn("registry load failed", "err", err)
		return schema.TabState{}
	}
	if !ok {
		return schema.TabState{}
	}
	return state
}

// showTab raises the tab surface in its window and hides its siblings.
func (c *Compositor) showTab(ctx context.Context, windowID schema.WindowID, tabID schema.TabID) bool {
	window, ok := c.rt.Window(windowID)
	if !ok {
		logx.WithWindowTab(ctx, windowID, tabID).Warn("tabs show skipped; window gone")
		return false
	}
	entry, ok := c.owners.lookup(tabID)
	if !ok || entry.window != windowID {
		logx.WithWindowTab(ctx, windowID, tabID).Warn("tabs show skipped; surface gone")
		return false
	}
	if err := window.Raise(entry.surface); err != nil {
		logx.WithWindowTab(ctx, windowID, tabID).Warn("tabs raise failed", "err", err)
		return false
	}
	c.owners.raise(windowID, tabID)
	for _, other := range c.owners.surfacesOf(windowID) {
		other.surface.SetVisible(other.tabID == tabID)
	}
	return true
}

// showActive shows whatever tab the registry marks active for the window.
func (c *Compositor) showActive(ctx context.Context, windowID schema.WindowID, state schema.TabState) {
	tab, ok := state.ActiveTab(windowID.Key())
	if !ok {
		return
	}
	if current, ok := c.owners.activeTab(windowID); ok && current == tab.ID {
		return
	}
	c.showTab(ctx, windowID, tab.ID)
}

func (c *Compositor) emitTab(windowID schema.WindowID, kind schema.TabEventType, tab schema.Tab) {
	c.sink.OnTabEvent(schema.TabEvent{WindowID: windowID, Type: kind, Tab: tab})
}

func (c *Compositor) emitWindow(windowID schema.WindowID, kind schema.WindowEventType) {
	c.sink.OnWindowEvent(schema.WindowEvent{WindowID: windowID, Type: kind})
}
