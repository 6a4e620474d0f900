package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/chatdeck/internal/clock"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/internal/platform/headless"
	"pkt.systems/chatdeck/internal/tempfiles"
	"pkt.systems/chatdeck/internal/threads"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

const testPollInterval = 10 * time.Millisecond

type harnessOptions struct {
	noReparent  bool
	hideOnClose bool
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	c       *Compositor
	rt      *headless.Runtime
	store   *persist.Store
	reg     *persist.Registry
	threads *countingThreads
	temp    *tempfiles.Registry
	clock   *clock.Manual
	sink    *recordingSink
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	store, err := persist.NewStoreWithLogger(filepath.Join(dir, "state"), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	clk := clock.NewManual(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	rt := headless.New(headless.Options{Capabilities: platform.Capabilities{Reparent: !opts.noReparent}})
	h := &harness{
		t:       t,
		ctx:     pslog.ContextWithLogger(context.Background(), logger),
		rt:      rt,
		store:   store,
		reg:     persist.NewRegistry(store),
		threads: &countingThreads{Store: threads.NewStore(store, clk)},
		temp:    tempfiles.New(filepath.Join(dir, "tmp")),
		clock:   clk,
		sink:    &recordingSink{},
	}
	c, err := NewService(schema.ServiceConfig{
		StateDir:       store.Dir(),
		TempDir:        filepath.Join(dir, "tmp"),
		BaseURL:        "app://chatdeck",
		HideOnClose:    opts.hideOnClose,
		PollInterval:   testPollInterval,
		TabStripHeight: 40,
	}, ServiceDeps{
		Runtime:   rt,
		Registry:  h.reg,
		Threads:   h.threads,
		TempFiles: h.temp,
		Pointer:   rt,
		Clock:     clk,
		EventSink: h.sink,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.c = c
	return h
}

func (h *harness) window() schema.WindowID {
	h.t.Helper()
	w, err := h.c.CreateWindow(h.ctx, nil, true)
	if err != nil {
		h.t.Fatalf("create window: %v", err)
	}
	return w.ID()
}

func (h *harness) windowAt(x, y, width, height int) schema.WindowID {
	h.t.Helper()
	w, err := h.c.CreateWindow(h.ctx, &schema.Rect{X: x, Y: y, Width: width, Height: height}, true)
	if err != nil {
		h.t.Fatalf("create window: %v", err)
	}
	return w.ID()
}

func (h *harness) newTab(windowID schema.WindowID, active bool) schema.TabID {
	h.t.Helper()
	resp, err := h.c.NewTab(h.ctx, schema.NewTabRequest{WindowID: windowID, Type: schema.TabTypeChat, Active: active})
	if err != nil {
		h.t.Fatalf("new tab: %v", err)
	}
	if resp.Tab == nil {
		h.t.Fatalf("expected tab for window %d", windowID)
	}
	return resp.Tab.ID
}

// threadTab opens a tab on a thread that already has a message, so closing
// it never purges the thread.
func (h *harness) threadTab(windowID schema.WindowID, title string) (schema.TabID, schema.ThreadID) {
	h.t.Helper()
	thread, err := h.threads.Create(h.ctx, title, false)
	if err != nil {
		h.t.Fatalf("create thread: %v", err)
	}
	if _, err := h.threads.Append(h.ctx, thread.ID, "user", "hello"); err != nil {
		h.t.Fatalf("append: %v", err)
	}
	resp, err := h.c.NewTabWithThread(h.ctx, schema.NewTabWithThreadRequest{WindowID: windowID, ThreadID: thread.ID, Active: true})
	if err != nil {
		h.t.Fatalf("new tab with thread: %v", err)
	}
	if resp.Tab == nil || resp.Reused {
		h.t.Fatalf("expected fresh tab, got %+v", resp)
	}
	return resp.Tab.ID, thread.ID
}

func (h *harness) state() schema.TabState {
	h.t.Helper()
	state, _, err := h.reg.Load(h.ctx)
	if err != nil {
		h.t.Fatalf("load registry: %v", err)
	}
	return state
}

// layout renders a window's tabs as ids, with a trailing * on the active one.
func (h *harness) layout(windowID schema.WindowID) []string {
	h.t.Helper()
	return layoutOf(h.state(), windowID)
}

func layoutOf(state schema.TabState, windowID schema.WindowID) []string {
	var out []string
	for _, tab := range state.Tabs(windowID.Key()) {
		id := string(tab.ID)
		if tab.Active {
			id += "*"
		}
		out = append(out, id)
	}
	return out
}

func (h *harness) surface(tabID schema.TabID) *headless.Surface {
	h.t.Helper()
	entry, ok := h.c.owners.lookup(tabID)
	if !ok {
		h.t.Fatalf("expected live surface for tab %s", tabID)
	}
	return entry.surface.(*headless.Surface)
}

func (h *harness) assertValid() {
	h.t.Helper()
	if err := h.state().Validate(); err != nil {
		h.t.Fatalf("registry invariant violated: %v", err)
	}
}

func (h *harness) focused() schema.WindowID {
	w, ok := h.rt.FocusedWindow()
	if !ok {
		return 0
	}
	return w.ID()
}

func ids(values ...schema.TabID) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func active(id schema.TabID) string {
	return string(id) + "*"
}

type countingThreads struct {
	*threads.Store
	deletes atomic.Int32
}

func (c *countingThreads) Delete(ctx context.Context, id schema.ThreadID) error {
	c.deletes.Add(1)
	return c.Store.Delete(ctx, id)
}

type recordingSink struct {
	mu      sync.Mutex
	events  []string
	hovers  []schema.HoverEvent
	clears  []schema.HoverClearEvent
	tabs    []schema.TabEvent
	windows []schema.WindowEvent
}

func (s *recordingSink) OnHover(event schema.HoverEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hovers = append(s.hovers, event)
	s.events = append(s.events, fmt.Sprintf("hover:%d", event.WindowID))
}

func (s *recordingSink) OnHoverClear(event schema.HoverClearEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears = append(s.clears, event)
	s.events = append(s.events, fmt.Sprintf("clear:%d", event.WindowID))
}

func (s *recordingSink) OnTabEvent(event schema.TabEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = append(s.tabs, event)
}

func (s *recordingSink) OnWindowEvent(event schema.WindowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, event)
}

func (s *recordingSink) dragEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) hoverEvents() []schema.HoverEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.HoverEvent(nil), s.hovers...)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.hovers = nil
	s.clears = nil
}
