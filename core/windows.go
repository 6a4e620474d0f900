package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/chatdeck/internal/logx"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

const (
	windowCascade = 30
	windowOriginX = 80
	windowOriginY = 60
	// splitGrabOffset places a split window so the pointer sits on its tab strip.
	splitGrabOffset = 60
)

// CreateWindow opens a new window. A nil bounds cascades from the origin.
func (c *Compositor) CreateWindow(ctx context.Context, bounds *schema.Rect, show bool) (platform.Window, error) {
	c.mu.Lock()
	n := len(c.order)
	c.mu.Unlock()
	rect := schema.Rect{
		X:      windowOriginX + windowCascade*n,
		Y:      windowOriginY + windowCascade*n,
		Width:  c.cfg.WindowWidth,
		Height: c.cfg.WindowHeight,
	}
	if bounds != nil {
		rect = *bounds
		if rect.Width <= 0 {
			rect.Width = c.cfg.WindowWidth
		}
		if rect.Height <= 0 {
			rect.Height = c.cfg.WindowHeight
		}
	}
	window, err := c.rt.CreateWindow(ctx, platform.WindowOptions{Bounds: rect, Title: "chatdeck", Show: show})
	if err != nil {
		c.log(ctx).Warn("windows create failed", "err", err)
		return nil, err
	}
	id := window.ID()
	window.SetCloseHandler(func() bool { return c.handleCloseRequest(id) })
	window.OnClosed(func() { c.handleClosed(id) })

	phase := schema.WindowCreated
	if show {
		phase = schema.WindowShown
	}
	c.mu.Lock()
	c.order = append(c.order, id)
	c.phases[id] = phase
	becameMain := c.main == 0
	if becameMain {
		c.main = id
	}
	c.mu.Unlock()

	logx.WithWindow(ctx, id).Info("windows window created", "main", becameMain, "shown", show)
	c.emitWindow(id, schema.WindowEventCreated)
	if show {
		c.emitWindow(id, schema.WindowEventShown)
	}
	if becameMain {
		c.emitWindow(id, schema.WindowEventMain)
	}
	return window, nil
}

// CloseWindow requests a close through the window close handler.
func (c *Compositor) CloseWindow(ctx context.Context, windowID schema.WindowID) {
	window, ok := c.rt.Window(windowID)
	if !ok {
		logx.WithWindow(ctx, windowID).Debug("windows close skipped; window gone")
		return
	}
	window.Close()
}

// handleCloseRequest decides between hiding and closing. It runs from the
// runtime close hook and must not block.
func (c *Compositor) handleCloseRequest(id schema.WindowID) bool {
	log := c.logger.With("window", id)
	c.mu.Lock()
	others := c.liveOthersLocked(id)
	if len(others) == 0 && c.cfg.HideOnClose && !c.quitting {
		c.phases[id] = schema.WindowHidden
		c.mu.Unlock()
		if window, ok := c.rt.Window(id); ok {
			window.Hide()
		}
		log.Info("windows window hidden")
		c.emitWindow(id, schema.WindowEventHidden)
		if err := c.PurgeEphemeral(c.detached(), id); err != nil {
			log.Warn("windows ephemeral purge failed", "err", err)
		}
		return false
	}
	c.phases[id] = schema.WindowClosing
	newMain := schema.WindowID(0)
	if c.main == id && len(others) > 0 {
		c.main = others[0]
		newMain = c.main
	}
	c.mu.Unlock()
	if newMain != 0 {
		log.Info("windows main transferred", "main", newMain)
		c.emitWindow(newMain, schema.WindowEventMain)
	}
	return true
}

// handleClosed runs the cleanup for a destroyed window.
func (c *Compositor) handleClosed(id schema.WindowID) {
	log := c.logger.With("window", id)
	c.mu.Lock()
	quitting := c.quitting
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	c.phases[id] = schema.WindowDestroyed
	if c.settingsWindow == id {
		c.settingsWindow = 0
	}
	remaining := len(c.order)
	newMain := schema.WindowID(0)
	if c.main == id {
		c.main = 0
		if remaining > 0 {
			c.main = c.order[0]
			newMain = c.main
		}
	}
	c.mu.Unlock()

	c.owners.forgetWindow(id)
	ctx := c.detached()
	switch {
	case quitting:
		log.Debug("windows close cleanup skipped; quitting")
	case remaining > 0:
		if err := c.RemoveWindowTabs(ctx, id); err != nil {
			log.Warn("windows tab removal failed", "err", err)
		}
	default:
		if err := c.PurgeEphemeral(ctx, id); err != nil {
			log.Warn("windows ephemeral purge failed", "err", err)
		}
	}
	log.Info("windows window closed", "remaining", remaining)
	c.emitWindow(id, schema.WindowEventClosed)
	if newMain != 0 {
		c.emitWindow(newMain, schema.WindowEventMain)
	}
	if remaining == 0 {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

func (c *Compositor) liveOthersLocked(id schema.WindowID) []schema.WindowID {
	var out []schema.WindowID
	for _, other := range c.order {
		if other == id {
			continue
		}
		switch c.phases[other] {
		case schema.WindowClosing, schema.WindowDestroyed:
			continue
		}
		out = append(out, other)
	}
	return out
}

// focus shows and focuses a window.
func (c *Compositor) focus(ctx context.Context, id schema.WindowID) bool {
	window, ok := c.rt.Window(id)
	if !ok {
		logx.WithWindow(ctx, id).Warn("windows focus skipped; window gone")
		return false
	}
	c.mu.Lock()
	wasHidden := c.phases[id] != schema.WindowShown
	c.phases[id] = schema.WindowShown
	c.mu.Unlock()
	window.Show()
	window.Focus()
	if wasHidden {
		c.emitWindow(id, schema.WindowEventShown)
	}
	c.emitWindow(id, schema.WindowEventFocused)
	return true
}

// FocusWindow focuses a window, optionally activating one of its tabs. A
// window left without tabs gets a fresh chat tab.
func (c *Compositor) FocusWindow(ctx context.Context, req schema.FocusWindowRequest) (schema.FocusWindowResponse, error) {
	if ctx == nil {
		return schema.FocusWindowResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateWindowID(req.WindowID); err != nil {
		return schema.FocusWindowResponse{}, err
	}
	if !c.focus(ctx, req.WindowID) {
		return schema.FocusWindowResponse{}, nil
	}
	if req.TabID != "" {
		if _, err := c.ActivateTab(ctx, schema.ActivateTabRequest{WindowID: req.WindowID, TabID: req.TabID}); err != nil {
			return schema.FocusWindowResponse{}, err
		}
		return schema.FocusWindowResponse{}, nil
	}
	state := c.loadState(ctx)
	if len(state.Tabs(req.WindowID.Key())) == 0 {
		if _, err := c.NewTab(ctx, schema.NewTabRequest{WindowID: req.WindowID, Type: schema.TabTypeChat, Active: true}); err != nil {
			return schema.FocusWindowResponse{}, err
		}
		return schema.FocusWindowResponse{}, nil
	}
	c.showActive(ctx, req.WindowID, state)
	return schema.FocusWindowResponse{}, nil
}

// OpenSettingsWindow focuses the existing settings tab or opens a window
// hosting a new one.
func (c *Compositor) OpenSettingsWindow(ctx context.Context, req schema.OpenSettingsWindowRequest) (schema.OpenSettingsWindowResponse, error) {
	if ctx == nil {
		return schema.OpenSettingsWindowResponse{}, errors.New("missing context")
	}
	route := strings.TrimSpace(req.Route)
	state := c.loadState(ctx)
	for _, tab := range state.All() {
		if tab.Type != schema.TabTypeSettings {
			continue
		}
		owner, ok := c.owners.owner(tab.ID)
		if !ok {
			continue
		}
		c.focus(ctx, owner)
		if _, err := c.ActivateTab(ctx, schema.ActivateTabRequest{WindowID: owner, TabID: tab.ID}); err != nil {
			return schema.OpenSettingsWindowResponse{}, err
		}
		if route != "" {
			if entry, ok := c.owners.lookup(tab.ID); ok {
				if err := entry.surface.Send(channelNavigate, map[string]string{"route": route}); err != nil {
					logx.WithWindowTab(ctx, owner, tab.ID).Warn("windows settings navigate failed", "err", err)
				}
			}
		}
		return schema.OpenSettingsWindowResponse{WindowID: owner}, nil
	}

	window, err := c.CreateWindow(ctx, nil, true)
	if err != nil {
		return schema.OpenSettingsWindowResponse{}, err
	}
	href := schema.DefaultHref(schema.TabTypeSettings, "", "")
	if route != "" {
		href = href + "/" + strings.TrimLeft(route, "/")
	}
	if _, err := c.createTab(ctx, window.ID(), schema.Tab{Type: schema.TabTypeSettings, Href: href}, true, nil); err != nil {
		window.Destroy()
		return schema.OpenSettingsWindowResponse{}, err
	}
	c.mu.Lock()
	c.settingsWindow = window.ID()
	c.mu.Unlock()
	c.focus(ctx, window.ID())
	return schema.OpenSettingsWindowResponse{WindowID: window.ID()}, nil
}

// SplitWindow moves a tab into a new window with one registry write covering
// both windows. The source window is closed when it ends up empty.
func (c *Compositor) SplitWindow(ctx context.Context, req schema.SplitWindowRequest) (schema.SplitWindowResponse, error) {
	if ctx == nil {
		return schema.SplitWindowResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(req.TabID); err != nil {
		return schema.SplitWindowResponse{}, err
	}
	log := logx.WithWindowTab(ctx, req.WindowID, req.TabID)
	from, ok := c.owners.owner(req.TabID)
	if !ok {
		log.Warn("windows split skipped; surface gone")
		return schema.SplitWindowResponse{}, nil
	}
	if from != req.WindowID {
		log.Debug("windows split source resolved", "owner", from)
	}
	sourceTabs := len(c.loadState(ctx).Tabs(from.Key()))
	log.Debug("windows split start", "source_tabs", sourceTabs)

	window, err := c.CreateWindow(ctx, c.splitBounds(ctx), true)
	if err != nil {
		return schema.SplitWindowResponse{}, err
	}
	to := window.ID()
	if err := c.TransferSurface(ctx, from, to, req.TabID); err != nil {
		log.Warn("windows split transfer failed", "err", err)
		window.Destroy()
		if errors.Is(err, schema.ErrSurfaceGone) || errors.Is(err, schema.ErrWindowNotFound) {
			return schema.SplitWindowResponse{}, nil
		}
		return schema.SplitWindowResponse{}, err
	}

	var (
		moved       schema.Tab
		sourceEmpty bool
	)
	newState, err := c.reg.Update(ctx, schema.SourceForWindow(from), func(state schema.TabState) (schema.TabState, error) {
		loc, ok := state.RemoveTab(req.TabID, "")
		if !ok {
			return nil, fmt.Errorf("tab %s: %w", req.TabID, schema.ErrTabNotFound)
		}
		moved = loc.Tab
		moved.Active = true
		state[to.Key()] = schema.WindowTabs{Tabs: []schema.Tab{moved}}
		if len(state[loc.Key].Tabs) == 0 {
			delete(state, loc.Key)
			sourceEmpty = true
		}
		return state, nil
	})
	if err != nil {
		log.Warn("windows split write failed", "err", err)
		if rerr := c.TransferSurface(ctx, to, from, req.TabID); rerr != nil {
			log.Warn("windows split rollback failed", "err", rerr)
		}
		window.Destroy()
		if errors.Is(err, schema.ErrTabNotFound) {
			return schema.SplitWindowResponse{}, nil
		}
		return schema.SplitWindowResponse{}, err
	}
	c.showTab(ctx, to, req.TabID)
	c.focus(ctx, to)
	c.emitTab(to, schema.TabEventMoved, moved)
	log.Info("windows split", "new_window", to, "source_closed", sourceEmpty)
	if sourceEmpty {
		c.CloseWindow(ctx, from)
	} else {
		c.showActive(ctx, from, newState)
	}
	return schema.SplitWindowResponse{NewWindowID: to}, nil
}

// splitBounds places a split window under the pointer when one is known.
func (c *Compositor) splitBounds(ctx context.Context) *schema.Rect {
	p, ok := c.drag.pointerAt(ctx)
	if !ok {
		return nil
	}
	return &schema.Rect{
		X:      p.X - splitGrabOffset,
		Y:      p.Y - c.cfg.TabStripHeight/2,
		Width:  c.cfg.WindowWidth,
		Height: c.cfg.WindowHeight,
	}
}

// MoveTabIntoExistingWindow merges a tab into another window at insertIndex
// (append when nil) with one registry write. Moving within the same window
// reorders. Moved is false when stale references made it a no-op.
func (c *Compositor) MoveTabIntoExistingWindow(ctx context.Context, req schema.MoveTabRequest) (schema.MoveTabResponse, error) {
	if ctx == nil {
		return schema.MoveTabResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(req.TabID); err != nil {
		return schema.MoveTabResponse{}, err
	}
	if err := schema.ValidateWindowID(req.TargetWindowID); err != nil {
		return schema.MoveTabResponse{}, err
	}
	log := logx.WithWindowTab(ctx, req.WindowID, req.TabID).With("target", req.TargetWindowID)
	from, ok := c.owners.owner(req.TabID)
	if !ok {
		log.Warn("windows move skipped; surface gone")
		return schema.MoveTabResponse{}, nil
	}
	to := req.TargetWindowID
	if _, ok := c.rt.Window(to); !ok {
		log.Warn("windows move skipped; target gone")
		return schema.MoveTabResponse{}, nil
	}
	if from != to {
		if err := c.TransferSurface(ctx, from, to, req.TabID); err != nil {
			log.Warn("windows move transfer failed", "err", err)
			if errors.Is(err, schema.ErrSurfaceGone) || errors.Is(err, schema.ErrWindowNotFound) {
				return schema.MoveTabResponse{}, nil
			}
			return schema.MoveTabResponse{}, err
		}
	}

	var (
		moved       schema.Tab
		sourceKey   string
		sourceEmpty bool
	)
	newState, err := c.reg.Update(ctx, schema.SourceForWindow(from), func(state schema.TabState) (schema.TabState, error) {
		loc, ok := state.RemoveTab(req.TabID, "")
		if !ok {
			return nil, fmt.Errorf("tab %s: %w", req.TabID, schema.ErrTabNotFound)
		}
		sourceKey = loc.Key
		moved = loc.Tab
		moved.Active = false
		if loc.Key != to.Key() && len(state[loc.Key].Tabs) == 0 {
			delete(state, loc.Key)
			sourceEmpty = true
		}
		state.InsertTab(to.Key(), moved, req.InsertIndex)
		state.SetActive(to.Key(), req.TabID)
		moved.Active = true
		return state, nil
	})
	if err != nil {
		log.Warn("windows move write failed", "err", err)
		if errors.Is(err, schema.ErrTabNotFound) {
			if from != to {
				if err := c.TransferSurface(ctx, to, from, req.TabID); err != nil {
					log.Warn("windows move rollback failed", "err", err)
				}
			}
			return schema.MoveTabResponse{}, nil
		}
		return schema.MoveTabResponse{}, err
	}
	c.showTab(ctx, to, req.TabID)
	c.focus(ctx, to)
	c.emitTab(to, schema.TabEventMoved, moved)
	log.Info("windows tab moved", "source_closed", sourceEmpty)
	if sourceKey != to.Key() {
		if sourceEmpty {
			c.CloseWindow(ctx, from)
		} else {
			c.showActive(ctx, from, newState)
		}
	}
	return schema.MoveTabResponse{Moved: true}, nil
}

// HandleDropAtPointer resolves a drop. The insert target is captured before
// tracking stops because stopping clears it. Dropping over another window's
// tab strip merges; any other drop, the origin strip included, splits.
func (c *Compositor) HandleDropAtPointer(ctx context.Context, req schema.DropAtPointerRequest) (schema.DropAtPointerResponse, error) {
	if ctx == nil {
		return schema.DropAtPointerResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(req.TabID); err != nil {
		return schema.DropAtPointerResponse{}, err
	}
	target, hasTarget := c.drag.InsertTarget()
	c.drag.Stop()

	log := logx.WithWindowTab(ctx, req.WindowID, req.TabID)
	origin, ok := c.owners.owner(req.TabID)
	if !ok {
		log.Warn("windows drop skipped; surface gone")
		return schema.DropAtPointerResponse{}, nil
	}
	window, inStrip := c.drag.stripAt(req.Pointer)
	if window != nil && inStrip && window.ID() != origin {
		var index *int
		if hasTarget && target.WindowID == window.ID() {
			i := target.InsertIndex
			index = &i
		}
		moved, err := c.MoveTabIntoExistingWindow(ctx, schema.MoveTabRequest{
			WindowID:       origin,
			TabID:          req.TabID,
			TargetWindowID: window.ID(),
			InsertIndex:    index,
		})
		if err != nil {
			return schema.DropAtPointerResponse{}, err
		}
		if !moved.Moved {
			log.Debug("windows drop merge skipped", "target", window.ID())
			return schema.DropAtPointerResponse{}, nil
		}
		log.Info("windows drop merged", "target", window.ID())
		return schema.DropAtPointerResponse{Result: &schema.DropResult{Action: schema.DropMerged, TargetWindowID: window.ID()}}, nil
	}
	resp, err := c.SplitWindow(ctx, schema.SplitWindowRequest{WindowID: origin, TabID: req.TabID})
	if err != nil {
		return schema.DropAtPointerResponse{}, err
	}
	if resp.NewWindowID == 0 {
		return schema.DropAtPointerResponse{}, nil
	}
	log.Info("windows drop detached", "new_window", resp.NewWindowID)
	return schema.DropAtPointerResponse{Result: &schema.DropResult{Action: schema.DropDetached, NewWindowID: resp.NewWindowID}}, nil
}

// Windows lists live windows in creation order.
func (c *Compositor) Windows(_ context.Context) []schema.WindowInfo {
	c.mu.Lock()
	order := append([]schema.WindowID(nil), c.order...)
	phases := make(map[schema.WindowID]schema.WindowPhase, len(order))
	for _, id := range order {
		phases[id] = c.phases[id]
	}
	main := c.main
	c.mu.Unlock()
	out := make([]schema.WindowInfo, 0, len(order))
	for _, id := range order {
		info := schema.WindowInfo{ID: id, Main: id == main, Phase: phases[id].String()}
		if window, ok := c.rt.Window(id); ok {
			info.Bounds = window.Bounds()
		}
		out = append(out, info)
	}
	return out
}

// MainWindow returns the main window id, or zero when none is open.
func (c *Compositor) MainWindow() schema.WindowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main
}

// Phase reports the lifecycle phase of a window.
func (c *Compositor) Phase(id schema.WindowID) schema.WindowPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	phase, ok := c.phases[id]
	if !ok {
		return schema.WindowDestroyed
	}
	return phase
}

// Bootstrap opens the windows recorded in the registry, or a single window
// with one chat tab on first run. Runtime window ids differ between runs, so
// the registry is re-keyed in one write.
func (c *Compositor) Bootstrap(ctx context.Context) error {
	log := c.log(ctx)
	state, ok, err := c.reg.Load(ctx)
	if err != nil {
		log.Warn("windows bootstrap registry unreadable; starting fresh", "err", err)
		ok = false
	}
	var keys []string
	if ok {
		for _, key := range state.Keys() {
			if len(state[key].Tabs) > 0 {
				keys = append(keys, key)
			}
		}
	}
	if len(keys) == 0 {
		return c.bootstrapFresh(ctx)
	}

	rekey := make(map[string]schema.WindowID, len(keys))
	excluded := make(map[schema.TabID]struct{})
	for _, key := range keys {
		window, err := c.CreateWindow(ctx, nil, true)
		if err != nil {
			return err
		}
		_, dropped := c.RestoreWindow(ctx, window.ID(), state.Tabs(key))
		for _, id := range dropped {
			excluded[id] = struct{}{}
		}
		rekey[key] = window.ID()
	}
	newState, err := c.reg.Update(ctx, schema.SourceController, func(current schema.TabState) (schema.TabState, error) {
		next := schema.TabState{}
		for oldKey, windowID := range rekey {
			var tabs []schema.Tab
			for _, tab := range current[oldKey].Tabs {
				if _, skip := excluded[tab.ID]; skip {
					continue
				}
				tabs = append(tabs, tab)
			}
			next[windowID.Key()] = schema.WindowTabs{Tabs: tabs}
			next.NormalizeActive(windowID.Key())
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	for _, windowID := range rekey {
		if len(newState[windowID.Key()].Tabs) == 0 {
			if _, err := c.NewTab(ctx, schema.NewTabRequest{WindowID: windowID, Type: schema.TabTypeChat, Active: true}); err != nil {
				return err
			}
			continue
		}
		c.showActive(ctx, windowID, newState)
	}
	if main := c.MainWindow(); main != 0 {
		c.focus(ctx, main)
	}
	log.Info("windows bootstrap restored", "windows", len(rekey), "excluded", len(excluded))
	return nil
}

func (c *Compositor) bootstrapFresh(ctx context.Context) error {
	window, err := c.CreateWindow(ctx, nil, true)
	if err != nil {
		return err
	}
	_, err = c.reg.Update(ctx, schema.SourceController, func(schema.TabState) (schema.TabState, error) {
		return schema.TabState{}, nil
	})
	if err != nil {
		return err
	}
	if _, err := c.NewTab(ctx, schema.NewTabRequest{WindowID: window.ID(), Type: schema.TabTypeChat, Active: true}); err != nil {
		return err
	}
	c.focus(ctx, window.ID())
	c.log(ctx).Info("windows bootstrap fresh", "window", window.ID())
	return nil
}

// Quit tears every window down without registry cleanup.
func (c *Compositor) Quit(ctx context.Context) {
	c.mu.Lock()
	c.quitting = true
	c.mu.Unlock()
	c.drag.Stop()
	for _, window := range c.rt.Windows() {
		window.Destroy()
	}
	if err := c.temp.CleanupAll(ctx); err != nil {
		c.log(ctx).Warn("windows temp cleanup failed", "err", err)
	}
	c.doneOnce.Do(func() { close(c.done) })
	c.log(ctx).Info("windows quit")
}
