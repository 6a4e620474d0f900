package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/chatdeck/internal/logx"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/internal/platform"
	"pkt.systems/chatdeck/schema"
)

// Surface launch arguments.
const (
	argSnapshot = "--chatdeck-snapshot="
	argTab      = "--chatdeck-tab="
	argWindow   = "--chatdeck-window="
)

// Channels sent to surfaces.
const (
	channelWindowChanged = "window-changed"
	channelNavigate      = "navigate"
)

var errDuplicateThread = errors.New("thread already open in another tab")

// NewTab creates a tab, and a fresh thread for thread-bound tab types.
func (c *Compositor) NewTab(ctx context.Context, req schema.NewTabRequest) (schema.NewTabResponse, error) {
	if ctx == nil {
		return schema.NewTabResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateWindowID(req.WindowID); err != nil {
		return schema.NewTabResponse{}, err
	}
	tabType, err := schema.NormalizeTabType(string(req.Type))
	if err != nil {
		return schema.NewTabResponse{}, err
	}
	log := logx.WithWindow(ctx, req.WindowID)
	if _, ok := c.rt.Window(req.WindowID); !ok {
		log.Warn("tabs new skipped; window gone")
		return schema.NewTabResponse{}, nil
	}
	tab := schema.Tab{
		Title:     strings.TrimSpace(req.Title),
		Href:      strings.TrimSpace(req.Href),
		Type:      tabType,
		Content:   req.Content,
		PreviewID: req.PreviewID,
	}
	var snapshot *schema.ThreadSnapshot
	if tabType.HasThread() {
		thread, err := c.threads.Create(ctx, tab.Title, req.Private)
		if err != nil {
			log.Warn("tabs thread create failed", "err", err)
			return schema.NewTabResponse{}, err
		}
		tab.ThreadID = thread.ID
		snapshot = &schema.ThreadSnapshot{Thread: thread, Messages: []schema.Message{}}
	}
	created, err := c.createTab(ctx, req.WindowID, tab, req.Active, snapshot)
	if err != nil {
		if tab.ThreadID != "" {
			if derr := c.threads.Delete(ctx, tab.ThreadID); derr != nil {
				log.Warn("tabs thread rollback failed", "thread", tab.ThreadID, "err", derr)
			}
		}
		return schema.NewTabResponse{}, err
	}
	return schema.NewTabResponse{Tab: created}, nil
}

// NewTabWithThread opens a tab for an existing thread. A live tab already
// bound to the thread in any window is activated and focused instead.
func (c *Compositor) NewTabWithThread(ctx context.Context, req schema.NewTabWithThreadRequest) (schema.NewTabResponse, error) {
	if ctx == nil {
		return schema.NewTabResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateWindowID(req.WindowID); err != nil {
		return schema.NewTabResponse{}, err
	}
	if strings.TrimSpace(string(req.ThreadID)) == "" {
		return schema.NewTabResponse{}, schema.ErrInvalidRequest
	}
	tabType, err := schema.NormalizeTabType(string(req.Type))
	if err != nil {
		return schema.NewTabResponse{}, err
	}
	log := logx.WithThread(logx.WithWindow(ctx, req.WindowID), req.ThreadID)

	if existing, ok := c.reuseThreadTab(ctx, req.WindowID, req.ThreadID); ok {
		return schema.NewTabResponse{Tab: &existing, Reused: true}, nil
	}
	if _, ok := c.rt.Window(req.WindowID); !ok {
		log.Warn("tabs new skipped; window gone")
		return schema.NewTabResponse{}, nil
	}

	snapshot, err := c.threads.Snapshot(ctx, req.ThreadID)
	if err != nil {
		log.Warn("tabs thread snapshot failed", "err", err)
		return schema.NewTabResponse{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = snapshot.Thread.Title
	}
	tab := schema.Tab{Title: title, Type: tabType, ThreadID: req.ThreadID}
	created, err := c.createTab(ctx, req.WindowID, tab, req.Active, &snapshot)
	if errors.Is(err, errDuplicateThread) {
		if existing, ok := c.reuseThreadTab(ctx, req.WindowID, req.ThreadID); ok {
			return schema.NewTabResponse{Tab: &existing, Reused: true}, nil
		}
		return schema.NewTabResponse{}, nil
	}
	if err != nil {
		return schema.NewTabResponse{}, err
	}
	return schema.NewTabResponse{Tab: created}, nil
}

// reuseThreadTab scans every window for a tab bound to threadID. A live match
// is activated in its owning window; dead matches are pruned from the registry.
func (c *Compositor) reuseThreadTab(ctx context.Context, caller schema.WindowID, threadID schema.ThreadID) (schema.Tab, bool) {
	log := logx.WithThread(logx.WithWindow(ctx, caller), threadID)
	state := c.loadState(ctx)
	var orphans []schema.TabID
	for _, loc := range state.FindThread(threadID) {
		owner, live := c.owners.owner(loc.Tab.ID)
		if !live {
			orphans = append(orphans, loc.Tab.ID)
			continue
		}
		if _, err := c.ActivateTab(ctx, schema.ActivateTabRequest{WindowID: caller, TabID: loc.Tab.ID}); err != nil {
			log.Warn("tabs reuse activate failed", "tab", loc.Tab.ID, "err", err)
		}
		if owner == caller {
			c.focus(ctx, owner)
		}
		log.Info("tabs thread reused", "tab", loc.Tab.ID, "owner", owner)
		tab := loc.Tab
		tab.Active = true
		return tab, true
	}
	if len(orphans) > 0 {
		c.pruneTabs(ctx, orphans)
	}
	return schema.Tab{}, false
}

// pruneTabs removes registry records whose surfaces no longer exist.
func (c *Compositor) pruneTabs(ctx context.Context, ids []schema.TabID) {
	_, err := c.reg.Update(ctx, schema.SourceController, func(state schema.TabState) (schema.TabState, error) {
		removed := 0
		for _, id := range ids {
			if _, live := c.owners.owner(id); live {
				continue
			}
			if _, ok := state.RemoveTab(id, ""); ok {
				removed++
			}
		}
		if removed == 0 {
			return nil, persist.ErrNoChange
		}
		return state, nil
	})
	if err != nil {
		c.log(ctx).Warn("tabs orphan prune failed", "err", err)
		return
	}
	c.log(ctx).Info("tabs orphans pruned", "count", len(ids))
}

// createTab builds the surface for tab, attaches it hidden to the window and
// records the tab with a single registry write.
func (c *Compositor) createTab(ctx context.Context, windowID schema.WindowID, tab schema.Tab, active bool, snapshot *schema.ThreadSnapshot) (*schema.Tab, error) {
	tab.ID = newTabID()
	if tab.Href == "" {
		tab.Href = schema.DefaultHref(tab.Type, tab.ThreadID, tab.PreviewID)
	}
	if tab.Title == "" {
		tab.Title = defaultTitle(tab.Type)
	}
	log := logx.WithThread(logx.WithWindowTab(ctx, windowID, tab.ID), tab.ThreadID)

	entry, err := c.spawnSurface(ctx, windowID, tab, snapshot)
	if err != nil {
		log.Warn("tabs surface create failed", "err", err)
		return nil, err
	}

	key := windowID.Key()
	var persisted schema.Tab
	_, err = c.reg.Update(ctx, schema.SourceForWindow(windowID), func(state schema.TabState) (schema.TabState, error) {
		if tab.ThreadID != "" {
			for _, loc := range state.FindThread(tab.ThreadID) {
				if _, live := c.owners.owner(loc.Tab.ID); live {
					return nil, errDuplicateThread
				}
			}
		}
		record := tab
		record.Active = false
		state.InsertTab(key, record, nil)
		if active || len(state[key].Tabs) == 1 {
			state.SetActive(key, tab.ID)
		} else {
			state.NormalizeActive(key)
		}
		loc, _ := state.FindTab(tab.ID)
		persisted = loc.Tab
		return state, nil
	})
	if err != nil {
		if !errors.Is(err, errDuplicateThread) {
			log.Warn("tabs registry write failed", "err", err)
		}
		entry.surface.Destroy()
		return nil, err
	}
	if persisted.Active {
		c.showTab(ctx, windowID, tab.ID)
	}
	log.Info("tabs tab created", "type", tab.Type, "active", persisted.Active)
	c.emitTab(windowID, schema.TabEventCreated, persisted)
	return &persisted, nil
}

// spawnSurface creates a hidden surface for tab and attaches it to the
// window. The thread snapshot travels through a temp file.
func (c *Compositor) spawnSurface(ctx context.Context, windowID schema.WindowID, tab schema.Tab, snapshot *schema.ThreadSnapshot) (ownedSurface, error) {
	window, ok := c.rt.Window(windowID)
	if !ok {
		return ownedSurface{}, fmt.Errorf("window %d: %w", windowID, schema.ErrWindowNotFound)
	}
	args := []string{argTab + string(tab.ID), argWindow + windowID.Key()}
	if snapshot != nil {
		data, err := json.Marshal(snapshot)
		if err != nil {
			return ownedSurface{}, err
		}
		path, err := c.temp.Write(tab.ID, "snapshot-*.json", data)
		if err != nil {
			return ownedSurface{}, err
		}
		args = append(args, argSnapshot+path)
	}
	opts := platform.SurfaceOptions{URL: c.surfaceURL(tab.Href), Args: args}
	surface, err := c.rt.CreateSurface(ctx, opts)
	if err != nil {
		_ = c.temp.Cleanup(ctx, tab.ID)
		return ownedSurface{}, err
	}
	c.watchSurface(tab.ID, surface)
	c.owners.attach(windowID, tab.ID, surface, opts)
	surface.SetVisible(false)
	if err := window.Attach(surface); err != nil {
		surface.Destroy()
		return ownedSurface{}, err
	}
	return ownedSurface{tabID: tab.ID, window: windowID, surface: surface, opts: opts}, nil
}

// watchSurface makes the destroy callback the single place runtime
// bookkeeping and temp files are reclaimed.
func (c *Compositor) watchSurface(tabID schema.TabID, surface platform.Surface) {
	surfaceID := surface.ID()
	surface.OnDestroyed(func() {
		if !c.owners.forget(tabID, surfaceID) {
			return
		}
		ctx := c.detached()
		if err := c.temp.Cleanup(ctx, tabID); err != nil {
			c.logger.Warn("tabs temp cleanup failed", "tab", tabID, "err", err)
		}
		c.logger.Debug("tabs surface destroyed", "tab", tabID, "surface", surfaceID)
	})
}

func (c *Compositor) surfaceURL(href string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		return href
	}
	return base + href
}

func defaultTitle(tabType schema.TabType) string {
	switch tabType {
	case schema.TabTypeSettings:
		return "Settings"
	case schema.TabTypeAIApplications:
		return "AI Applications"
	case schema.TabTypeCodeAgent:
		return "Code Agent"
	case schema.TabTypeHTMLPreview:
		return "Preview"
	default:
		return "New Chat"
	}
}

// ActivateTab activates a tab in whichever window currently holds its
// surface, focusing that window when it is not the caller.
func (c *Compositor) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	if ctx == nil {
		return schema.ActivateTabResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(req.TabID); err != nil {
		return schema.ActivateTabResponse{}, err
	}
	log := logx.WithWindowTab(ctx, req.WindowID, req.TabID)
	owner, ok := c.owners.owner(req.TabID)
	if !ok {
		log.Warn("tabs activate skipped; surface gone")
		return schema.ActivateTabResponse{}, nil
	}
	if owner != req.WindowID {
		log.Debug("tabs activate redirected", "owner", owner)
		c.focus(ctx, owner)
	}
	if !c.showTab(ctx, owner, req.TabID) {
		return schema.ActivateTabResponse{}, nil
	}
	var (
		activated schema.Tab
		changed   bool
	)
	_, err := c.reg.Update(ctx, schema.SourceForWindow(owner), func(state schema.TabState) (schema.TabState, error) {
		loc, ok := state.FindTab(req.TabID)
		if !ok || loc.Tab.Active {
			return nil, persist.ErrNoChange
		}
		state.SetActive(loc.Key, req.TabID)
		activated = loc.Tab
		activated.Active = true
		changed = true
		return state, nil
	})
	if err != nil {
		log.Warn("tabs activate write failed", "err", err)
		return schema.ActivateTabResponse{}, err
	}
	if changed {
		c.emitTab(owner, schema.TabEventActivated, activated)
	}
	return schema.ActivateTabResponse{WindowID: owner}, nil
}

// GetActiveTab returns the active tab of the window, or nil.
func (c *Compositor) GetActiveTab(ctx context.Context, req schema.GetActiveTabRequest) (schema.GetActiveTabResponse, error) {
	if err := schema.ValidateWindowID(req.WindowID); err != nil {
		return schema.GetActiveTabResponse{}, err
	}
	state := c.loadState(ctx)
	tab, ok := state.ActiveTab(req.WindowID.Key())
	if !ok {
		return schema.GetActiveTabResponse{}, nil
	}
	return schema.GetActiveTabResponse{Tab: &tab}, nil
}

// GetAllTabsForWindow returns the tabs of one window in order.
func (c *Compositor) GetAllTabsForWindow(ctx context.Context, req schema.ListWindowTabsRequest) (schema.ListTabsResponse, error) {
	if err := schema.ValidateWindowID(req.WindowID); err != nil {
		return schema.ListTabsResponse{}, err
	}
	tabs := c.loadState(ctx).Tabs(req.WindowID.Key())
	if tabs == nil {
		tabs = []schema.Tab{}
	}
	return schema.ListTabsResponse{Tabs: tabs}, nil
}

// GetAllTabs returns every tab across windows.
func (c *Compositor) GetAllTabs(ctx context.Context, _ schema.ListAllTabsRequest) (schema.ListTabsResponse, error) {
	tabs := c.loadState(ctx).All()
	if tabs == nil {
		tabs = []schema.Tab{}
	}
	return schema.ListTabsResponse{Tabs: tabs}, nil
}

// CloseTab purges ephemeral thread data, destroys the surface and removes the
// record. A window left without tabs is closed.
func (c *Compositor) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if ctx == nil {
		return schema.CloseTabResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(req.TabID); err != nil {
		return schema.CloseTabResponse{}, err
	}
	log := logx.WithWindowTab(ctx, req.WindowID, req.TabID)
	state := c.loadState(ctx)
	if loc, ok := state.FindTab(req.TabID); ok {
		c.purgeThread(ctx, loc.Tab)
	}
	c.destroySurface(req.TabID)

	var (
		removed  schema.TabLocation
		found    bool
		emptied  bool
		newState schema.TabState
	)
	newState, err := c.reg.Update(ctx, schema.SourceForWindow(req.WindowID), func(state schema.TabState) (schema.TabState, error) {
		removed, found = state.RemoveTab(req.TabID, req.FallbackActiveTabID)
		if !found {
			return nil, persist.ErrNoChange
		}
		emptied = len(state[removed.Key].Tabs) == 0
		return state, nil
	})
	if err != nil {
		log.Warn("tabs close write failed", "err", err)
		return schema.CloseTabResponse{}, err
	}
	if !found {
		log.Debug("tabs close found no record")
		return schema.CloseTabResponse{}, nil
	}
	windowID, err := schema.ParseWindowKey(removed.Key)
	if err != nil {
		log.Warn("tabs close window key invalid", "key", removed.Key)
		return schema.CloseTabResponse{}, nil
	}
	log.Info("tabs tab closed", "window_tabs", len(newState[removed.Key].Tabs))
	c.emitTab(windowID, schema.TabEventClosed, removed.Tab)
	if emptied {
		c.CloseWindow(ctx, windowID)
		return schema.CloseTabResponse{}, nil
	}
	c.showActive(ctx, windowID, newState)
	return schema.CloseTabResponse{}, nil
}

// CloseOthers closes every listed tab except TabID with one registry write.
func (c *Compositor) CloseOthers(ctx context.Context, req schema.CloseOthersRequest) (schema.CloseManyResponse, error) {
	return c.closeMany(ctx, req.WindowID, req.TabID, req.IDsToClose, nil, true)
}

// CloseOffside closes the tabs on one side of TabID with one registry write,
// reordering the survivors to RemainingIDs.
func (c *Compositor) CloseOffside(ctx context.Context, req schema.CloseOffsideRequest) (schema.CloseManyResponse, error) {
	return c.closeMany(ctx, req.WindowID, req.TabID, req.IDsToClose, req.RemainingIDs, req.ShouldSwitchActive)
}

func (c *Compositor) closeMany(ctx context.Context, windowID schema.WindowID, keep schema.TabID, ids []schema.TabID, remaining []schema.TabID, switchActive bool) (schema.CloseManyResponse, error) {
	if ctx == nil {
		return schema.CloseManyResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateTabID(keep); err != nil {
		return schema.CloseManyResponse{}, err
	}
	log := logx.WithWindowTab(ctx, windowID, keep)
	closing := make(map[schema.TabID]struct{}, len(ids))
	for _, id := range ids {
		if id != "" && id != keep {
			closing[id] = struct{}{}
		}
	}
	state := c.loadState(ctx)
	if _, ok := state.FindTab(keep); !ok {
		log.Warn("tabs close many skipped; kept tab gone")
		return schema.CloseManyResponse{}, nil
	}
	for id := range closing {
		if loc, ok := state.FindTab(id); ok {
			c.purgeThread(ctx, loc.Tab)
		}
		c.destroySurface(id)
	}

	closed := 0
	var key string
	newState, err := c.reg.Update(ctx, schema.SourceForWindow(windowID), func(state schema.TabState) (schema.TabState, error) {
		closed = 0
		// Surfaces are already gone, so their records go even if keep vanished.
		for id := range closing {
			if _, ok := state.RemoveTab(id, keep); ok {
				closed++
			}
		}
		loc, ok := state.FindTab(keep)
		if ok {
			key = loc.Key
			if len(remaining) > 0 {
				state[key] = schema.WindowTabs{Tabs: reorder(state[key].Tabs, remaining)}
			}
			if switchActive {
				state.SetActive(key, keep)
			}
			state.NormalizeActive(key)
		}
		if closed == 0 && (!ok || (len(remaining) == 0 && !switchActive)) {
			return nil, persist.ErrNoChange
		}
		return state, nil
	})
	if err != nil {
		log.Warn("tabs close many write failed", "err", err)
		return schema.CloseManyResponse{}, err
	}
	if key != "" {
		if owner, err := schema.ParseWindowKey(key); err == nil {
			c.showActive(ctx, owner, newState)
		}
	}
	log.Info("tabs closed many", "closed", closed)
	return schema.CloseManyResponse{Closed: closed}, nil
}

// reorder puts tabs listed in order first, in that order, followed by the rest.
func reorder(tabs []schema.Tab, order []schema.TabID) []schema.Tab {
	byID := make(map[schema.TabID]schema.Tab, len(tabs))
	for _, tab := range tabs {
		byID[tab.ID] = tab
	}
	out := make([]schema.Tab, 0, len(tabs))
	used := make(map[schema.TabID]bool, len(order))
	for _, id := range order {
		if tab, ok := byID[id]; ok && !used[id] {
			out = append(out, tab)
			used[id] = true
		}
	}
	for _, tab := range tabs {
		if !used[tab.ID] {
			out = append(out, tab)
		}
	}
	return out
}

// destroySurface destroys the tab surface if it is still alive.
func (c *Compositor) destroySurface(tabID schema.TabID) {
	if entry, ok := c.owners.lookup(tabID); ok {
		entry.surface.Destroy()
	}
}

// purgeThread deletes the thread of a private or empty conversation. Failures
// are logged and never stop teardown.
func (c *Compositor) purgeThread(ctx context.Context, tab schema.Tab) {
	if tab.ThreadID == "" {
		return
	}
	log := logx.WithThread(c.log(ctx), tab.ThreadID).With("tab", tab.ID)
	thread, err := c.threads.Get(ctx, tab.ThreadID)
	if errors.Is(err, schema.ErrThreadNotFound) {
		return
	}
	if err != nil {
		log.Warn("tabs thread lookup failed", "err", err)
		return
	}
	reason := ""
	if thread.Private {
		reason = "private"
	} else {
		count, err := c.threads.MessageCount(ctx, tab.ThreadID)
		if err != nil {
			log.Warn("tabs thread message count failed", "err", err)
			return
		}
		if count == 0 {
			reason = "empty"
		}
	}
	if reason == "" {
		return
	}
	if err := c.threads.Delete(ctx, tab.ThreadID); err != nil {
		log.Warn("tabs thread purge failed", "err", err)
		return
	}
	log.Info("tabs thread purged", "reason", reason)
}

// TransferSurface moves a live tab surface between windows without touching
// the registry. Runtimes that cannot reparent get the surface serialized,
// recreated in the destination and restored.
func (c *Compositor) TransferSurface(ctx context.Context, from, to schema.WindowID, tabID schema.TabID) error {
	log := logx.WithWindowTab(ctx, from, tabID).With("to", to)
	entry, ok := c.owners.lookup(tabID)
	if !ok {
		return fmt.Errorf("tab %s: %w", tabID, schema.ErrSurfaceGone)
	}
	dst, ok := c.rt.Window(to)
	if !ok {
		return fmt.Errorf("window %d: %w", to, schema.ErrWindowNotFound)
	}
	if entry.window == to {
		return nil
	}
	payload := map[string]any{"windowId": to}
	if c.rt.Capabilities().Reparent {
		if src, ok := c.rt.Window(entry.window); ok {
			if err := src.Detach(entry.surface); err != nil {
				log.Debug("tabs detach failed", "err", err)
			}
		}
		entry.surface.SetVisible(false)
		if err := dst.Attach(entry.surface); err != nil {
			return err
		}
		c.owners.move(tabID, to)
		if err := entry.surface.Send(channelWindowChanged, payload); err != nil {
			log.Warn("tabs window change notify failed", "err", err)
		}
		log.Debug("tabs surface reparented")
		return nil
	}

	state, err := entry.surface.SaveState()
	if err != nil {
		return fmt.Errorf("save surface state: %w", err)
	}
	opts := entry.opts
	opts.Args = rewriteArg(opts.Args, argWindow, to.Key())
	next, err := c.rt.CreateSurface(ctx, opts)
	if err != nil {
		return err
	}
	c.watchSurface(tabID, next)
	if err := next.RestoreState(state); err != nil {
		next.Destroy()
		return fmt.Errorf("restore surface state: %w", err)
	}
	next.SetVisible(false)
	if err := dst.Attach(next); err != nil {
		next.Destroy()
		return err
	}
	c.owners.replace(tabID, next, to, opts)
	entry.surface.Destroy()
	if err := next.Send(channelWindowChanged, payload); err != nil {
		log.Warn("tabs window change notify failed", "err", err)
	}
	log.Debug("tabs surface recreated", "surface", next.ID())
	return nil
}

func rewriteArg(args []string, prefix, value string) []string {
	out := make([]string, 0, len(args))
	replaced := false
	for _, arg := range args {
		if strings.HasPrefix(arg, prefix) {
			out = append(out, prefix+value)
			replaced = true
			continue
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, prefix+value)
	}
	return out
}

// RemoveWindowTabs purges and destroys every tab of a window and drops its
// registry entry.
func (c *Compositor) RemoveWindowTabs(ctx context.Context, windowID schema.WindowID) error {
	log := logx.WithWindow(ctx, windowID)
	state := c.loadState(ctx)
	for _, tab := range state.Tabs(windowID.Key()) {
		c.purgeThread(ctx, tab)
		c.destroySurface(tab.ID)
	}
	for _, entry := range c.owners.surfacesOf(windowID) {
		entry.surface.Destroy()
	}
	_, err := c.reg.Update(ctx, schema.SourceController, func(state schema.TabState) (schema.TabState, error) {
		if _, ok := state[windowID.Key()]; !ok {
			return nil, persist.ErrNoChange
		}
		delete(state, windowID.Key())
		return state, nil
	})
	if err != nil {
		log.Warn("tabs window entry remove failed", "err", err)
		return err
	}
	log.Debug("tabs window tabs removed")
	return nil
}

// PurgeEphemeral closes the private tabs of a window and deletes their
// threads, keeping every other tab and the registry entry.
func (c *Compositor) PurgeEphemeral(ctx context.Context, windowID schema.WindowID) error {
	log := logx.WithWindow(ctx, windowID)
	state := c.loadState(ctx)
	var private []schema.TabID
	for _, tab := range state.Tabs(windowID.Key()) {
		if tab.ThreadID == "" {
			continue
		}
		thread, err := c.threads.Get(ctx, tab.ThreadID)
		if err != nil || !thread.Private {
			continue
		}
		c.purgeThread(ctx, tab)
		c.destroySurface(tab.ID)
		private = append(private, tab.ID)
	}
	if len(private) == 0 {
		return nil
	}
	_, err := c.reg.Update(ctx, schema.SourceController, func(state schema.TabState) (schema.TabState, error) {
		for _, id := range private {
			state.RemoveTab(id, "")
		}
		return state, nil
	})
	if err != nil {
		log.Warn("tabs ephemeral purge write failed", "err", err)
		return err
	}
	log.Info("tabs ephemeral tabs purged", "count", len(private))
	return nil
}

// RestoreWindow creates surfaces for persisted tabs. Tabs whose thread
// snapshot cannot be parsed are skipped and returned as excluded.
func (c *Compositor) RestoreWindow(ctx context.Context, windowID schema.WindowID, tabs []schema.Tab) ([]schema.Tab, []schema.TabID) {
	log := logx.WithWindow(ctx, windowID)
	var kept []schema.Tab
	var excluded []schema.TabID
	for _, tab := range tabs {
		if tab.ID == "" {
			continue
		}
		var snapshot *schema.ThreadSnapshot
		if tab.ThreadID != "" {
			snap, err := c.threads.Snapshot(ctx, tab.ThreadID)
			switch {
			case err == nil:
				snapshot = &snap
			case errors.Is(err, schema.ErrThreadNotFound):
				snapshot = &schema.ThreadSnapshot{Thread: schema.Thread{ID: tab.ThreadID, Title: tab.Title}, Messages: []schema.Message{}}
			default:
				log.Warn("tabs restore excluded tab", "tab", tab.ID, "thread", tab.ThreadID, "err", err)
				excluded = append(excluded, tab.ID)
				continue
			}
		}
		if _, err := c.spawnSurface(ctx, windowID, tab, snapshot); err != nil {
			log.Warn("tabs restore surface failed", "tab", tab.ID, "err", err)
			excluded = append(excluded, tab.ID)
			continue
		}
		kept = append(kept, tab)
	}
	log.Info("tabs window restored", "tabs", len(kept), "excluded", len(excluded))
	return kept, excluded
}
