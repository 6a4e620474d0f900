package schema

import (
	"fmt"
	"sort"
	"strconv"
)

// TabLocation points at a tab inside a TabState.
type TabLocation struct {
	Key   string
	Index int
	Tab   Tab
}

// Clone returns a deep copy of the state.
func (s TabState) Clone() TabState {
	out := make(TabState, len(s))
	for key, entry := range s {
		tabs := make([]Tab, len(entry.Tabs))
		copy(tabs, entry.Tabs)
		out[key] = WindowTabs{Tabs: tabs}
	}
	return out
}

// Keys returns the window keys ordered numerically, with non-numeric keys last.
func (s TabState) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Tabs returns a copy of the tab list for a window key.
func (s TabState) Tabs(key string) []Tab {
	entry, ok := s[key]
	if !ok {
		return nil
	}
	out := make([]Tab, len(entry.Tabs))
	copy(out, entry.Tabs)
	return out
}

// All returns every tab in window key order.
func (s TabState) All() []Tab {
	var out []Tab
	for _, key := range s.Keys() {
		out = append(out, s[key].Tabs...)
	}
	return out
}

// FindTab locates a tab by id across all windows.
func (s TabState) FindTab(id TabID) (TabLocation, bool) {
	for _, key := range s.Keys() {
		for i, tab := range s[key].Tabs {
			if tab.ID == id {
				return TabLocation{Key: key, Index: i, Tab: tab}, true
			}
		}
	}
	return TabLocation{}, false
}

// FindThread locates every tab bound to a thread across all windows.
func (s TabState) FindThread(threadID ThreadID) []TabLocation {
	if threadID == "" {
		return nil
	}
	var out []TabLocation
	for _, key := range s.Keys() {
		for i, tab := range s[key].Tabs {
			if tab.ThreadID == threadID {
				out = append(out, TabLocation{Key: key, Index: i, Tab: tab})
			}
		}
	}
	return out
}

// ActiveTab returns the active tab of a window key.
func (s TabState) ActiveTab(key string) (Tab, bool) {
	for _, tab := range s[key].Tabs {
		if tab.Active {
			return tab, true
		}
	}
	return Tab{}, false
}

// RemoveTab removes a tab wherever it is. When the removed tab was active the
// fallback becomes active if it lives in the same window, otherwise the tab now
// at the removed index (clamped) does. Empty window entries are kept.
func (s TabState) RemoveTab(id TabID, fallback TabID) (TabLocation, bool) {
	loc, ok := s.FindTab(id)
	if !ok {
		return TabLocation{}, false
	}
	old := s[loc.Key].Tabs
	tabs := make([]Tab, 0, len(old)-1)
	tabs = append(tabs, old[:loc.Index]...)
	tabs = append(tabs, old[loc.Index+1:]...)
	s[loc.Key] = WindowTabs{Tabs: tabs}
	if len(tabs) == 0 {
		return loc, true
	}
	if loc.Tab.Active {
		next := loc.Index
		if next >= len(tabs) {
			next = len(tabs) - 1
		}
		if fallback != "" {
			for i, tab := range tabs {
				if tab.ID == fallback {
					next = i
					break
				}
			}
		}
		s.SetActive(loc.Key, tabs[next].ID)
	}
	s.NormalizeActive(loc.Key)
	return loc, true
}

// InsertTab inserts tab into the window key at index, clamped to the list
// bounds. A nil index appends.
func (s TabState) InsertTab(key string, tab Tab, index *int) int {
	old := s[key].Tabs
	pos := len(old)
	if index != nil {
		pos = *index
		if pos < 0 {
			pos = 0
		}
		if pos > len(old) {
			pos = len(old)
		}
	}
	tabs := make([]Tab, 0, len(old)+1)
	tabs = append(tabs, old[:pos]...)
	tabs = append(tabs, tab)
	tabs = append(tabs, old[pos:]...)
	s[key] = WindowTabs{Tabs: tabs}
	return pos
}

// SetActive marks id active in the window key and clears every sibling.
// It reports false when the tab is not in that window.
func (s TabState) SetActive(key string, id TabID) bool {
	entry, ok := s[key]
	if !ok {
		return false
	}
	found := false
	for _, tab := range entry.Tabs {
		if tab.ID == id {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	tabs := make([]Tab, len(entry.Tabs))
	for i, tab := range entry.Tabs {
		tab.Active = tab.ID == id
		tabs[i] = tab
	}
	s[key] = WindowTabs{Tabs: tabs}
	return true
}

// NormalizeActive makes sure a non-empty window has exactly one active tab,
// keeping the first active one or activating the first tab.
func (s TabState) NormalizeActive(key string) {
	entry, ok := s[key]
	if !ok || len(entry.Tabs) == 0 {
		return
	}
	keep := -1
	for i, tab := range entry.Tabs {
		if tab.Active {
			keep = i
			break
		}
	}
	if keep == -1 {
		keep = 0
	}
	s.SetActive(key, entry.Tabs[keep].ID)
}

// NormalizeAllActive applies NormalizeActive to every window.
func (s TabState) NormalizeAllActive() {
	for key := range s {
		s.NormalizeActive(key)
	}
}

// Validate reports the first structural problem found: a non-empty window
// without exactly one active tab, a tab id listed twice, or a thread bound to
// two tabs.
func (s TabState) Validate() error {
	seenTabs := make(map[TabID]string)
	seenThreads := make(map[ThreadID]TabID)
	for _, key := range s.Keys() {
		tabs := s[key].Tabs
		active := 0
		for _, tab := range tabs {
			if tab.Active {
				active++
			}
			if prev, ok := seenTabs[tab.ID]; ok {
				return fmt.Errorf("tab %s listed in windows %s and %s", tab.ID, prev, key)
			}
			seenTabs[tab.ID] = key
			if tab.ThreadID != "" {
				if prev, ok := seenThreads[tab.ThreadID]; ok {
					return fmt.Errorf("thread %s bound to tabs %s and %s", tab.ThreadID, prev, tab.ID)
				}
				seenThreads[tab.ThreadID] = tab.ID
			}
		}
		if len(tabs) > 0 && active != 1 {
			return fmt.Errorf("window %s has %d active tabs", key, active)
		}
	}
	return nil
}
