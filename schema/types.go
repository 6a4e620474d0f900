package schema

import (
	"strconv"
	"strings"
)

// WindowID identifies a top-level window. Ids are assigned by the windowing
// runtime and are only stable for the lifetime of the process.
type WindowID int

// Key returns the registry key used for the window.
func (id WindowID) Key() string {
	return strconv.Itoa(int(id))
}

// ParseWindowKey converts a registry key back into a WindowID.
func ParseWindowKey(key string) (WindowID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || n <= 0 {
		return 0, ErrInvalidWindow
	}
	return WindowID(n), nil
}

// TabID identifies a tab. It is opaque and stable for the tab's lifetime.
type TabID string

// ThreadID identifies a chat thread owned by the thread store.
type ThreadID string

// SurfaceID identifies a live content surface.
type SurfaceID string

// PreviewID identifies an html preview payload.
type PreviewID string

// TabType describes what a tab hosts.
type TabType string

const (
	// TabTypeChat hosts a chat thread.
	TabTypeChat TabType = "chat"
	// TabTypeSettings hosts the settings pages.
	TabTypeSettings TabType = "settings"
	// TabTypeAIApplications hosts the application launcher.
	TabTypeAIApplications TabType = "aiApplications"
	// TabTypeCodeAgent hosts a code agent session.
	TabTypeCodeAgent TabType = "codeAgent"
	// TabTypeHTMLPreview hosts a rendered html preview.
	TabTypeHTMLPreview TabType = "htmlPreview"
)

// TabBarStateKey is the storage key of the persisted tab registry.
const TabBarStateKey = "tab-bar-state"

// Tab is the persisted record of a tab.
type Tab struct {
	ID        TabID     `json:"id"`
	Title     string    `json:"title"`
	Href      string    `json:"href"`
	Type      TabType   `json:"type"`
	Active    bool      `json:"active"`
	ThreadID  ThreadID  `json:"threadId"`
	Content   string    `json:"content,omitempty"`
	PreviewID PreviewID `json:"previewId,omitempty"`
}

// WindowTabs is the ordered tab list of one window.
type WindowTabs struct {
	Tabs []Tab `json:"tabs"`
}

// TabState is the persisted registry: window key to ordered tabs.
type TabState map[string]WindowTabs

// DefaultHref returns the route a tab of the given type loads.
func DefaultHref(tabType TabType, threadID ThreadID, previewID PreviewID) string {
	switch tabType {
	case TabTypeChat:
		if threadID == "" {
			return "/chat"
		}
		return "/chat/" + string(threadID)
	case TabTypeSettings:
		return "/settings"
	case TabTypeAIApplications:
		return "/ai-applications"
	case TabTypeCodeAgent:
		if threadID == "" {
			return "/code-agent"
		}
		return "/code-agent/" + string(threadID)
	case TabTypeHTMLPreview:
		return "/preview/" + string(previewID)
	default:
		return "/"
	}
}

// SourceForWindow returns the storage write source id used for commands
// issued on behalf of a window.
func SourceForWindow(id WindowID) string {
	if id <= 0 {
		return SourceController
	}
	return "window:" + id.Key()
}

// SourceController marks writes made by the controller itself.
const SourceController = "controller"
