package schema

import "encoding/json"

// StorageSyncEvent carries a committed storage value to every window.
type StorageSyncEvent struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	SourceID string          `json:"sourceId,omitempty"`
}

// HoverEvent tells a window that a dragged tab is over its tab strip.
type HoverEvent struct {
	WindowID     WindowID `json:"windowId"`
	ClientX      int      `json:"clientX"`
	ClientY      int      `json:"clientY"`
	DraggedWidth int      `json:"draggedWidth"`
}

// HoverClearEvent tells a window that the drag left its tab strip.
type HoverClearEvent struct {
	WindowID WindowID `json:"windowId"`
}

// TabEventType identifies tab lifecycle events.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventMoved indicates a tab moved to another window.
	TabEventMoved TabEventType = "moved"
)

// TabEvent describes a tab lifecycle change in a window.
type TabEvent struct {
	WindowID WindowID     `json:"windowId"`
	Type     TabEventType `json:"type"`
	Tab      Tab          `json:"tab"`
}

// WindowEventType identifies window lifecycle events.
type WindowEventType string

const (
	// WindowEventCreated indicates a window was created.
	WindowEventCreated WindowEventType = "created"
	// WindowEventShown indicates a window became visible.
	WindowEventShown WindowEventType = "shown"
	// WindowEventHidden indicates a window was hidden instead of closed.
	WindowEventHidden WindowEventType = "hidden"
	// WindowEventFocused indicates a window was focused.
	WindowEventFocused WindowEventType = "focused"
	// WindowEventClosed indicates a window was destroyed.
	WindowEventClosed WindowEventType = "closed"
	// WindowEventMain indicates a window became the main window.
	WindowEventMain WindowEventType = "main"
)

// WindowEvent describes a window lifecycle change.
type WindowEvent struct {
	WindowID WindowID        `json:"windowId"`
	Type     WindowEventType `json:"type"`
}
